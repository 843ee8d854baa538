package main

import "fraudload/cmd"

func main() {
	cmd.Execute()
}
