package banner

import (
	"github.com/charmbracelet/lipgloss"

	"fraudload/internal/tui/styles"
)

const ascii = `
   ____                    ____                __
  / __/________ ___  ______/ / /___  ____ _____/ /
 / /_/ ___/ __ '/ / / / __  / / __ \/ __ '/ __  /
/ __/ /  / /_/ / /_/ / /_/ / / /_/ / /_/ / /_/ /
/_/ /_/   \__,_/\__,_/\__,_/_/\____/\__,_/\__,_/   `

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	tagline := renderer.NewStyle().
		Foreground(styles.ColorSubtle).
		Render("  synthetic transaction load for the fraud ingestion endpoint")

	return "\n" + style.Render(ascii) + "\n" + tagline + "\n"
}
