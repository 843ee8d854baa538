package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fraudload/internal/logging"
	"fraudload/internal/mock"
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Serve a mock ingestion endpoint to load-test against",
	Long: `Serves POST /api/v1/transactions, validating payloads like the real
ingestor and answering 202 Accepted. --latency delays every response and
--failure-ratio answers an evenly spread share of requests with 500.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		latency, _ := cmd.Flags().GetDuration("latency")
		ratio, _ := cmd.Flags().GetFloat64("failure-ratio")
		level, _ := cmd.Flags().GetString("log-level")

		cfg := mock.Config{Port: port, Latency: latency, FailureRatio: ratio}
		if err := cfg.Validate(); err != nil {
			return &exitError{code: ExitConfigError, err: err}
		}

		log, err := logging.New(level)
		if err != nil {
			return &exitError{code: ExitConfigError, err: err}
		}
		defer log.Sync()

		if err := mock.New(cfg, log).Run(cmd.Context()); err != nil {
			log.Error("mock endpoint failed", zap.Error(err))
			return &exitError{code: ExitFail, err: fmt.Errorf("mock: %w", err)}
		}
		return nil
	},
}

func init() {
	mockCmd.Flags().IntP("port", "p", 8081, "port to listen on")
	mockCmd.Flags().Duration("latency", 0, "delay added to every response, e.g. 10ms")
	mockCmd.Flags().Float64("failure-ratio", 0, "share of requests answered with 500, within [0,1]")
	mockCmd.Flags().String("log-level", "info", "log level: debug, info, warn, error")
}
