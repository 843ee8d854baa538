package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"fraudload/internal/banner"
	"fraudload/internal/cli"
	"fraudload/internal/config"
	"fraudload/internal/logging"
	"fraudload/internal/metrics"
	"fraudload/internal/runner"
	"fraudload/internal/telemetry"
)

// Exit codes.
const (
	ExitPass        = 0
	ExitFail        = 1
	ExitConfigError = 2
)

var version = "dev"

var (
	cfgFile string
	v       = viper.New()
)

// exitError carries a process exit code up through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:   "fraudload",
	Short: "Synthetic transaction load generator for the fraud ingestion endpoint",
	Long: `
fraudload drives POST /api/v1/transactions at a controlled arrival rate,
checks the ingestion SLOs and prints a summary.

Built-in scenarios (--mode / MODE):
  burst  constant 3000 req/s for 20s
  ramp   stepped 200 -> 800 -> 2000 req/s over 5 minutes (default)

Exit status is 1 when a threshold is violated and 2 on configuration errors.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoad(cmd.Context(), os.Stdout, os.Stderr)
	},
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}

	var ee *exitError
	if !errors.As(err, &ee) {
		// flag parsing and other cobra errors
		ee = &exitError{code: ExitConfigError, err: err}
	}
	if ee.err != nil {
		fmt.Fprintln(os.Stderr, "Error:", ee.err)
	}
	stop()
	os.Exit(ee.code)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(mockCmd)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fraudload.yaml)")

	if err := config.RegisterFlags(v, rootCmd.Flags()); err != nil {
		panic(err)
	}
}

func initConfig() {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
			v.SetConfigType("yaml")
			v.SetConfigName(".fraudload")
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Error reading config:", err)
		}
	}
}

func runLoad(ctx context.Context, stdout, stderr io.Writer) error {
	cfg, err := config.Load(v)
	if err != nil {
		return &exitError{code: ExitConfigError, err: err}
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return &exitError{code: ExitConfigError, err: fmt.Errorf("%w: %w", config.ErrInvalid, err)}
	}
	defer closeLog()

	sc, err := cfg.Scenario()
	if err != nil {
		return &exitError{code: ExitConfigError, err: err}
	}
	log.Info("scenario resolved",
		zap.String("scenario", sc.Name),
		zap.String("mode", string(sc.Mode)),
		zap.Int64("seed", cfg.Seed),
		zap.String("url", cfg.URL),
	)

	opts := cli.Options{
		Out:      stdout,
		Progress: stderr,
		Format:   cfg.Format,
		TUI:      cfg.TUI,
		Log:      log,
	}

	if cfg.MetricsAddr != "" {
		prom := metrics.NewPrometheus(sc.Name)
		prom.Start(cfg.MetricsAddr, func(err error) {
			log.Error("metrics server failed", zap.Error(err))
		})
		log.Info("serving metrics", zap.String("addr", cfg.MetricsAddr))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			prom.Shutdown(shutdownCtx)
		}()
		opts.Runner = append(opts.Runner,
			runner.WithObservers(prom),
			runner.WithSamplers(prom),
		)
	}

	if cfg.Trace {
		shutdown, err := telemetry.Setup(stderr, version)
		if err != nil {
			return &exitError{code: ExitConfigError, err: err}
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Warn("trace shutdown", zap.Error(err))
			}
		}()
	}

	summary, err := cli.Start(ctx, cfg.Runner(sc), opts)
	if err != nil {
		if errors.Is(err, config.ErrInvalid) || errors.Is(err, runner.ErrConfig) {
			return &exitError{code: ExitConfigError, err: err}
		}
		return &exitError{code: ExitFail, err: err}
	}
	if !summary.Pass {
		return &exitError{code: ExitFail}
	}
	return nil
}

// newLogger logs to --log-file when set. Without one, the dashboard gets a
// no-op logger since it owns the terminal.
func newLogger(cfg config.Config) (*zap.Logger, func(), error) {
	switch {
	case cfg.LogFile != "":
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		log, err := logging.NewWriter(cfg.LogLevel, f)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		return log, func() {
			log.Sync()
			f.Close()
		}, nil
	case cfg.TUI:
		return zap.NewNop(), func() {}, nil
	default:
		log, err := logging.New(cfg.LogLevel)
		if err != nil {
			return nil, nil, err
		}
		return log, func() { log.Sync() }, nil
	}
}
