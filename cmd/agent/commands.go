package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cryptoagents-go/internal/config"
	"cryptoagents-go/internal/engine"
	"cryptoagents-go/internal/metrics"
	"cryptoagents-go/internal/monitor"
	"cryptoagents-go/internal/state"
	"cryptoagents-go/internal/util"
)

type rootFlags struct {
	configPath string
	envFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "agent",
		Short:         "Crypto signal fusion and paper trading engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML config path, e.g. internal/config/config.yaml (defaults when empty)")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before the config")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override app.log_level")

	root.AddCommand(newRunCmd(flags), newServeCmd(flags), newConfigCmd(flags))
	return root
}

func (f *rootFlags) load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadWithEnv(f.configPath, f.envFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if f.logLevel != "" {
		cfg.App.LogLevel = f.logLevel
	}
	log := util.NewLogger(cfg.App.LogLevel, cfg.App.LogFormat).With().Str("app", cfg.App.Name).Logger()
	return cfg, log, nil
}

func startMetrics(cfg *config.Config, log zerolog.Logger) func() {
	if cfg.App.MetricsAddr == "" {
		return func() {}
	}
	srv, err := metrics.Serve(cfg.App.MetricsAddr, log)
	if err != nil {
		log.Error().Err(err).Msg("metrics disabled")
		return func() {}
	}
	log.Info().Str("addr", srv.Addr).Msg("metrics up")
	return func() { _ = srv.Close() }
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	var (
		cycles   int
		delay    time.Duration
		symbols  string
		provider string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run decision cycles and print the resulting portfolio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			if symbols != "" {
				cfg.Market.Symbols = config.SplitSymbols(symbols)
			}
			if provider != "" {
				cfg.Sentiment.Provider = provider
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			defer startMetrics(cfg, log)()

			ctx, cancel := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			o, err := engine.Build(cfg, log)
			if err != nil {
				return err
			}
			defer o.Close()

			if err := o.Run(ctx, cycles, delay); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			o.View(func(s *state.Snapshot) { printPortfolio(cmd.OutOrStdout(), s) })
			return nil
		},
	}
	cmd.Flags().IntVar(&cycles, "cycles", 1, "number of cycles, 0 runs until interrupted")
	cmd.Flags().DurationVar(&delay, "delay", 0, "pause between cycles")
	cmd.Flags().StringVar(&symbols, "symbols", "", "comma separated symbols overriding market.symbols")
	cmd.Flags().StringVar(&provider, "llm-provider", "", "sentiment provider: rule_based or openai")
	return cmd
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var (
		addr    string
		refresh time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Refresh the engine periodically and serve the dashboard API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Monitor.Addr = addr
			}
			if refresh > 0 {
				cfg.Monitor.RefreshInterval = refresh
			}
			defer startMetrics(cfg, log)()

			ctx, cancel := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			o, err := engine.Build(cfg, log)
			if err != nil {
				return err
			}
			defer o.Close()

			hub := monitor.NewHub(log)
			mgr := monitor.NewManager(o, cfg.Monitor.RefreshInterval, hub, log)
			srv := monitor.NewServer(mgr, hub, log)

			go mgr.Start(ctx)
			errc := make(chan error, 1)
			go func() { errc <- srv.Start(cfg.Monitor.Addr) }()

			select {
			case <-ctx.Done():
			case err := <-errc:
				if err != nil {
					return err
				}
			}
			log.Info().Msg("shutting down")
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address overriding monitor.addr")
	cmd.Flags().DurationVar(&refresh, "refresh-interval", 0, "refresh period overriding monitor.refresh_interval")
	return cmd
}

func newConfigCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := flags.load()
			if err != nil {
				return err
			}
			if cfg.Sentiment.OpenAI.APIKey != "" {
				cfg.Sentiment.OpenAI.APIKey = "***"
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, _, err := flags.load(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config ok")
			return nil
		},
	})
	return cmd
}
