package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"go.tickamp.dev/onset"
	"go.tickamp.dev/onset/internal/command"
	"go.tickamp.dev/onset/internal/config"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

type flags struct {
	cfgPath string
	envFile string
}

func main() {
	cfg := config.DefaultConfig()
	var f flags

	root := &cobra.Command{
		Use:           "onset",
		Short:         "Host background commands as a long-running service",
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&f.cfgPath, "config", "c", "onset.toml", "path to the TOML config file")
	root.PersistentFlags().StringVar(&f.envFile, "env-file", "", "dotenv file loaded before reading ONSET_* variables")
	root.PersistentFlags().StringVar(&cfg.LogDir, config.FlagLogDir, cfg.LogDir, "directory of the per-service log files")
	root.PersistentFlags().DurationVar(&cfg.DisposeTimeout, config.FlagDisposeTimeout, cfg.DisposeTimeout, "maximum wait for a worker on shutdown")
	root.PersistentFlags().DurationVar(&cfg.DrainTimeout, config.FlagDrainTimeout, cfg.DrainTimeout, "maximum wait for buffered child output")
	root.PersistentFlags().StringVar(&cfg.MetricsAddr, config.FlagMetricsAddr, cfg.MetricsAddr, "address serving /metrics (disabled when empty)")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the configured services until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, f, &cfg); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, f, &cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d service(s) configured\n", len(cfg.Services))
			return nil
		},
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig layers the file, the environment and the flags into cfg.
func loadConfig(cmd *cobra.Command, f flags, cfg *config.Config) error {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(fl *pflag.Flag) { changed[fl.Name] = true })

	fc, err := config.LoadFileConfig(f.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.ApplyFileConfig(cfg, fc, changed); err != nil {
		return err
	}

	if f.envFile != "" {
		if err := config.LoadEnvFile(f.envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	}
	if err := config.ApplyEnvConfig(cfg, changed); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	return cfg.Validate()
}

func run(ctx context.Context, cfg config.Config) error {
	log, err := onset.NewLogger("onset", true, nil, "")
	if err != nil {
		return err
	}

	var (
		reg     *prometheus.Registry
		metrics *onset.Metrics
	)
	if cfg.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		if metrics, err = onset.NewMetrics(reg); err != nil {
			return err
		}
	}

	opts := &onset.Options{
		LogDir:         cfg.LogDir,
		Metrics:        metrics,
		DisposeTimeout: cfg.DisposeTimeout,
		DrainTimeout:   cfg.DrainTimeout,
	}
	services, err := buildServices(cfg.Services, opts)
	if err != nil {
		return err
	}

	if reg != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				log.Error(err, "metrics server failed")
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(sctx)
		}()
		log.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	return onset.NewHost(log, services...).Run(ctx)
}

// buildServices creates one service per entry. On failure, the services
// already created are disposed.
func buildServices(scs []config.Service, opts *onset.Options) ([]onset.Controller, error) {
	services := make([]onset.Controller, 0, len(scs))
	for _, sc := range scs {
		svc, err := buildService(sc, opts)
		if err != nil {
			for _, s := range services {
				s.Dispose()
			}
			return nil, fmt.Errorf("service %s: %w", sc.Name(), err)
		}
		services = append(services, svc)
	}
	return services, nil
}

func buildService(sc config.Service, opts *onset.Options) (*onset.Service, error) {
	runner, err := command.New(sc)
	if err != nil {
		return nil, err
	}
	return onset.NewService(sc, runner, opts)
}
