package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kscrap/kscrap/pkg/config"
	"github.com/kscrap/kscrap/pkg/logger"
	"github.com/kscrap/kscrap/pkg/metrics"
	"github.com/kscrap/kscrap/pkg/observability"
	"github.com/kscrap/kscrap/pkg/repository"
	"github.com/kscrap/kscrap/pkg/transmitter"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCommand(newViper()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newViper resolves settings from flags and KSCRAP_* environment variables.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("KSCRAP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func newRootCommand(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "kscrap",
		Short: "kscrap - store scraped items and append them to delimited files",
		Long: `kscrap accumulates scraped items in memory, widens the stored type once when
a richer item type shows up, and appends the rows to a CSV file.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to a YAML configuration file")
	flags.String("dir", "", "Output directory (overrides repository.directory)")
	flags.String("base-name", "", "Output file name without extension")
	flags.String("separator", "", "Field separator")
	flags.String("compression", "", "Output compression: none, gzip, snappy, s2, lz4 or zstd")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	flags.Bool("trace", false, "Print save traces to stderr")
	for _, name := range []string{"config", "dir", "base-name", "separator", "compression", "log-level", "metrics-addr", "trace"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kscrap v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
		},
	})
	root.AddCommand(newImportCommand(v), newDemoCommand(v))
	return root
}

// loadConfig reads the configuration file, if any, and applies flag and
// KSCRAP_* environment overrides.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg := config.NewConfig()
	if path := v.GetString("config"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	overrides := map[string]*string{
		"dir":         &cfg.Repository.Directory,
		"base-name":   &cfg.Repository.BaseName,
		"separator":   &cfg.Repository.Separator,
		"compression": &cfg.Repository.Compression,
		"log-level":   &cfg.Logging.Level,
	}
	for key, target := range overrides {
		if v.IsSet(key) && v.GetString(key) != "" {
			*target = v.GetString(key)
		}
	}
	return cfg, nil
}

// runtimeEnv holds the process-wide services a command sets up.
type runtimeEnv struct {
	cfg         *config.Config
	log         *zap.Logger
	transmitter transmitter.Transmitter
	closers     []func(context.Context) error
}

func setup(v *viper.Viper) (*runtimeEnv, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Logger()); err != nil {
		return nil, err
	}
	env := &runtimeEnv{cfg: cfg, log: logger.Get()}

	if v.GetBool("trace") {
		shutdown, err := observability.InitStdout(os.Stderr)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, shutdown)
	}

	if addr := v.GetString("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				env.log.Error("metrics server stopped", zap.Error(err))
			}
		}()
		env.log.Info("serving metrics", zap.String("addr", addr))
		env.closers = append(env.closers, srv.Shutdown)
	}

	switch cfg.Transmitter.Kind {
	case "", "none":
	case "kafka":
		k, err := transmitter.NewKafka(cfg.Transmitter.Kafka, env.log)
		if err != nil {
			env.close(context.Background())
			return nil, err
		}
		env.transmitter = k
		env.closers = append(env.closers, func(context.Context) error { return k.Close() })
	default:
		env.close(context.Background())
		return nil, fmt.Errorf("unknown transmitter kind %q", cfg.Transmitter.Kind)
	}
	return env, nil
}

func (e *runtimeEnv) repositoryOptions() []repository.Option {
	opts := []repository.Option{repository.WithLogger(e.log)}
	if e.transmitter != nil {
		opts = append(opts, repository.WithTransmitter(e.transmitter))
	}
	return opts
}

func (e *runtimeEnv) close(ctx context.Context) {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](ctx); err != nil && e.log != nil {
			e.log.Warn("shutdown failed", zap.Error(err))
		}
	}
	if e.log != nil {
		_ = e.log.Sync()
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
