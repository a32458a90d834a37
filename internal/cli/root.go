// Package cli implements the meetstream command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"go.aimuz.me/meetstream/config"
	"go.aimuz.me/meetstream/internal/metrics"
)

// tokenEnv is read when --token is not given.
const tokenEnv = "MEETSTREAM_TOKEN"

// BuildInfo describes the binary.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// Dependencies are resolved once by the root command and shared by
// subcommands.
type Dependencies struct {
	Build   BuildInfo
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	configPath  string
	token       string
	logLevel    string
	metricsAddr string
	metricsSrv  *http.Server
}

// Token returns the session token from the flag or the environment.
func (d *Dependencies) Token() (string, error) {
	if d.token != "" {
		return d.token, nil
	}
	if t := os.Getenv(tokenEnv); t != "" {
		return t, nil
	}
	return "", fmt.Errorf("no session token: pass --token or set %s", tokenEnv)
}

// NewRootCmd builds the command tree.
func NewRootCmd(build BuildInfo) *cobra.Command {
	deps := &Dependencies{Build: build}

	rootCmd := &cobra.Command{
		Use:           "meetstream",
		Short:         "Stream meeting audio and follow live transcripts",
		Long:          "A client for a live meeting transcription service. Hosts stream captured audio; viewers follow the translated transcript and download it when the meeting ends.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return deps.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return deps.teardown()
		},
	}

	rootCmd.Version = build.Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("meetstream %s (%s, %s)\n", build.Version, build.Commit, build.Date))

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&deps.configPath, "config", "", "config file (default is the user config dir)")
	flags.StringVar(&deps.token, "token", "", "session token (default $"+tokenEnv+")")
	flags.StringVar(&deps.logLevel, "log-level", "", "override the configured log level")
	flags.StringVar(&deps.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(NewViewCmd(deps))
	rootCmd.AddCommand(NewHostCmd(deps))
	rootCmd.AddCommand(NewDevicesCmd(deps))
	rootCmd.AddCommand(NewConfigCmd(deps))
	rootCmd.AddCommand(NewArchiveCmd(deps))

	return rootCmd
}

// Execute runs the command line.
func Execute(build BuildInfo) error {
	return NewRootCmd(build).Execute()
}

func (d *Dependencies) setup() error {
	// A .env file is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("load .env", "error", err)
	}

	var (
		cfg *config.Config
		err error
	)
	if d.configPath != "" {
		cfg, err = config.LoadFrom(d.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if d.logLevel != "" {
		cfg.Log.Level = d.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	d.Config = cfg

	d.Logger = newLogger(cfg)
	slog.SetDefault(d.Logger)

	d.Metrics = metrics.New()
	if d.metricsAddr != "" {
		if err := d.serveMetrics(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dependencies) teardown() error {
	if d.metricsSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return d.metricsSrv.Shutdown(ctx)
}

func (d *Dependencies) serveMetrics() error {
	ln, err := net.Listen("tcp", d.metricsAddr)
	if err != nil {
		return fmt.Errorf("listen metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", d.Metrics.Handler())
	d.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := d.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.Logger.Error("metrics server", "error", err)
		}
	}()
	d.Logger.Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.SlogLevel()
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
}
