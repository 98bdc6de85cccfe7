package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/apiclient"
	"github.com/xela07ax/vintrade-console/internal/dashboard"
	"github.com/xela07ax/vintrade-console/internal/infra"
)

var (
	// Global flags
	configPath string
	baseURL    string
	verbose    bool
	timeout    time.Duration

	cfg      *infra.Config
	logger   *zap.Logger
	registry = prometheus.NewRegistry()
	client   *apiclient.Client
	svc      *dashboard.Service
)

var rootCmd = &cobra.Command{
	Use:   "dashctl",
	Short: "Terminal client for the vintrade trading console",
	Long: `dashctl talks to the console REST API: alerts, execution gates,
strategy performance, agent autonomy and alert rules.

Credentials come from config.yaml (auth.token or auth.username/auth.password)
or the AUTH_TOKEN / AUTH_USERNAME / AUTH_PASSWORD environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = infra.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if baseURL != "" {
			cfg.API.BaseURL = baseURL
		}
		if verbose {
			cfg.Logger.Level = "debug"
		}

		logger, err = infra.NewLogger(cfg.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		client = apiclient.New(cfg.API, tokenSource(cfg), logger, apiclient.WithMetrics(apiclient.NewMetrics(registry)))
		svc = dashboard.NewService(client)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./config.yaml or ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "API base URL (overrides api.base_url)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for one-shot commands")

	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(gatesCmd)
	rootCmd.AddCommand(strategiesCmd)
	rootCmd.AddCommand(autonomyCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// tokenSource: готовый токен важнее логина. При nil запросы не уходят вовсе.
func tokenSource(cfg *infra.Config) apiclient.TokenSource {
	switch {
	case cfg.Auth.Token != "":
		return apiclient.StaticToken(cfg.Auth.Token)
	case cfg.Auth.Username != "":
		return apiclient.NewPasswordTokenSource(cfg.API.BaseURL, cfg.Auth.Username, cfg.Auth.Password,
			cfg.Auth.LoginAttempts, &http.Client{Timeout: cfg.API.Timeout}, logger)
	}
	return nil
}

// commandContext: таймаут для разовых команд и отмена по Ctrl+C.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() { cancel(); stop() }
}

// signalContext: без таймаута, только Ctrl+C (для watch).
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// explain превращает ошибку клиента в то, что увидел бы оператор в баннере.
func explain(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, apiclient.ErrNoTokenSource) {
		return errors.New("no credentials configured: set auth.token or auth.username")
	}
	if msg, show := apiclient.UserMessage(err); show {
		return errors.New(msg)
	}
	return errors.New("unauthorized: sign in again")
}

// serveMetrics поднимает /metrics, если задан metrics.addr. Возвращает функцию остановки.
func serveMetrics() func() {
	if cfg.Metrics.Addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("metrics exposed", zap.String("addr", cfg.Metrics.Addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
