package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/yolodet/internal/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP detection server",
	Long: `Start an HTTP server that runs object detection on uploaded images.

Endpoints:
  GET  /health      liveness and memory statistics
  GET  /model       model and pipeline information
  POST /detect      multipart upload (field "image"); ?format=json|yaml|csv|text|overlay
  GET  /ws/detect   WebSocket streaming detection (base64 images)
  GET  /metrics     Prometheus metrics

Examples:
  yolodet serve
  yolodet serve --host 0.0.0.0 --port 9000 --cors-origin https://example.com`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runServeCommand,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringP("host", "H", "localhost", "server host")
	f.IntP("port", "p", 8080, "server port")
	f.String("cors-origin", "*", "CORS allowed origin (empty disables CORS headers)")
	f.Int("max-upload-size", 50, "maximum upload size in MB")
	f.Int("timeout", 30, "request timeout in seconds")
	f.Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	f.Bool("overlay-enable", true, "enable overlay image responses")
	f.Int("rate-limit", 0, "max detection requests per client per minute (0 = unlimited)")
	f.Int("rate-limit-hour", 0, "max detection requests per client per hour (0 = unlimited)")
	f.Int("daily-upload-quota", 0, "max upload volume per client per day in MB (0 = unlimited)")

	bindFlags(f.Lookup, map[string]string{
		"host":               "server.host",
		"port":               "server.port",
		"cors-origin":        "server.cors_origin",
		"max-upload-size":    "server.max_upload_mb",
		"timeout":            "server.timeout_sec",
		"shutdown-timeout":   "server.shutdown_timeout",
		"overlay-enable":     "server.overlay_enabled",
		"rate-limit":         "server.rate_limit_per_minute",
		"rate-limit-hour":    "server.rate_limit_per_hour",
		"daily-upload-quota": "server.daily_upload_mb",
	})
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	sc := cfg.ToServerConfig()

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	srv, err := server.New(sc, p)
	if err != nil {
		_ = p.Close()
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ln, err := net.Listen("tcp", net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port)))
	if err != nil {
		_ = srv.Close()
		return fmt.Errorf("failed to listen: %w", err)
	}

	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(sc.TimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(sc.TimeoutSec+5) * time.Second,
	}
	return serve(ctx, httpServer, ln, srv, time.Duration(sc.ShutdownTimeoutSec)*time.Second)
}

// serve runs httpServer on ln until ctx is done, then shuts it down within
// shutdownTimeout and closes res.
func serve(ctx context.Context, httpServer *http.Server, ln net.Listener, res io.Closer,
	shutdownTimeout time.Duration,
) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting detection server", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown requested", "reason", context.Cause(ctx))
	case err := <-errCh:
		if err != nil {
			slog.Error("Server error", "error", err)
			serveErr = fmt.Errorf("server error: %w", err)
		}
	}

	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server shutdown completed")
	}

	if err := res.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	} else {
		slog.Info("Server cleanup completed")
	}

	slog.Info("Graceful shutdown completed")
	return serveErr
}
