package server

import (
	"context"
	"image"
	"net/http"
	"time"

	"github.com/MeKo-Tech/yolodet/internal/pipeline"
	"github.com/MeKo-Tech/yolodet/internal/version"
)

// Detector is what the server needs from a detection pipeline.
type Detector interface {
	DetectImage(ctx context.Context, img image.Image) (*pipeline.ImageResult, error)
	Close() error
}

// infoProvider is implemented by *pipeline.Pipeline.
type infoProvider interface {
	Info() map[string]any
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	detector       Detector
	corsOrigin     string
	maxUploadBytes int64
	timeout        time.Duration
	overlayEnabled bool
	overlay        pipeline.OverlayOptions
	limiter        *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host               string
	Port               int
	CORSOrigin         string
	MaxUploadMB        int64
	TimeoutSec         int
	ShutdownTimeoutSec int
	OverlayEnabled     bool
	OverlayBoxColor    string // hex; empty picks a color per class

	// Per-client throttling of /detect and /ws/detect. Zero disables a limit.
	RateLimitPerMinute int
	RateLimitPerHour   int
	DailyUploadMB      int64
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Host:               "localhost",
		Port:               8080,
		CORSOrigin:         "*",
		MaxUploadMB:        50,
		TimeoutSec:         30,
		ShutdownTimeoutSec: 10,
		OverlayEnabled:     true,
	}
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string   `json:"status"`
	Version string   `json:"version,omitempty"`
	Time    string   `json:"time"`
	Memory  MemStats `json:"memory"`
}

// ModelResponse is returned by /model.
type ModelResponse struct {
	Info map[string]any `json:"info"`
}

// DetectResponse wraps a detection result.
type DetectResponse struct {
	Success bool                  `json:"success"`
	Result  *pipeline.ImageResult `json:"result,omitempty"`
	Error   string                `json:"error,omitempty"`
	Type    string                `json:"error_type,omitempty"`
}

// New creates a server around det. The server owns det and closes it in Close.
func New(cfg Config, det Detector) (*Server, error) {
	opts := pipeline.DefaultOverlayOptions()
	if cfg.OverlayBoxColor != "" {
		c, err := parseBoxColor(cfg.OverlayBoxColor)
		if err != nil {
			return nil, err
		}
		opts.BoxColor = c
	}
	maxMB := cfg.MaxUploadMB
	if maxMB <= 0 {
		maxMB = DefaultConfig().MaxUploadMB
	}
	return &Server{
		detector:       det,
		corsOrigin:     cfg.CORSOrigin,
		maxUploadBytes: maxMB * 1024 * 1024,
		timeout:        time.Duration(cfg.TimeoutSec) * time.Second,
		overlayEnabled: cfg.OverlayEnabled,
		overlay:        opts,
		limiter:        NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitPerHour, cfg.DailyUploadMB*1024*1024),
	}, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.detector != nil {
		return s.detector.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/model", s.corsMiddleware(s.modelHandler))
	mux.HandleFunc("/detect", s.corsMiddleware(s.rateLimitMiddleware(s.detectHandler)))
	mux.HandleFunc("/ws/detect", s.corsMiddleware(s.detectWebSocketHandler))
	mux.Handle("/metrics", metricsHandler())
}

// Handler returns a mux with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func versionString() string {
	v, _, _ := version.Info()
	return v
}
