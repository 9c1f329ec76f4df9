package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/yolodet/internal/pipeline"
	"github.com/MeKo-Tech/yolodet/internal/utils"
)

const formatOverlay = "overlay"

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := "healthy"
	if s.detector == nil {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  status,
		Version: versionString(),
		Time:    time.Now().UTC().Format(time.RFC3339),
		Memory:  GetMemStats(),
	})
}

// modelHandler describes the loaded model and pipeline settings.
func (s *Server) modelHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	info := map[string]any{}
	if p, ok := s.detector.(infoProvider); ok {
		info = p.Info()
	}
	writeJSON(w, http.StatusOK, ModelResponse{Info: info})
}

// detectHandler runs detection on a multipart "image" upload.
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.detector == nil {
		s.writeErrorResponse(w, "detector not initialized", errTypeUnavailable, http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.writeErrorResponse(w, "File too large", errTypeInvalidRequest, http.StatusRequestEntityTooLarge)
			return
		}
		s.writeErrorResponse(w, "Failed to parse form data", errTypeInvalidRequest, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", errTypeInvalidRequest, http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	img, _, err := utils.DecodeImage(file)
	if err != nil {
		observeDetection("http", 0, 0, err)
		s.writeDetectionError(w, err)
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := s.detector.DetectImage(ctx, img)
	if err != nil {
		observeDetection("http", 0, 0, err)
		s.writeDetectionError(w, err)
		return
	}
	res.Path = header.Filename
	observeDetection("http", time.Since(start).Seconds(), len(res.Detections), nil)

	format := strings.ToLower(r.FormValue("format"))
	if format == formatOverlay {
		if !s.overlayEnabled {
			s.writeErrorResponse(w, "overlay output disabled", errTypeInvalidRequest, http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		if err := png.Encode(w, pipeline.RenderOverlay(img, res, s.overlay)); err != nil {
			slog.Error("Failed to encode overlay", "error", err)
		}
		return
	}
	s.writeResult(w, res, format)
}

func (s *Server) writeResult(w http.ResponseWriter, res *pipeline.ImageResult, format string) {
	switch format {
	case "", pipeline.FormatJSON:
		writeJSON(w, http.StatusOK, DetectResponse{Success: true, Result: res})
		return
	case pipeline.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
	case pipeline.FormatYAML:
		w.Header().Set("Content-Type", "application/yaml")
	case pipeline.FormatText:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	default:
		s.writeErrorResponse(w, fmt.Sprintf("unsupported format %q", format), errTypeInvalidRequest, http.StatusBadRequest)
		return
	}

	out, err := pipeline.Format([]*pipeline.ImageResult{res}, format)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), errTypeInternal, http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte(out))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
