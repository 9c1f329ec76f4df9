package server

import (
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/yolodet/internal/detector"
	"github.com/MeKo-Tech/yolodet/internal/onnx"
	"github.com/MeKo-Tech/yolodet/internal/utils"
)

// Error types reported in responses.
const (
	errTypeInvalidRequest = "invalid_request"
	errTypeDecode         = "decode_error"
	errTypeShape          = "shape_error"
	errTypeIndex          = "index_error"
	errTypeUnavailable    = "unavailable"
	errTypeRateLimited    = "rate_limited"
	errTypeInternal       = "internal_error"
)

// classifyError maps a detection failure to an HTTP status and error type.
func classifyError(err error) (int, string) {
	var decErr *utils.ImageDecodeError
	var shapeErr *onnx.ShapeMismatchError
	var idxErr *detector.DetectionIndexError
	var missing *detector.MissingOutputError
	var rateErr *RateLimitError
	var quotaErr *QuotaExceededError

	switch {
	case errors.As(err, &rateErr), errors.As(err, &quotaErr):
		return http.StatusTooManyRequests, errTypeRateLimited
	case errors.As(err, &decErr):
		return http.StatusBadRequest, errTypeDecode
	case errors.As(err, &shapeErr):
		return http.StatusInternalServerError, errTypeShape
	case errors.As(err, &idxErr), errors.As(err, &missing):
		return http.StatusInternalServerError, errTypeIndex
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, detector.ErrEngineClosed):
		return http.StatusServiceUnavailable, errTypeUnavailable
	default:
		return http.StatusInternalServerError, errTypeInternal
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message, errType string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := DetectResponse{Success: false, Error: message, Type: errType}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

// writeDetectionError classifies err and writes it.
func (s *Server) writeDetectionError(w http.ResponseWriter, err error) {
	status, errType := classifyError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Detection failed", "error", err, "status", status)
	}
	s.writeErrorResponse(w, err.Error(), errType, status)
}

func parseBoxColor(hex string) (color.Color, error) {
	c, err := utils.ParseHexColor(hex)
	if err != nil {
		return nil, err
	}
	return c, nil
}
