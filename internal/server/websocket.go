package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/yolodet/internal/pipeline"
	"github.com/MeKo-Tech/yolodet/internal/utils"
	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// WebSocketRequest asks for detection on one image. Image is base64 in JSON.
type WebSocketRequest struct {
	Type      string `json:"type"` // "detect"
	RequestID string `json:"request_id,omitempty"`
	Image     []byte `json:"image"`
	Filename  string `json:"filename,omitempty"`
}

// WebSocketResponse is sent for each request, and for protocol errors.
type WebSocketResponse struct {
	Type      string                `json:"type"`   // "detection" or "error"
	Status    string                `json:"status"` // "completed" or "error"
	RequestID string                `json:"request_id,omitempty"`
	Result    *pipeline.ImageResult `json:"result,omitempty"`
	Error     string                `json:"error,omitempty"`
	ErrorType string                `json:"error_type,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

func (s *Server) upgrader() *websocket.Upgrader {
	origin := s.corsOrigin
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if origin == "*" {
				return true
			}
			o := r.Header.Get("Origin")
			return o == "" || o == origin
		},
	}
}

// detectWebSocketHandler streams detections for images sent over a websocket.
func (s *Server) detectWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(s.maxUploadBytes * 2) // base64 overhead

	websocketConnections.Inc()
	defer websocketConnections.Dec()
	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	s.handleWebSocketConnection(ctx, conn, clientKey(r))
	slog.Info("WebSocket connection closed", "remote_addr", r.RemoteAddr)
}

func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn, client string) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket read error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if messageType != websocket.TextMessage {
			s.sendWebSocket(conn, errorResponse("", errTypeInvalidRequest, "only text messages are supported"))
			continue
		}
		if s.limiter.Enabled() {
			if err := s.limiter.Allow(client, int64(len(data))); err != nil {
				rateLimitedTotal.WithLabelValues("websocket").Inc()
				s.sendWebSocket(conn, errorResponse("", errTypeRateLimited, err.Error()))
				continue
			}
		}
		s.sendWebSocket(conn, s.handleWebSocketMessage(ctx, data))
	}
}

// handleWebSocketMessage decodes one request and runs detection.
func (s *Server) handleWebSocketMessage(ctx context.Context, data []byte) WebSocketResponse {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errorResponse("", errTypeInvalidRequest, fmt.Sprintf("failed to parse request: %v", err))
	}
	if req.RequestID == "" {
		req.RequestID = strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	if req.Type != "detect" {
		return errorResponse(req.RequestID, errTypeInvalidRequest, "unsupported request type: "+req.Type)
	}
	if len(req.Image) == 0 {
		return errorResponse(req.RequestID, errTypeInvalidRequest, "no image data provided")
	}
	if s.detector == nil {
		return errorResponse(req.RequestID, errTypeUnavailable, "detector not initialized")
	}

	img, _, err := utils.DecodeImage(bytes.NewReader(req.Image))
	if err != nil {
		observeDetection("websocket", 0, 0, err)
		_, errType := classifyError(err)
		return errorResponse(req.RequestID, errType, err.Error())
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := s.detector.DetectImage(ctx, img)
	if err != nil {
		observeDetection("websocket", 0, 0, err)
		_, errType := classifyError(err)
		return errorResponse(req.RequestID, errType, err.Error())
	}
	res.Path = req.Filename
	observeDetection("websocket", time.Since(start).Seconds(), len(res.Detections), nil)

	return WebSocketResponse{
		Type:      "detection",
		Status:    "completed",
		RequestID: req.RequestID,
		Result:    res,
	}
}

func errorResponse(requestID, errType, message string) WebSocketResponse {
	return WebSocketResponse{
		Type:      "error",
		Status:    "error",
		RequestID: requestID,
		Error:     message,
		ErrorType: errType,
	}
}

// sendWebSocket marshals and writes one response.
func (s *Server) sendWebSocket(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
