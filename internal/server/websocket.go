package server

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lindenau-systems/folio/internal/pipeline"
	"github.com/lindenau-systems/folio/internal/recognize"
)

// WSRequest is a recognition request sent over a WebSocket connection.
// Document carries the raw file bytes, base64-encoded on the wire.
type WSRequest struct {
	Document []byte `json:"document"`
	Filename string `json:"filename"`
	Mode     string `json:"mode,omitempty"`
	Model    string `json:"model,omitempty"`
	Pages    string `json:"pages,omitempty"`
	Password string `json:"password,omitempty"`
}

// WSEvent is a message sent back to the client. Progress events stream
// while pages complete; a completed or error event ends the request.
type WSEvent struct {
	Type      string      `json:"type"` // "started", "progress", "completed", "error"
	Status    string      `json:"status,omitempty"`
	Completed int         `json:"completed,omitempty"`
	Total     int         `json:"total,omitempty"`
	Progress  float64     `json:"progress,omitempty"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorType string      `json:"error_type,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// wsWriter is the subset of *websocket.Conn the senders need.
type wsWriter interface {
	WriteMessage(messageType int, data []byte) error
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if s.corsOrigin == "" || s.corsOrigin == "*" {
				return true
			}
			return r.Header.Get("Origin") == s.corsOrigin
		},
	}
}

// recognizeWebSocketHandler handles WebSocket connections for streaming
// recognition progress.
func (s *Server) recognizeWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.logger.Info("websocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r, conn)
}

// handleWebSocketConnection processes requests from one connection until
// the client goes away.
func (s *Server) handleWebSocketConnection(r *http.Request, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	defer close(done)

	// Keepalive pings so proxies do not drop long-running requests.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Error("websocket read failed", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			// A recognition run can take minutes; suspend the read
			// deadline while it is in flight.
			_ = conn.SetReadDeadline(time.Time{})
			s.handleWebSocketRequest(r, conn, data)
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		}
	}
}

// handleWebSocketRequest runs one recognition request from a client message.
func (s *Server) handleWebSocketRequest(r *http.Request, conn *websocket.Conn, data []byte) {
	var req WSRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", "failed to parse request: "+err.Error())
		return
	}

	requestID := uuid.NewString()

	if len(req.Document) == 0 {
		s.sendWebSocketError(conn, requestID, "invalid_request", "no document data provided")
		return
	}
	if req.Filename == "" {
		s.sendWebSocketError(conn, requestID, "invalid_request", "no filename provided")
		return
	}

	path, cleanup, err := s.saveUploadBytes(req.Document, req.Filename)
	if err != nil {
		s.sendWebSocketError(conn, requestID, "processing_error", "failed to store upload: "+err.Error())
		return
	}
	defer cleanup()
	uploadSizeBytes.Observe(float64(len(req.Document)))

	mode := s.mode
	if req.Mode != "" {
		mode = recognize.Mode(req.Mode)
	}
	model := s.model
	if req.Model != "" {
		model = req.Model
	}

	reporter := pipeline.NewThrottledProgress(&wsProgress{
		server:    s,
		conn:      conn,
		requestID: requestID,
	}, 100*time.Millisecond)

	job := recognizeJob{
		path:     path,
		name:     req.Filename,
		mode:     mode,
		model:    model,
		pages:    req.Pages,
		password: req.Password,
		reporter: reporter,
	}

	start := time.Now()
	result, jobErr := s.runJob(r.Context(), job)
	if jobErr != nil {
		recognitionRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(conn, requestID, jobErr.Type, jobErr.Message)
		return
	}

	status := "success"
	if result.Status == string(pipeline.StatusCancelled) {
		status = "cancelled"
	}
	recognitionRequestsTotal.WithLabelValues("websocket", status).Inc()
	recognitionDuration.WithLabelValues("websocket").Observe(time.Since(start).Seconds())
	recognitionPages.WithLabelValues("websocket").Observe(float64(result.TotalPages))
	recognitionTokensTotal.Add(float64(result.Usage.TotalTokens))

	s.sendWebSocketEvent(conn, WSEvent{
		Type:      "completed",
		Status:    result.Status,
		Completed: result.Succeeded + result.Failed,
		Total:     result.TotalPages,
		Progress:  1.0,
		Result:    result,
		RequestID: requestID,
	})
}

// saveUploadBytes stores document bytes under a temporary path.
func (s *Server) saveUploadBytes(data []byte, filename string) (string, func(), error) {
	tmp, err := os.CreateTemp("", "folio-upload-*"+extOf(filename))
	if err != nil {
		return "", nil, err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", nil, err
	}
	return tmp.Name(), func() { _ = os.Remove(tmp.Name()) }, nil
}

// wsProgress streams pipeline progress to a WebSocket client.
type wsProgress struct {
	server    *Server
	conn      wsWriter
	requestID string
	total     int
}

func (p *wsProgress) OnStart(total int) {
	p.total = total
	p.server.sendWebSocketEvent(p.conn, WSEvent{
		Type:      "started",
		Status:    "processing",
		Total:     total,
		RequestID: p.requestID,
	})
}

func (p *wsProgress) OnProgress(completed, total int) {
	progress := 0.0
	if total > 0 {
		progress = float64(completed) / float64(total)
	}
	p.server.sendWebSocketEvent(p.conn, WSEvent{
		Type:      "progress",
		Status:    "processing",
		Completed: completed,
		Total:     total,
		Progress:  progress,
		RequestID: p.requestID,
	})
}

func (p *wsProgress) OnComplete() {}

func (p *wsProgress) OnError(err error) {}

// sendWebSocketEvent sends one event to the client.
func (s *Server) sendWebSocketEvent(conn wsWriter, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshaling websocket event", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Error("sending websocket event", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error event to the client.
func (s *Server) sendWebSocketError(conn wsWriter, requestID, errorType, message string) {
	s.sendWebSocketEvent(conn, WSEvent{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID,
	})
}
