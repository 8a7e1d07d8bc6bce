package server

import (
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/hudpulse/hudpulse/internal/engine"
	apperrors "github.com/hudpulse/hudpulse/internal/errors"
	"github.com/hudpulse/hudpulse/internal/event"
	"github.com/hudpulse/hudpulse/internal/metrics"
	"github.com/hudpulse/hudpulse/internal/trace"
)

// Engine is the watch control surface the server exposes.
type Engine interface {
	StartWatch(ctx context.Context, profileJSON []byte) error
	StopWatch()
	Status() engine.Status
	TestProfile(ctx context.Context, profileJSON []byte, outputDir string) (*engine.TestReport, error)
	Frame(ctx context.Context) (image.Image, error)
}

// Inbound WebSocket messages carry a type discriminator; outbound events
// carry the engine's cmd field instead.
type inboundMessage struct {
	Type string `json:"type"`
}

type statusMessage struct {
	Type   string        `json:"type"`
	Status engine.Status `json:"status"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles REST control and WebSocket event streaming.
type Server struct {
	eng    Engine
	fanout *event.Fanout
	met    *metrics.Metrics
}

// New creates a server. The fanout must be the sink the engine publishes
// to; each WebSocket client gets its own subscription from it.
func New(eng Engine, fanout *event.Fanout, met *metrics.Metrics) *Server {
	return &Server{eng: eng, fanout: fanout, met: met}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket event stream
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/watch/start", s.handleWatchStart)
	mux.HandleFunc("POST /api/watch/stop", s.handleWatchStop)
	mux.HandleFunc("POST /api/profile/test", s.handleProfileTest)
	mux.HandleFunc("GET /api/frame", s.handleFrame)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", s.met.Handler())

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperrors.HTTPStatusOf(err))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
		"code":  string(apperrors.CodeOf(err)),
	})
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxProfileBytes))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "reading request body")
	}
	return body, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.eng.Status())
}

func (s *Server) handleWatchStart(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.eng.StartWatch(r.Context(), body); err != nil {
		trace.Logger(r.Context()).Warn("watch start rejected", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, s.eng.Status())
}

func (s *Server) handleWatchStop(w http.ResponseWriter, r *http.Request) {
	s.eng.StopWatch()
	writeJSON(w, s.eng.Status())
}

type testRequest struct {
	Profile   json.RawMessage `json:"profile"`
	OutputDir string          `json:"output_dir,omitempty"`
}

func (s *Server) handleProfileTest(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req testRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "test request is not valid JSON"))
		return
	}
	if len(req.Profile) == 0 {
		writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "test request has no profile"))
		return
	}

	report, err := s.eng.TestProfile(r.Context(), req.Profile, req.OutputDir)
	if err != nil {
		trace.Logger(r.Context()).Warn("profile test failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, report)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	frame, err := s.eng.Frame(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, frame); err != nil {
		trace.Logger(r.Context()).Debug("frame encode aborted", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.met.WSClients.Add(1)
	defer s.met.WSClients.Add(^uint64(0))

	ctx := r.Context()
	log := trace.Logger(ctx)
	log.Info("websocket connected", "remote", r.RemoteAddr)
	defer log.Info("websocket disconnected", "remote", r.RemoteAddr)

	sub := s.fanout.Subscribe()
	defer s.fanout.Unsubscribe(sub)

	requests := make(chan struct{}, StatusRequestBuffer)
	go s.readLoop(ctx, conn, requests)

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-requests:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, conn, statusMessage{Type: "status", Status: s.eng.Status()}); err != nil {
				return
			}
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				log.Debug("websocket send failed", "error", err)
				return
			}
		}
	}
}

// readLoop consumes inbound messages. The only accepted request is
// {"type": "status"}; everything else is dropped after the rate check.
// Closing the requests channel tells the event loop the peer is gone.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, requests chan<- struct{}) {
	defer close(requests)
	rl := &rateLimiter{}

	for {
		var msg inboundMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return
		}
		if !rl.allow() {
			_ = wsjson.Write(ctx, conn, errorMessage{Type: "error", Message: "rate limit exceeded"})
			continue
		}
		if msg.Type == "status" {
			select {
			case requests <- struct{}{}:
			default:
			}
		}
	}
}
