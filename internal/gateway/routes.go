package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/icymirror/larkgpt/internal/lark"
	"github.com/icymirror/larkgpt/internal/version"
)

// maxEventBytes caps webhook payload size.
const maxEventBytes = 1 << 20

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook/event", s.handleEvent)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleFeed)
	mux.HandleFunc("/", handleNotFound)
}

// handleEvent receives a webhook delivery. The platform retries slow
// endpoints, so message handling is kicked off asynchronously and the
// request is acknowledged immediately.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 1, "msg": "unreadable body"})
		return
	}

	var e lark.EventEnvelope
	if err := json.Unmarshal(body, &e); err != nil {
		s.log.Warn().Err(err).Msg("malformed webhook payload")
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 1, "msg": "malformed payload"})
		return
	}

	if s.cfg.VerificationToken != "" && e.VerificationToken() != s.cfg.VerificationToken {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("webhook token mismatch")
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 1, "msg": "invalid token"})
		return
	}

	if e.IsURLVerification() {
		writeJSON(w, http.StatusOK, map[string]string{"challenge": e.Challenge})
		return
	}

	switch {
	case e.IsTextMessage():
		if msg, ok := lark.ParseMessage(&e, s.cfg.BotName); ok {
			// Outlives the webhook request; bounded by the server context.
			go s.handler.HandleMessage(s.baseCtx, msg)
		}
	case e.Header.EventType == lark.EventMessageReceive:
		go s.handler.HandleUnsupported(s.baseCtx, e.Event.Message.MessageID)
	}

	writeJSON(w, http.StatusOK, map[string]any{"code": 0})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	observers := 0
	if s.feed != nil {
		observers = s.feed.Count()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   version.Version,
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
		"observers": observers,
	})
}

// handleFeed upgrades an observer connection and streams lifecycle events
// until the client goes away.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		http.Error(w, "feed disabled", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	s.feed.Attach(conn)
	defer s.feed.Detach(conn)

	// Observers only listen. Drain until the connection drops.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
