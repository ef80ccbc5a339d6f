// Package gateway is the inbound HTTP surface: the IM platform's webhook
// endpoint, a health probe, and a WebSocket feed of message lifecycle
// events for observers.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/icymirror/larkgpt/internal/domain"
	"github.com/icymirror/larkgpt/internal/logging"
)

// Handler answers inbound messages. The bot satisfies this.
type Handler interface {
	// HandleMessage answers one text message. Called on a goroutine per
	// event; the webhook response does not wait for it.
	HandleMessage(ctx context.Context, msg domain.IncomingMessage)

	// HandleUnsupported tells the sender a message type can't be answered.
	HandleUnsupported(ctx context.Context, messageID string)
}

// Config configures the gateway server.
type Config struct {
	Port int

	// Bind is "loopback" or "lan". Webhook delivery needs a reachable
	// address, so the default is lan.
	Bind string

	// VerificationToken must match the token the platform includes in
	// every event. Empty disables the check.
	VerificationToken string

	// BotName gates group messages that mention everyone.
	BotName string

	// AllowedOrigins for cross-origin observers of the event feed.
	AllowedOrigins []string
}

// Server is the gateway HTTP + WebSocket server.
type Server struct {
	cfg     Config
	handler Handler
	feed    *Feed
	log     *logging.Logger

	startedAt  time.Time
	baseCtx    context.Context
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// New creates a gateway server.
func New(cfg Config, handler Handler, feed *Feed, log *logging.Logger) *Server {
	return &Server{
		cfg:     cfg,
		handler: handler,
		feed:    feed,
		baseCtx: context.Background(),
		log:     log.Sub("gateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.AllowedOrigins),
		},
	}
}

// checkWebSocketOrigin validates feed observers' Origin headers. Requests
// without one (non-browser clients) are always allowed.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

func resolveBindAddr(cfg Config) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	default:
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	}
}

// Start begins listening. It blocks until the context is cancelled or an
// error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.baseCtx = ctx
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      withMiddleware(mux, s.log, s.cfg.AllowedOrigins),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.startedAt = time.Now()
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Msg("gateway server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if s.feed != nil {
			s.feed.CloseAll()
		}
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}
