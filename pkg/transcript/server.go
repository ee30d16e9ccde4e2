package transcript

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/germanamz/huddle/pkg/events"
	"go.uber.org/zap"
)

// DefaultBuffer is the per-client event buffer.
const DefaultBuffer = 256

// Server upgrades HTTP requests to WebSocket and streams bus events as JSON
// text frames. Clients only listen; anything they send is discarded.
type Server struct {
	bus    *events.Bus
	logger *zap.Logger
	buffer int
}

// NewServer creates a Server streaming from bus.
func NewServer(bus *events.Bus, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{bus: bus, logger: logger.With(zap.String("component", "transcript")), buffer: DefaultBuffer}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.CloseNow() }()

	sub := s.bus.Subscribe(s.buffer)
	defer s.bus.Unsubscribe(sub)

	ctx := conn.CloseRead(r.Context())
	s.logger.Debug("client connected", zap.String("remote", r.RemoteAddr))

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.C:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "session closed")
				return
			}
			if err := wsjson.Write(ctx, conn, e); err != nil {
				s.logger.Debug("client write failed", zap.Error(err))
				return
			}
		}
	}
}

// ListenAndServe serves the stream on addr at "/" until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("serving transcript", zap.String("addr", addr))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
