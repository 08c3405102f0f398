package a2a

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Handler processes incoming A2A requests.
type Handler interface {
	// HandleSendMessage starts a run and returns its task, after the run
	// finishes when the request is blocking.
	HandleSendMessage(ctx context.Context, req SendMessageRequest) (*Task, error)

	// HandleStreamMessage starts a run and calls emit for the initial task
	// and every update until the run finishes.
	HandleStreamMessage(ctx context.Context, req SendMessageRequest, emit func(StreamEvent) error) error

	// HandleGetTask returns the current state of a task.
	HandleGetTask(ctx context.Context, req GetTaskRequest) (*Task, error)

	// HandleListTasks returns tasks matching the filter.
	HandleListTasks(ctx context.Context, req ListTasksRequest) (*ListTasksResponse, error)

	// HandleCancelTask cancels a running task.
	HandleCancelTask(ctx context.Context, req CancelTaskRequest) (*Task, error)
}

// shutdownGrace bounds how long in-flight requests get once serving stops.
const shutdownGrace = 10 * time.Second

// maxRequestBytes caps JSON-RPC request bodies.
const maxRequestBytes = 1 << 20

// Server is the HTTP server that exposes an A2A agent.
type Server struct {
	card    AgentCard
	handler Handler
	log     *slog.Logger
}

// NewServer creates an A2A server for the given agent.
func NewServer(card AgentCard, handler Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		card:    card,
		handler: handler,
		log:     log,
	}
}

// Card returns the agent card the server advertises.
func (s *Server) Card() AgentCard { return s.card }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln, s.Handler())
}

// Serve serves h on ln until ctx is done. It lets callers mount the A2A
// routes next to other handlers.
func (s *Server) Serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info("a2a server listening", "addr", ln.Addr().String(), "agent", s.card.Name)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("a2a server stopped")
	return nil
}
