package novamemwire

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/tuannm99/novamem/internal/sql/executor"
)

// Server serves the framed SQL protocol. Every connection shares one
// executor, so all clients see the same database.
type Server struct {
	ex  *executor.Executor
	log *slog.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup

	// RequestTimeout bounds each request; 0 = no limit.
	RequestTimeout time.Duration
}

func NewServer(ex *executor.Executor, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		ex:    ex,
		log:   log.With("component", "novamemwire"),
		conns: make(map[net.Conn]struct{}),
	}
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. On return the listener
// and every open connection are closed and their handlers have exited.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info("tcp server listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	defer s.shutdown()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.log.Warn("accept failed", "err", err)
			continue
		}
		s.track(conn, true)
		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) shutdown() {
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.log.Info("tcp server stopped")
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.track(conn, false)
	defer func() { _ = conn.Close() }()

	log := s.log.With("remote", conn.RemoteAddr().String())
	log.Debug("client connected")

	for {
		var req ExecuteRequest
		if err := ReadFrame(conn, &req); err != nil {
			// Client closed or bad frame.
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				log.Debug("read frame", "err", err)
			}
			return
		}

		resp := s.execute(ctx, req)
		if err := WriteFrame(conn, resp); err != nil {
			log.Debug("write frame", "err", err)
			return
		}
	}
}

func (s *Server) execute(ctx context.Context, req ExecuteRequest) ExecuteResponse {
	if s.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.RequestTimeout)
		defer cancel()
	}

	res, err := s.ex.ExecSQL(ctx, req.SQL)
	if err != nil {
		return ExecuteResponse{ID: req.ID, Error: err.Error()}
	}
	return ExecuteResponse{ID: req.ID, Result: res}
}
