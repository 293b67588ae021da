package core

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/mathline/server/internal/service"
	"github.com/mathline/server/internal/task"
)

// Server owns the listening socket, a capacity-bounded set of connection
// handlers and one global task scheduler. A bind or accept failure is fatal
// and tears the whole server down; per-connection failures never reach here.
type Server struct {
	addr     string
	capacity int
	logger   *slog.Logger
	services *service.Registry

	newContext ContextFactory
	newWorker  WorkerFactory
	sched      *task.Scheduler[*Server]

	listener net.Listener
	// slots is the handler pool: one token per concurrently served connection.
	// The accept loop parks on it when the pool is exhausted, so overload
	// defers accepts instead of rejecting them.
	slots chan struct{}

	mu      sync.Mutex
	clients []Worker

	running  atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewServer(addr string, capacity int, services *service.Registry, newContext ContextFactory, newWorker WorkerFactory, logger *slog.Logger, globalTasks ...task.Task[*Server]) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = 1
	}
	if newContext == nil {
		newContext = DefaultContext
	}
	return &Server{
		addr:       addr,
		capacity:   capacity,
		logger:     logger,
		services:   services,
		newContext: newContext,
		newWorker:  newWorker,
		sched:      task.NewScheduler(logger, globalTasks...),
		slots:      make(chan struct{}, capacity),
	}
}

// Name implements task.Owner for the global scheduler.
func (s *Server) Name() string { return "server:" + s.addr }

func (s *Server) Capacity() int { return s.capacity }

// Addr returns the bound listen address. Useful when the configured address
// used port 0.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start binds the listening socket, starts the global scheduler against the
// server itself and begins accepting. A failed bind is returned to the
// caller; a later accept failure stops the whole server.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.addr, err)
	}
	s.listener = ln
	s.running.Store(true)
	s.sched.Start(s)

	go s.acceptLoop(ln)

	s.logger.Info("server started", "addr", ln.Addr().String(), "capacity", s.capacity)
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for s.running.Load() {
		// Back-pressure, not rejection: wait here until a handler slot frees.
		s.slots <- struct{}{}

		conn, err := ln.Accept()
		if err != nil {
			<-s.slots
			if !s.running.Load() {
				// listener closed by Stop, normal shutdown
				return
			}
			s.logger.Error("accept failed", "error", err)
			s.Stop()
			return
		}

		s.logger.Info("client connected", "addr", conn.RemoteAddr().String())

		ctx := s.newContext(s)
		w := s.newWorker(conn, ctx, s.services)
		s.addClient(w)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { <-s.slots }()
			defer s.removeClient(w)
			w.Run()
		}()
	}
}

// Stop flips the running flag, stops the global scheduler and closes the
// listener. It does not wait for in-flight connection handlers; use Wait for
// drain semantics.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("shutting down")
		s.running.Store(false)
		s.sched.Stop()
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

// Wait blocks until all connection handlers and global tasks have returned.
func (s *Server) Wait() {
	s.wg.Wait()
	s.sched.Wait()
}

func (s *Server) Running() bool { return s.running.Load() }

// Scheduler exposes the global task scheduler, e.g. to register tasks before
// Start.
func (s *Server) Scheduler() *task.Scheduler[*Server] { return s.sched }

// Clients returns a snapshot of the live connection set.
func (s *Server) Clients() []Worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Worker, len(s.clients))
	copy(out, s.clients)
	return out
}

// addClient registers a connection in the live set, making it visible through
// Context.
func (s *Server) addClient(w Worker) {
	s.mu.Lock()
	s.clients = append(s.clients, w)
	n := len(s.clients)
	s.mu.Unlock()
	ConnectedClients.Set(float64(n))
}

// removeClient is the symmetric operation on disconnect.
func (s *Server) removeClient(w Worker) {
	s.mu.Lock()
	for i, c := range s.clients {
		if c == w {
			s.clients = append(s.clients[:i], s.clients[i+1:]...)
			break
		}
	}
	n := len(s.clients)
	s.mu.Unlock()
	ConnectedClients.Set(float64(n))
}
