package core

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mathline/server/internal/service"
	"github.com/mathline/server/internal/task"
)

// Room is the slice of a room a worker needs to know about. The concrete type
// lives in internal/room; keeping an interface here avoids the import cycle.
type Room interface {
	Name() string
	RemoveClient(w Worker, sessionEnded bool)
}

// Worker is one per-client connection handler: one socket, one read loop, one
// private task scheduler.
type Worker interface {
	task.Owner

	ID() string
	// Addr is the stable identifier of this connection. It falls back to the
	// network address until an authenticated identity is attached.
	Addr() string
	Identity() string
	SetIdentity(name string)

	Send(line string)
	Context() *Context
	Services() *service.Registry

	CurrentRoom() Room
	SetCurrentRoom(r Room)

	Run()
	Close()
}

// LineHandler is the external collaborator every received line is forwarded
// to. All of its effects happen through the worker's Send primitive and the
// service registry.
type LineHandler interface {
	Listen(line string, w Worker)
	Disconnected(w Worker)
}

// WorkerFactory wraps an accepted socket into a concrete worker. Injected at
// server construction so the core stays agnostic of the connection type.
type WorkerFactory func(conn net.Conn, ctx *Context, services *service.Registry) Worker

const outboundBuffer = 32

// Conn is the default Worker implementation.
type Conn struct {
	id       string
	conn     net.Conn
	logger   *slog.Logger
	ctx      *Context
	services *service.Registry
	handler  LineHandler
	sched    *task.Scheduler[Worker]

	out        chan string
	writerDone chan struct{}
	mu         sync.Mutex
	outClosed  bool
	room       Room
	identity   string

	running   atomic.Bool
	closeOnce sync.Once
}

func NewConn(conn net.Conn, ctx *Context, services *service.Registry, handler LineHandler, logger *slog.Logger, tasks ...task.Task[Worker]) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Conn{
		id:       uuid.NewString(),
		conn:     conn,
		logger:   logger,
		ctx:      ctx,
		services: services,
		handler:  handler,
		out:      make(chan string, outboundBuffer),
	}
	c.sched = task.NewScheduler(logger, tasks...)
	return c
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Name() string { return "conn:" + c.Addr() }

func (c *Conn) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity != "" {
		return c.identity
	}
	return c.conn.RemoteAddr().String()
}

func (c *Conn) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Conn) SetIdentity(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = name
}

func (c *Conn) Context() *Context           { return c.ctx }
func (c *Conn) Services() *service.Registry { return c.services }

func (c *Conn) Scheduler() *task.Scheduler[Worker] { return c.sched }

func (c *Conn) CurrentRoom() Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Conn) SetCurrentRoom(r Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = r
}

// Send enqueues one outbound line. A slow or disconnected peer never blocks
// the caller: when the buffer is full the line is dropped.
func (c *Conn) Send(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outClosed {
		return
	}
	select {
	case c.out <- line:
		LinesTotal.WithLabelValues("sent").Inc()
	default:
		LinesTotal.WithLabelValues("dropped").Inc()
	}
}

// Run starts the private scheduler and the outbound writer, then blocks
// reading lines until the peer closes or an I/O error ends the loop. I/O
// failures stay local to this connection.
func (c *Conn) Run() {
	defer c.Close()

	c.running.Store(true)
	c.startWriter()
	c.sched.Start(c)

	reader := bufio.NewReader(c.conn)
	for c.running.Load() {
		line, err := readLine(reader)
		if err != nil {
			if err != io.EOF {
				c.logger.Error("read failed", "addr", c.Addr(), "error", err)
			}
			return
		}
		LinesTotal.WithLabelValues("received").Inc()
		c.dispatch(line)
	}
}

// dispatch forwards one line to the handler. A panic escaping the handler is
// caught here and closes only this connection.
func (c *Conn) dispatch(line string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("line handler panicked", "addr", c.Addr(), "panic", r)
			c.running.Store(false)
		}
	}()
	start := time.Now()
	c.handler.Listen(line, c)
	LineHandlingDuration.Observe(time.Since(start).Seconds())
}

// Close is idempotent: it stops the private scheduler, notifies the handler,
// lets the outbound writer drain and closes the socket.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.running.Store(false)
		c.sched.Stop()
		if c.handler != nil {
			c.handler.Disconnected(c)
		}
		c.mu.Lock()
		c.outClosed = true
		close(c.out)
		done := c.writerDone
		c.mu.Unlock()
		if done != nil {
			// bounded drain: a peer that stopped reading must not stall Close
			select {
			case <-done:
			case <-time.After(time.Second):
			}
		}
		_ = c.conn.Close()
		c.logger.Info("connection closed", "addr", c.Addr())
	})
}

// startWriter drains the outbound channel onto the socket. Best-effort: a
// broken connection just stops the writer.
func (c *Conn) startWriter() {
	done := make(chan struct{})
	c.mu.Lock()
	c.writerDone = done
	c.mu.Unlock()
	go func() {
		defer close(done)
		w := bufio.NewWriter(c.conn)
		for msg := range c.out {
			if _, err := w.WriteString(msg + "\n"); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}()
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err == nil {
		return strings.TrimRight(line, "\r\n"), nil
	}
	if err == io.EOF && line != "" {
		// last line without newline
		return strings.TrimRight(line, "\r\n"), nil
	}
	if err == io.EOF {
		return "", io.EOF
	}
	return "", fmt.Errorf("read: %w", err)
}
