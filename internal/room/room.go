package room

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/mathline/server/internal/core"
)

// Room is a named, capacity-bounded group of connections hosting at most one
// session. Membership-mutating operations are critical sections under one
// lock per room; broadcasts go out to the membership observed at call time.
type Room struct {
	logger   *slog.Logger
	name     string
	capacity int

	mu      sync.Mutex
	clients []core.Worker
	session Session
}

// New creates a room with owner as its first member and records the room on
// the owner.
func New(name string, owner core.Worker, capacity int, logger *slog.Logger) *Room {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Room{
		logger:   logger,
		name:     name,
		capacity: capacity,
		clients:  []core.Worker{owner},
	}
	owner.SetCurrentRoom(r)
	logger.Debug("room created", "room", name, "owner", owner.Addr(), "capacity", capacity)
	return r
}

func (r *Room) Name() string { return r.name }

func (r *Room) Capacity() int { return r.capacity }

// SetSession attaches the session. A room hosts at most one; later calls are
// ignored.
func (r *Room) SetSession(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		r.logger.Warn("session already attached", "room", r.name)
		return
	}
	r.session = s
}

func (r *Room) Session() Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// AddClient appends w to the membership. A full room notifies w and leaves
// all state untouched. Filling the room to capacity starts the session.
func (r *Room) AddClient(w core.Worker) {
	r.mu.Lock()
	if len(r.clients) >= r.capacity {
		r.mu.Unlock()
		w.Send(fmt.Sprintf("Room %s is full! %s", r.name, r.Occupancy()))
		return
	}
	r.clients = append(r.clients, w)
	w.SetCurrentRoom(r)
	members := snapshot(r.clients)
	full := len(r.clients) == r.capacity
	sess := r.session
	r.mu.Unlock()

	w.Send(fmt.Sprintf("You entered the room %s successfully!", r.name))
	broadcast(members, w.Addr()+" has joined this room")

	if full && sess != nil {
		r.logger.Info("room full, starting session", "room", r.name)
		sess.Start()
	}
}

// RemoveClient removes w from the membership and clears w's room reference.
// Removing a non-member changes nothing. When sessionEnded is true the caller
// has already finalized the session and only the membership bookkeeping runs.
func (r *Room) RemoveClient(w core.Worker, sessionEnded bool) {
	r.mu.Lock()
	idx := -1
	for i, c := range r.clients {
		if c == w {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return
	}
	r.clients = append(r.clients[:idx], r.clients[idx+1:]...)
	members := snapshot(r.clients)
	empty := len(r.clients) == 0
	sess := r.session
	r.mu.Unlock()

	broadcast(members, w.Addr()+" has left the room")
	w.SetCurrentRoom(nil)

	if sessionEnded {
		return
	}

	if sess != nil {
		if g, ok := sess.(Game); ok {
			g.HandleDisconnect(w)
		}
		// An emptied room cannot continue its session.
		if empty && !sess.Ended() {
			sess.End()
		}
	}
}

// Broadcast sends msg to every current member.
func (r *Room) Broadcast(msg string) {
	broadcast(r.Clients(), msg)
}

// BroadcastExcept sends msg to every current member but skip.
func (r *Room) BroadcastExcept(skip core.Worker, msg string) {
	for _, c := range r.Clients() {
		if c != skip {
			c.Send(msg)
		}
	}
}

// Clients returns a snapshot of the current membership in join order.
func (r *Room) Clients() []core.Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return snapshot(r.clients)
}

func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *Room) IsEmpty() bool { return r.Len() == 0 }

// Occupancy formats the member count as "(n/capacity)".
func (r *Room) Occupancy() string {
	return fmt.Sprintf("(%d/%d)", r.Len(), r.capacity)
}

func snapshot(clients []core.Worker) []core.Worker {
	out := make([]core.Worker, len(clients))
	copy(out, clients)
	return out
}

func broadcast(clients []core.Worker, msg string) {
	for _, c := range clients {
		c.Send(msg)
	}
}
