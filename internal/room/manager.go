package room

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/mathline/server/internal/core"
)

// Manager is the name→room registry. The registry map has its own lock,
// separate from the per-room locks; compound sequences such as
// remove-then-evict take them one after the other, never as one transaction.
type Manager struct {
	logger     *slog.Logger
	newSession SessionFactory

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewManager(logger *slog.Logger, newSession SessionFactory) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:     logger,
		newSession: newSession,
		rooms:      make(map[string]*Room),
	}
}

// CreateRoom registers a new room with owner as first member and attaches the
// session built by the injected factory. Name collisions are reported to the
// owner and change nothing.
func (m *Manager) CreateRoom(name string, owner core.Worker, capacity, rounds int) {
	m.mu.Lock()
	if _, exists := m.rooms[name]; exists {
		m.mu.Unlock()
		owner.Send("This room already exists!")
		return
	}
	r := New(name, owner, capacity, m.logger)
	if m.newSession != nil {
		r.SetSession(m.newSession(r, rounds))
	}
	m.rooms[name] = r
	n := len(m.rooms)
	m.mu.Unlock()

	ActiveRooms.Set(float64(n))
	m.logger.Info("room created", "room", name, "owner", owner.Addr(), "capacity", capacity, "rounds", rounds)
	owner.Send(fmt.Sprintf("Room %s created successfully!", name))
}

// JoinRoom adds w to the named room, or tells w the room does not exist.
func (m *Manager) JoinRoom(name string, w core.Worker) {
	m.mu.Lock()
	r, ok := m.rooms[name]
	m.mu.Unlock()
	if !ok {
		w.Send(fmt.Sprintf("Room %s does not exist!", name))
		return
	}
	r.AddClient(w)
}

// LeaveRoom removes w from its current room, if any, and evicts the room from
// the registry once it is empty or its session has been finalized.
func (m *Manager) LeaveRoom(w core.Worker, sessionEnded bool) {
	current := w.CurrentRoom()
	if current == nil {
		return
	}
	r, ok := current.(*Room)
	if !ok {
		return
	}

	m.logger.Info("client leaving room", "addr", w.Addr(), "room", r.Name())
	w.Send(fmt.Sprintf("You have left the room %s", r.Name()))

	r.RemoveClient(w, sessionEnded)

	if sessionEnded || r.IsEmpty() {
		m.evict(r.Name())
	}
}

// Evict drops the named room from the registry. Exposed for sessions that
// force-close their room.
func (m *Manager) Evict(name string) {
	m.evict(name)
}

func (m *Manager) evict(name string) {
	m.mu.Lock()
	if _, ok := m.rooms[name]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.rooms, name)
	n := len(m.rooms)
	m.mu.Unlock()

	ActiveRooms.Set(float64(n))
	m.logger.Info("room evicted", "room", name)
}

// Room looks up a room by name.
func (m *Manager) Room(name string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[name]
	return r, ok
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// ListRooms sends w one line per active room, sorted by name.
func (m *Manager) ListRooms(w core.Worker) {
	m.mu.Lock()
	names := make([]string, 0, len(m.rooms))
	for name := range m.rooms {
		names = append(names, name)
	}
	occupancy := make(map[string]string, len(names))
	for name, r := range m.rooms {
		occupancy[name] = r.Occupancy()
	}
	m.mu.Unlock()

	if len(names) == 0 {
		w.Send("There are no active rooms.")
		return
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("Active rooms:")
	for _, name := range names {
		b.WriteString(" " + name + occupancy[name])
	}
	w.Send(b.String())
}
