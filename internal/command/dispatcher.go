package command

import (
	"log/slog"
	"strings"

	"github.com/mathline/server/internal/core"
	"github.com/mathline/server/internal/room"
	"github.com/mathline/server/internal/store"
)

// Command is one executable text command. Domain failures are reported as
// text notices to the acting worker, never as errors.
type Command interface {
	Name() string
	Usage() string
	Execute(args []string, w core.Worker)
}

// Deps are the collaborators the built-in command set needs. They are
// injected once at construction instead of looked up per call.
type Deps struct {
	Rooms   *room.Manager
	Players *store.PlayerStore
	Bank    *store.EquationBank
}

// Dispatcher implements core.LineHandler: lines starting with the command
// prefix are routed through the dispatch table, everything else is chat.
type Dispatcher struct {
	logger   *slog.Logger
	prefix   string
	rooms    *room.Manager
	commands map[string]Command
}

func NewDispatcher(logger *slog.Logger, prefix string, deps Deps) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = "/"
	}
	d := &Dispatcher{
		logger:   logger,
		prefix:   prefix,
		rooms:    deps.Rooms,
		commands: make(map[string]Command),
	}
	d.register(&helpCmd{dispatcher: d})
	d.register(&registerCmd{players: deps.Players})
	d.register(&loginCmd{players: deps.Players, logger: logger})
	d.register(&usersCmd{})
	d.register(&roomCmd{rooms: deps.Rooms})
	d.register(&resolveCmd{})
	d.register(&exitCmd{})
	logger.Info("commands registered", "count", len(d.commands))
	return d
}

func (d *Dispatcher) register(c Command) {
	d.commands[c.Name()] = c
}

// Listen routes one received line.
func (d *Dispatcher) Listen(line string, w core.Worker) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if !strings.HasPrefix(line, d.prefix) {
		d.chat(line, w)
		return
	}

	fields := strings.Fields(strings.TrimPrefix(line, d.prefix))
	if len(fields) == 0 {
		w.Send("Unknown command. Try " + d.prefix + "help")
		return
	}
	cmd, ok := d.commands[strings.ToLower(fields[0])]
	if !ok {
		w.Send("Unknown command. Try " + d.prefix + "help")
		return
	}
	d.logger.Debug("executing command", "command", cmd.Name(), "addr", w.Addr())
	cmd.Execute(fields[1:], w)
}

// chat relays a plain line to the sender's room, or echoes it back when the
// sender is roomless.
func (d *Dispatcher) chat(line string, w core.Worker) {
	msg := w.Addr() + ": " + line
	if current := w.CurrentRoom(); current != nil {
		if r, ok := current.(*room.Room); ok {
			r.Broadcast(msg)
			return
		}
	}
	w.Send(msg)
}

// Disconnected detaches a closed connection from its room.
func (d *Dispatcher) Disconnected(w core.Worker) {
	if d.rooms != nil {
		d.rooms.LeaveRoom(w, false)
	}
}
