package command

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/mathline/server/internal/core"
	"github.com/mathline/server/internal/game"
	"github.com/mathline/server/internal/room"
	"github.com/mathline/server/internal/store"
)

type helpCmd struct {
	dispatcher *Dispatcher
}

func (c *helpCmd) Name() string  { return "help" }
func (c *helpCmd) Usage() string { return "help" }

func (c *helpCmd) Execute(args []string, w core.Worker) {
	names := make([]string, 0, len(c.dispatcher.commands))
	for name := range c.dispatcher.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	w.Send("Available commands:")
	for _, name := range names {
		w.Send("  " + c.dispatcher.prefix + c.dispatcher.commands[name].Usage())
	}
}

type registerCmd struct {
	players *store.PlayerStore
}

func (c *registerCmd) Name() string  { return "register" }
func (c *registerCmd) Usage() string { return "register <username> <password>" }

func (c *registerCmd) Execute(args []string, w core.Worker) {
	if len(args) != 2 {
		w.Send("Help: /" + c.Usage())
		return
	}
	if !c.players.Register(args[0], args[1]) {
		w.Send("That username is already taken!")
		return
	}
	w.Send("User " + args[0] + " registered successfully! You can now /login")
}

type loginCmd struct {
	players *store.PlayerStore
	logger  *slog.Logger
}

func (c *loginCmd) Name() string  { return "login" }
func (c *loginCmd) Usage() string { return "login <username> <password>" }

func (c *loginCmd) Execute(args []string, w core.Worker) {
	if len(args) != 2 {
		w.Send("Help: /" + c.Usage())
		return
	}
	p, ok := c.players.Authenticate(args[0], args[1])
	if !ok {
		w.Send("The input user does not exist!")
		return
	}
	w.SetIdentity(p.Username)
	c.logger.Info("client logged in", "username", p.Username)
	w.Send("Logged in successfully as " + p.Username)
}

type usersCmd struct{}

func (c *usersCmd) Name() string  { return "users" }
func (c *usersCmd) Usage() string { return "users" }

func (c *usersCmd) Execute(args []string, w core.Worker) {
	clients := w.Context().Clients()
	names := make([]string, 0, len(clients))
	for _, c := range clients {
		names = append(names, c.Addr())
	}
	sort.Strings(names)
	w.Send("USERS: " + strings.Join(names, ","))
}

type roomCmd struct {
	rooms *room.Manager
}

func (c *roomCmd) Name() string  { return "room" }
func (c *roomCmd) Usage() string { return "room <create|join|leave|list> [roomName] [maxPlayers > 1] [rounds > 1]" }

func (c *roomCmd) Execute(args []string, w core.Worker) {
	if len(args) == 0 {
		w.Send("Help: /" + c.Usage())
		return
	}
	if w.Identity() == "" {
		w.Send("Must be logged in before playing")
		return
	}

	switch args[0] {
	case "create":
		if len(args) != 4 {
			w.Send("Help: /" + c.Usage())
			return
		}
		capacity, err1 := strconv.Atoi(args[2])
		rounds, err2 := strconv.Atoi(args[3])
		if err1 != nil || err2 != nil || capacity < 2 || rounds < 2 {
			w.Send("Help: /" + c.Usage())
			return
		}
		if w.CurrentRoom() != nil {
			w.Send("You are already in a room, /room leave first")
			return
		}
		c.rooms.CreateRoom(args[1], w, capacity, rounds)
	case "join":
		if len(args) != 2 {
			w.Send("Help: /" + c.Usage())
			return
		}
		if current := w.CurrentRoom(); current != nil {
			w.Send("You are already in the room " + current.Name())
			return
		}
		c.rooms.JoinRoom(args[1], w)
	case "leave":
		c.rooms.LeaveRoom(w, false)
	case "list":
		c.rooms.ListRooms(w)
	default:
		w.Send("Help: /" + c.Usage())
	}
}

type resolveCmd struct{}

func (c *resolveCmd) Name() string  { return "resolve" }
func (c *resolveCmd) Usage() string { return "resolve <mathExpression>" }

func (c *resolveCmd) Execute(args []string, w core.Worker) {
	if len(args) == 0 {
		w.Send("Help: /" + c.Usage())
		return
	}
	current := w.CurrentRoom()
	if current == nil {
		w.Send("You are not in a room right now")
		return
	}
	r, ok := current.(*room.Room)
	if !ok {
		w.Send("You are not in a room right now")
		return
	}
	g, ok := r.Session().(*game.MathGame)
	if !ok {
		w.Send("This room is not hosting a game")
		return
	}
	g.TryGuess(strings.Join(args, " "), w)
}

type exitCmd struct{}

func (c *exitCmd) Name() string  { return "exit" }
func (c *exitCmd) Usage() string { return "exit" }

func (c *exitCmd) Execute(args []string, w core.Worker) {
	w.Send("Bye")
	w.Close()
}
