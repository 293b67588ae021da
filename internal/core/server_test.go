package core_test

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/mathline/server/internal/command"
	"github.com/mathline/server/internal/core"
	"github.com/mathline/server/internal/game"
	"github.com/mathline/server/internal/room"
	"github.com/mathline/server/internal/service"
	"github.com/mathline/server/internal/store"
)

// startTestServer wires the full stack on an ephemeral port: in-memory
// stores, room manager, dispatcher and the TCP server itself.
func startTestServer(t *testing.T, capacity int) (*core.Server, *store.PlayerStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fs := afero.NewMemMapFs()
	players, err := store.NewPlayerStore(fs, "players.txt", logger)
	if err != nil {
		t.Fatalf("player store: %v", err)
	}
	if err := afero.WriteFile(fs, "equations.txt", []byte("x - 2\n"), 0o644); err != nil {
		t.Fatalf("seed equations: %v", err)
	}
	bank, err := store.NewEquationBank(fs, "equations.txt", game.ValidEquation, logger)
	if err != nil {
		t.Fatalf("equation bank: %v", err)
	}

	var rooms *room.Manager
	rooms = room.NewManager(logger, func(r *room.Room, rounds int) room.Session {
		return game.NewMathGame(r, rooms, players, bank, rounds, logger)
	})

	services := service.NewRegistry(logger, func(r *service.Registry) {
		service.Register(r, rooms)
		service.Register(r, players)
		service.Register(r, bank)
	})

	dispatcher := command.NewDispatcher(logger, "/", command.Deps{
		Rooms:   rooms,
		Players: players,
		Bank:    bank,
	})

	newWorker := func(conn net.Conn, ctx *core.Context, reg *service.Registry) core.Worker {
		return core.NewConn(conn, ctx, reg, dispatcher, logger)
	}

	srv := core.NewServer("127.0.0.1:0", capacity, services, core.DefaultContext, newWorker, logger)
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv, players
}

type client struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *client {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *client) send(line string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.t.Fatalf("write %q: %v", line, err)
	}
}

// waitFor reads lines until one contains substr, failing the test after two
// seconds of silence.
func (c *client) waitFor(substr string) string {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			c.t.Fatalf("waiting for %q: %v", substr, err)
		}
		if strings.Contains(line, substr) {
			return strings.TrimRight(line, "\r\n")
		}
	}
}

// silent reports whether nothing arrives within d.
func (c *client) silent(d time.Duration) bool {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(d))
	_, err := c.r.ReadString('\n')
	if err == nil {
		return false
	}
	nerr, ok := err.(net.Error)
	return ok && nerr.Timeout()
}

func TestRoomlessChatIsEchoed(t *testing.T) {
	srv, _ := startTestServer(t, 4)

	c := dial(t, srv.Addr())
	c.send("hello")

	got := c.waitFor("hello")
	if !strings.Contains(got, ": hello") {
		t.Fatalf("expected echoed chat line, got %q", got)
	}
}

func TestCapacityDefersExtraConnections(t *testing.T) {
	srv, _ := startTestServer(t, 1)

	first := dial(t, srv.Addr())
	first.send("warmup")
	first.waitFor("warmup")

	// The listen backlog accepts the socket, but no handler slot is free:
	// the second client must not be served yet.
	second := dial(t, srv.Addr())
	second.send("ping")
	if !second.silent(300 * time.Millisecond) {
		t.Fatal("second connection was served beyond the configured capacity")
	}

	first.conn.Close()
	second.waitFor("ping")
}

func TestExitCommandClosesTheConnection(t *testing.T) {
	srv, _ := startTestServer(t, 4)

	c := dial(t, srv.Addr())
	c.send("/exit")
	c.waitFor("Bye")

	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, err := c.r.ReadString('\n'); err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				t.Fatal("connection still open after /exit")
			}
			return
		}
	}
}

func TestUsersListsConnectedClients(t *testing.T) {
	srv, _ := startTestServer(t, 4)

	a := dial(t, srv.Addr())
	b := dial(t, srv.Addr())
	a.send("/register alice pw")
	a.waitFor("registered")
	a.send("/login alice pw")
	a.waitFor("Logged in")
	b.send("warmup")
	b.waitFor("warmup")

	a.send("/users")
	got := a.waitFor("USERS:")
	if !strings.Contains(got, "alice") {
		t.Fatalf("expected alice in the user list, got %q", got)
	}
}

func TestFullGameSession(t *testing.T) {
	srv, players := startTestServer(t, 4)

	alice := dial(t, srv.Addr())
	bob := dial(t, srv.Addr())

	alice.send("/register alice pw")
	alice.waitFor("registered")
	alice.send("/login alice pw")
	alice.waitFor("Logged in successfully as alice")

	bob.send("/register bob pw")
	bob.waitFor("registered")
	bob.send("/login bob pw")
	bob.waitFor("Logged in successfully as bob")

	alice.send("/room create duel 2 3")
	alice.waitFor("created successfully")

	bob.send("/room join duel")
	bob.waitFor("entered the room duel")

	alice.waitFor("Initializing new game")
	bob.waitFor("Initializing new game")
	alice.waitFor("Find a root of: x - 2")
	alice.waitFor("It's your turn!")

	// 2 is a root of x - 2; the turn passes to bob.
	alice.send("/resolve 2")
	bob.waitFor("alice found a root")
	bob.waitFor("It's your turn!")

	bob.send("/resolve 100")
	bob.waitFor("Not a root")

	// Round two: a guess may itself be an expression.
	alice.waitFor("It's your turn!")
	alice.send("/resolve 1 + 1")
	bob.waitFor("alice found a root")
	bob.waitFor("It's your turn!")

	bob.send("/resolve 100")
	bob.waitFor("Not a root")

	// Both players acted twice, completing the final round.
	alice.waitFor("Game over!")
	bob.waitFor("Game over!")
	alice.waitFor("Winner: alice")

	p, ok := players.Get("alice")
	if !ok {
		t.Fatal("alice missing from the player store")
	}
	if p.Victories != 1 || p.Resolved != 2 {
		t.Fatalf("alice stats = %d victories, %d resolved; want 1 and 2", p.Victories, p.Resolved)
	}
}

func TestStopClosesListener(t *testing.T) {
	srv, _ := startTestServer(t, 4)
	addr := srv.Addr()

	srv.Stop()
	srv.Wait()

	if _, err := net.DialTimeout("tcp", addr, 500*time.Millisecond); err == nil {
		t.Fatal("listener still accepting after Stop")
	}
	if srv.Running() {
		t.Fatal("server still reports running after Stop")
	}
}
