package game

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mathline/server/internal/core"
	"github.com/mathline/server/internal/room"
	"github.com/mathline/server/internal/store"
	"github.com/mathline/server/internal/task"
)

// MathGame is the equation-guessing session hosted by a room. Turn order is
// the room's join order at start time; a full cycle of all players acting
// advances the round counter, and the game ends when the counter reaches the
// configured maximum.
type MathGame struct {
	logger    *slog.Logger
	room      *room.Room
	rooms     *room.Manager
	players   *store.PlayerStore
	bank      *store.EquationBank
	maxRounds int
	sched     *task.Scheduler[*MathGame]

	mu      sync.Mutex
	order   []core.Worker
	turn    int
	round   int
	ended   bool
	scores  map[string]int
	current *Equation
}

func NewMathGame(r *room.Room, rooms *room.Manager, players *store.PlayerStore, bank *store.EquationBank, maxRounds int, logger *slog.Logger) *MathGame {
	if logger == nil {
		logger = slog.Default()
	}
	g := &MathGame{
		logger:    logger,
		room:      r,
		rooms:     rooms,
		players:   players,
		bank:      bank,
		maxRounds: maxRounds,
		scores:    make(map[string]int),
	}
	g.sched = task.NewScheduler[*MathGame](logger,
		task.NewDelayOnce[*MathGame]("round-reminder", 5*time.Second, 0,
			func(ctx context.Context, g *MathGame) error {
				g.mu.Lock()
				round, ended := g.round, g.ended
				g.mu.Unlock()
				if !ended {
					g.room.Broadcast(fmt.Sprintf("Round %d of %d is underway.", round, g.maxRounds))
				}
				return nil
			}),
	)
	return g
}

// Name implements task.Owner for the session scheduler.
func (g *MathGame) Name() string { return "game:" + g.room.Name() }

// Start fires once when the room fills: round 1, an equation on the table,
// member 0 to act.
func (g *MathGame) Start() {
	g.mu.Lock()
	g.order = g.room.Clients()
	g.turn = 0
	g.round = 1
	for _, w := range g.order {
		g.scores[w.ID()] = 0
	}
	g.mu.Unlock()

	g.room.Broadcast("Initializing new game!")
	g.room.Broadcast(fmt.Sprintf("First to find the roots wins. Rounds: %d", g.maxRounds))

	g.proposeEquation()
	g.announceTurn()
	g.sched.Start(g)
}

// TurnOf returns the member currently holding the turn, or nil once ended.
func (g *MathGame) TurnOf() core.Worker {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ended || g.turn >= len(g.order) {
		return nil
	}
	return g.order[g.turn]
}

func (g *MathGame) Ended() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ended
}

// End finalizes the session without a summary; used when the room empties or
// is torn down externally.
func (g *MathGame) End() {
	g.mu.Lock()
	if g.ended {
		g.mu.Unlock()
		return
	}
	g.ended = true
	g.mu.Unlock()
	g.sched.Stop()
	g.logger.Info("game ended", "room", g.room.Name())
}

// Round reports the current round counter.
func (g *MathGame) Round() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.round
}

// Score reports w's score.
func (g *MathGame) Score(w core.Worker) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scores[w.ID()]
}

// TryGuess evaluates w's guess against the current equation. Acting out of
// turn is rejected with a direct notice. The turn always advances after a
// legal act, right or wrong.
func (g *MathGame) TryGuess(guess string, w core.Worker) {
	g.mu.Lock()
	if g.ended {
		g.mu.Unlock()
		w.Send("The game has already ended!")
		return
	}
	if len(g.order) == 0 {
		g.mu.Unlock()
		w.Send("The game has not started yet!")
		return
	}
	if g.order[g.turn] != w {
		g.mu.Unlock()
		w.Send("It's not your turn!")
		return
	}
	eq := g.current
	g.mu.Unlock()

	hit := false
	if eq != nil {
		ok, err := eq.TryGuessRoot(guess)
		if err != nil {
			w.Send("That is not a valid expression: " + guess)
		}
		hit = ok
	}

	if hit {
		g.mu.Lock()
		g.scores[w.ID()]++
		g.mu.Unlock()
		if g.players != nil && w.Identity() != "" {
			g.players.AddResolved(w.Identity())
		}
		g.room.Broadcast(fmt.Sprintf("%s found a root of %s!", w.Addr(), eq.Text()))
		g.proposeEquation()
	} else {
		w.Send("Not a root, better luck next time!")
	}

	g.advanceTurn()
	if !g.checkGameOver() {
		g.announceTurn()
	}
}

// HandleDisconnect drops w from the turn rotation. With fewer than two
// players left the room is force-closed and the session ends; otherwise the
// rotation continues with the remaining members.
func (g *MathGame) HandleDisconnect(w core.Worker) {
	g.mu.Lock()
	if g.ended {
		g.mu.Unlock()
		return
	}
	idx := -1
	for i, c := range g.order {
		if c == w {
			idx = i
			break
		}
	}
	if idx < 0 {
		g.mu.Unlock()
		return
	}
	g.order = append(g.order[:idx], g.order[idx+1:]...)
	if idx < g.turn {
		g.turn--
	}
	if g.turn >= len(g.order) {
		g.turn = 0
	}

	if len(g.order) < 2 {
		g.ended = true
		remaining := make([]core.Worker, len(g.order))
		copy(remaining, g.order)
		g.mu.Unlock()
		g.sched.Stop()
		g.logger.Info("too few players left, closing room", "room", g.room.Name())
		g.room.Broadcast(fmt.Sprintf("Room %s is closing", g.room.Name()))
		for _, last := range remaining {
			g.room.RemoveClient(last, true)
		}
		if g.rooms != nil {
			g.rooms.Evict(g.room.Name())
		}
		return
	}
	g.mu.Unlock()

	// Whether or not w held the turn, the current holder is re-announced.
	g.announceTurn()
}

// proposeEquation draws a fresh equation from the bank and broadcasts it.
func (g *MathGame) proposeEquation() {
	if g.bank == nil {
		return
	}
	line, err := g.bank.Random()
	if err != nil {
		g.logger.Error("drawing equation failed", "room", g.room.Name(), "error", err)
		return
	}
	eq, err := NewEquation(line)
	if err != nil {
		g.logger.Error("bad equation in bank", "line", line, "error", err)
		return
	}
	g.mu.Lock()
	g.current = eq
	g.mu.Unlock()
	g.room.Broadcast("Find a root of: " + eq.Text())
}

// Equation returns the currently proposed equation.
func (g *MathGame) Equation() *Equation {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

func (g *MathGame) announceTurn() {
	g.mu.Lock()
	if g.ended || len(g.order) == 0 {
		g.mu.Unlock()
		return
	}
	holder := g.order[g.turn]
	g.mu.Unlock()

	g.room.BroadcastExcept(holder, "Turn of "+holder.Addr())
	holder.Send("It's your turn!")
}

// advanceTurn rotates over the current membership; a wrap to index 0 means
// every player has acted once, completing a round.
func (g *MathGame) advanceTurn() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ended || len(g.order) == 0 {
		return
	}
	g.turn = (g.turn + 1) % len(g.order)
	if g.turn == 0 {
		g.round++
	}
}

// checkGameOver transitions to Ended once the round counter reaches the
// configured maximum, broadcasting the final scores.
func (g *MathGame) checkGameOver() bool {
	g.mu.Lock()
	if g.ended || g.round < g.maxRounds {
		g.mu.Unlock()
		return g.ended
	}
	g.ended = true
	order := make([]core.Worker, len(g.order))
	copy(order, g.order)
	scores := make(map[string]int, len(g.scores))
	for k, v := range g.scores {
		scores[k] = v
	}
	g.mu.Unlock()

	g.sched.Stop()
	g.room.Broadcast("Game over! Final scores:")
	g.room.Broadcast(formatScores(order, scores))

	if winner := topScorer(order, scores); winner != nil {
		g.room.Broadcast("Winner: " + winner.Addr())
		if g.players != nil && winner.Identity() != "" {
			g.players.AddVictory(winner.Identity())
		}
	}
	g.logger.Info("game over", "room", g.room.Name())
	return true
}

func formatScores(order []core.Worker, scores map[string]int) string {
	parts := make([]string, 0, len(order))
	for _, w := range order {
		parts = append(parts, fmt.Sprintf("%s: %d", w.Addr(), scores[w.ID()]))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

// topScorer returns the highest scorer, or nil on a tie for first place.
func topScorer(order []core.Worker, scores map[string]int) core.Worker {
	var best core.Worker
	bestScore := -1
	tied := false
	for _, w := range order {
		s := scores[w.ID()]
		switch {
		case s > bestScore:
			best, bestScore, tied = w, s, false
		case s == bestScore:
			tied = true
		}
	}
	if tied {
		return nil
	}
	return best
}
