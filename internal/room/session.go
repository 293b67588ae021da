package room

import "github.com/mathline/server/internal/core"

// Session is the pluggable activity a room hosts. Its lifetime is driven by
// membership transitions: Start fires when the room fills, End when the room
// can no longer continue.
type Session interface {
	Start()
	Ended() bool
	End()
}

// Game is a turn-based session. Beyond the plain Session lifecycle it tracks
// whose turn it is and reacts to members leaving mid-game.
type Game interface {
	Session
	TurnOf() core.Worker
	HandleDisconnect(w core.Worker)
}

// SessionFactory builds the concrete session for a freshly created room. The
// rounds parameter is session-specific configuration passed through from the
// create operation.
type SessionFactory func(r *Room, rounds int) Session
