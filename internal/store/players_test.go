package store

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlayers(t *testing.T, fs afero.Fs) *PlayerStore {
	t.Helper()
	s, err := NewPlayerStore(fs, "players.txt", nil)
	require.NoError(t, err)
	return s
}

func TestPlayerRecordRoundTrip(t *testing.T) {
	p := Player{Username: "alice", Password: "pw", Victories: 3, Resolved: 7}
	line, err := encodePlayer(p)
	require.NoError(t, err)
	assert.Equal(t, "alice pw 3 7", line)

	got, err := decodePlayer(line)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestDecodeFieldsRejectsMalformedRecords(t *testing.T) {
	_, err := decodeFields("alice pw 3", playerSchema)
	assert.Error(t, err, "field count must match the schema")

	_, err = decodeFields("alice pw three 7", playerSchema)
	assert.Error(t, err, "counters must be integers")
}

func TestRegisterAndAuthenticate(t *testing.T) {
	s := newTestPlayers(t, afero.NewMemMapFs())

	require.True(t, s.Register("alice", "pw"))
	assert.False(t, s.Register("alice", "other"), "usernames are unique")
	assert.False(t, s.Register("", "pw"))
	assert.False(t, s.Register("bad name", "pw"), "the separator cannot appear in a field")
	assert.Equal(t, 1, s.Len())

	_, ok := s.Authenticate("alice", "pw")
	assert.True(t, ok)
	_, ok = s.Authenticate("alice", "wrong")
	assert.False(t, ok)
	_, ok = s.Authenticate("bob", "pw")
	assert.False(t, ok)
}

func TestCountersPersistAcrossInstances(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newTestPlayers(t, fs)
	require.True(t, s.Register("alice", "pw"))
	s.AddResolved("alice")
	s.AddResolved("alice")
	s.AddVictory("alice")

	reopened := newTestPlayers(t, fs)
	p, ok := reopened.Get("alice")
	require.True(t, ok)
	assert.Equal(t, 2, p.Resolved)
	assert.Equal(t, 1, p.Victories)
}

func TestUpdateUnknownPlayerIsNoop(t *testing.T) {
	s := newTestPlayers(t, afero.NewMemMapFs())
	s.AddVictory("ghost")
	assert.Equal(t, 0, s.Len())
}

func TestLoadSkipsInvalidLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "alice pw 1 2\nbroken line\nbob pw 0 0\n\n"
	require.NoError(t, afero.WriteFile(fs, "players.txt", []byte(content), 0o644))

	s := newTestPlayers(t, fs)
	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("alice")
	assert.True(t, ok)
	_, ok = s.Get("bob")
	assert.True(t, ok)
}

func TestMissingFileIsCreated(t *testing.T) {
	fs := afero.NewMemMapFs()
	newTestPlayers(t, fs)
	exists, err := afero.Exists(fs, "players.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}
