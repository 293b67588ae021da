package service

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct{ name string }

type fakeBroker struct{ name string }

func TestRegistryLookupReturnsRegisteredInstance(t *testing.T) {
	store := &fakeStore{name: "players"}
	r := NewRegistry(nil, func(r *Registry) {
		Register(r, store)
	})

	got, ok := Lookup[*fakeStore](r)
	require.True(t, ok)
	assert.Same(t, store, got)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryMissLogsErrorAndReturnsAbsent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := NewRegistry(logger, func(r *Registry) {
		Register(r, &fakeStore{})
	})

	got, ok := Lookup[*fakeBroker](r)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.Contains(t, buf.String(), "service not registered")
}

func TestRegistryIsWriteOnce(t *testing.T) {
	first := &fakeStore{name: "first"}
	second := &fakeStore{name: "second"}
	r := NewRegistry(nil, func(r *Registry) {
		Register(r, first)
		Register(r, second)
	})

	got, ok := Lookup[*fakeStore](r)
	require.True(t, ok)
	assert.Same(t, first, got)
}
