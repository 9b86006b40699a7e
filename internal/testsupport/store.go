package testsupport

import (
	"context"
	"testing"
	"time"

	"shortline/internal/config"
	"shortline/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewChannel creates a channel for tests using the provided store.
func NewChannel(t testing.TB, st *store.Store, name string) *store.Channel {
	t.Helper()

	channel, err := st.CreateChannel(context.Background(), store.NewChannelParams{
		Name:         name,
		Theme:        "test theme",
		Tone:         "neutral",
		PostInterval: 6 * time.Hour,
		NextPostAt:   time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("store.CreateChannel: %v", err)
	}
	return channel
}
