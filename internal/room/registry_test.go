package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Greenrenge/cf-boardgames-sub000/internal/model"
)

func TestRegistryReturnsSameInstance(t *testing.T) {
	r := NewRegistry(newFakeStore(), newFakeWakes(), newFakeBoard())

	a := r.Get("AAAA11")
	b := r.Get("AAAA11")
	other := r.Get("BBBB22")

	assert.Same(t, a, b)
	assert.NotSame(t, a, other)
}

func TestRegistryDropsWipedRooms(t *testing.T) {
	store := newFakeStore()
	wakes := newFakeWakes()
	r := NewRegistry(store, wakes, newFakeBoard())

	c := r.Get("CCCC33")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Init(ctx, "host", "Hana", "easy"))

	// Push the room past its inactivity bound and let the sweep wipe it.
	require.NoError(t, c.doSync(ctx, func() {
		c.room.LastActivityAt = c.now().Add(-roomTTL - time.Hour)
	}))
	c.Sweep()

	require.Eventually(t, func() bool {
		r.mu.RLock()
		_, alive := r.rooms["CCCC33"]
		r.mu.RUnlock()
		return !alive
	}, 2*time.Second, 10*time.Millisecond, "a wiped room must leave the registry")

	// A later Get starts over with a fresh, empty coordinator.
	fresh := r.Get("CCCC33")
	assert.NotSame(t, c, fresh)
	_, err := fresh.Info(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryEvictsUnknownCodeLookups(t *testing.T) {
	r := NewRegistry(newFakeStore(), newFakeWakes(), newFakeBoard())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, code := range []string{"AAAA00", "BBBB00", "CCCC00"} {
		_, err := r.Get(code).Info(ctx)
		require.ErrorIs(t, err, ErrNotFound)
	}

	require.Eventually(t, func() bool {
		r.mu.RLock()
		n := len(r.rooms)
		r.mu.RUnlock()
		return n == 0
	}, 2*time.Second, 10*time.Millisecond, "unknown codes must not pin registry entries")

	// The code stays usable: a later create gets a fresh coordinator.
	c := r.Get("AAAA00")
	require.NoError(t, c.Init(ctx, "host", "Hana", "easy"))
	info, err := c.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AAAA00", info.RoomCode)
}

func TestSchedulerDispatchesDueWakes(t *testing.T) {
	store := newFakeStore()
	wakes := newFakeWakes()
	registry := NewRegistry(store, wakes, newFakeBoard())
	s := NewScheduler(wakes, registry, 50*time.Millisecond)

	now := time.Now()
	snap := &model.RoomSnapshot{
		Room: &model.Room{
			Code:           "DDDD44",
			HostPlayerID:   "host",
			Phase:          model.PhaseLobby,
			Config:         model.RoomConfig{MaxPlayers: 8, SpyCount: 1},
			CreatedAt:      now,
			LastActivityAt: now,
		},
	}
	require.NoError(t, store.Save(context.Background(), "DDDD44", snap))
	wakes.mu.Lock()
	wakes.due = []string{"DDDD44"}
	wakes.mu.Unlock()

	s.Start()
	defer s.Stop()

	// The sweep on a live room schedules the next wake; seeing it proves
	// the dispatch reached the coordinator.
	require.Eventually(t, func() bool {
		_, ok := wakes.scheduledFor("DDDD44")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}
