package room

import (
	"sync"

	"github.com/Greenrenge/cf-boardgames-sub000/internal/cache"
	"github.com/Greenrenge/cf-boardgames-sub000/internal/repository"
)

// Registry creates-or-fetches the live coordinator for a room code. It is
// the only owner of coordinator instances; there is no global room state.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Coordinator

	store repository.RoomStore
	wakes cache.WakeCache
	board cache.LeaderboardCache
}

// NewRegistry creates an empty registry over the given backends.
func NewRegistry(store repository.RoomStore, wakes cache.WakeCache, board cache.LeaderboardCache) *Registry {
	return &Registry{
		rooms: make(map[string]*Coordinator),
		store: store,
		wakes: wakes,
		board: board,
	}
}

// Get returns the coordinator for the code, creating and starting it on
// first reference. The coordinator lazy-loads its snapshot; one that turns
// out to have no room retires itself and leaves the registry again.
func (r *Registry) Get(code string) *Coordinator {
	r.mu.RLock()
	c, ok := r.rooms[code]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.rooms[code]; ok {
		return c
	}
	c = New(code, r.store, r.wakes, r.board, r.remove)
	r.rooms[code] = c
	c.Start()
	return c
}

func (r *Registry) remove(code string) {
	r.mu.Lock()
	delete(r.rooms, code)
	r.mu.Unlock()
}
