package room

import (
	"context"
	"log"
	"time"

	"github.com/Greenrenge/cf-boardgames-sub000/internal/cache"
)

// Scheduler turns due wake entries into sweep deliveries. Because the wake
// schedule lives in redis, sweeps pending at shutdown fire again after a
// restart; the target coordinator recovers its snapshot on first delivery.
type Scheduler struct {
	wakes    cache.WakeCache
	registry *Registry
	interval time.Duration
	stop     chan struct{}
}

// NewScheduler creates a scheduler polling at the given interval.
func NewScheduler(wakes cache.WakeCache, registry *Registry, interval time.Duration) *Scheduler {
	return &Scheduler{
		wakes:    wakes,
		registry: registry,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start launches the poll loop.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop terminates the poll loop. Pending wakes stay in redis.
func (s *Scheduler) Stop() {
	close(s.stop)
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			s.dispatch(now)
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) dispatch(now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	codes, err := s.wakes.PopDue(ctx, now)
	if err != nil {
		log.Printf("scheduler: pop due wakes failed: %v", err)
		return
	}
	for _, code := range codes {
		s.registry.Get(code).Sweep()
	}
}
