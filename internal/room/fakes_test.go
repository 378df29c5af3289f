package room

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Greenrenge/cf-boardgames-sub000/internal/cache"
	"github.com/Greenrenge/cf-boardgames-sub000/internal/model"
)

// Hand-written fakes for the storage/cache interfaces; the real backends
// are exercised only through these seams.

// fakeStore keeps snapshots as serialized bytes so loads return copies,
// matching the isolation a real document store provides.
type fakeStore struct {
	mu    sync.Mutex
	snaps map[string][]byte
	saves int
	wipes int
	fail  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{snaps: make(map[string][]byte)}
}

func (f *fakeStore) Load(ctx context.Context, code string) (*model.RoomSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("store down")
	}
	raw, ok := f.snaps[code]
	if !ok {
		return nil, nil
	}
	var snap model.RoomSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (f *fakeStore) Save(ctx context.Context, code string, snap *model.RoomSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("store down")
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	f.saves++
	f.snaps[code] = raw
	return nil
}

func (f *fakeStore) Wipe(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wipes++
	delete(f.snaps, code)
	return nil
}

type fakeWakes struct {
	mu        sync.Mutex
	scheduled map[string]time.Time
	cancelled int
	due       []string
}

func newFakeWakes() *fakeWakes {
	return &fakeWakes{scheduled: make(map[string]time.Time)}
}

func (f *fakeWakes) Schedule(ctx context.Context, code string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled[code] = at
	return nil
}

func (f *fakeWakes) Cancel(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled++
	delete(f.scheduled, code)
	return nil
}

func (f *fakeWakes) PopDue(ctx context.Context, now time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	due := f.due
	f.due = nil
	return due, nil
}

func (f *fakeWakes) scheduledFor(code string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.scheduled[code]
	return at, ok
}

type fakeBoard struct {
	mu     sync.Mutex
	scores map[string]int
	names  map[string]string
	wipes  int
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{scores: make(map[string]int), names: make(map[string]string)}
}

func (f *fakeBoard) UpdateScore(ctx context.Context, roomCode, playerID string, score int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores[playerID] = score
	return nil
}

func (f *fakeBoard) SetName(ctx context.Context, roomCode, playerID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names[playerID] = name
	return nil
}

func (f *fakeBoard) GetTop(ctx context.Context, roomCode string, limit int) ([]cache.LeaderboardEntry, error) {
	return nil, nil
}

func (f *fakeBoard) Wipe(ctx context.Context, roomCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wipes++
	return nil
}

type fakeConn struct {
	mu     sync.Mutex
	msgs   [][]byte
	closed bool
	fail   bool
}

func (f *fakeConn) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail || f.closed {
		return errors.New("connection dead")
	}
	f.msgs = append(f.msgs, data)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// envelopes decodes everything the connection received, in order.
func (f *fakeConn) envelopes() []model.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Envelope, 0, len(f.msgs))
	for _, raw := range f.msgs {
		var env model.Envelope
		if err := json.Unmarshal(raw, &env); err == nil {
			out = append(out, env)
		}
	}
	return out
}

func (f *fakeConn) types() []string {
	envs := f.envelopes()
	out := make([]string, len(envs))
	for i, e := range envs {
		out[i] = e.Type
	}
	return out
}

// last returns the payload of the most recent envelope of the given type.
func (f *fakeConn) last(t model.ServerMessageType) (json.RawMessage, bool) {
	envs := f.envelopes()
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Type == string(t) {
			return envs[i].Payload, true
		}
	}
	return nil, false
}

func (f *fakeConn) has(t model.ServerMessageType) bool {
	_, ok := f.last(t)
	return ok
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// testClock drives the coordinator's notion of now.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
