package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Greenrenge/cf-boardgames-sub000/internal/cache"
	"github.com/Greenrenge/cf-boardgames-sub000/internal/model"
	"github.com/Greenrenge/cf-boardgames-sub000/internal/room"
)

type memStore struct {
	mu    sync.Mutex
	snaps map[string][]byte
}

func (s *memStore) Load(ctx context.Context, code string) (*model.RoomSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.snaps[code]
	if !ok {
		return nil, nil
	}
	var snap model.RoomSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *memStore) Save(ctx context.Context, code string, snap *model.RoomSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.snaps[code] = raw
	s.mu.Unlock()
	return nil
}

func (s *memStore) Wipe(ctx context.Context, code string) error {
	s.mu.Lock()
	delete(s.snaps, code)
	s.mu.Unlock()
	return nil
}

type nopWakes struct{}

func (nopWakes) Schedule(ctx context.Context, roomCode string, at time.Time) error { return nil }
func (nopWakes) Cancel(ctx context.Context, roomCode string) error                 { return nil }
func (nopWakes) PopDue(ctx context.Context, now time.Time) ([]string, error)       { return nil, nil }

type memBoard struct {
	entries []cache.LeaderboardEntry
}

func (b *memBoard) UpdateScore(ctx context.Context, roomCode, playerID string, score int) error {
	return nil
}

func (b *memBoard) SetName(ctx context.Context, roomCode, playerID, name string) error { return nil }

func (b *memBoard) GetTop(ctx context.Context, roomCode string, limit int) ([]cache.LeaderboardEntry, error) {
	return b.entries, nil
}

func (b *memBoard) Wipe(ctx context.Context, roomCode string) error { return nil }

func newTestServer(t *testing.T, board *memBoard) *httptest.Server {
	t.Helper()
	store := &memStore{snaps: make(map[string][]byte)}
	registry := room.NewRegistry(store, nopWakes{}, board)
	srv := httptest.NewServer(NewRouter(&Container{Registry: registry, Leaderboard: board}))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func TestCreateRoom(t *testing.T) {
	srv := newTestServer(t, &memBoard{})

	resp := postJSON(t, srv.URL+"/v1/rooms", map[string]string{
		"hostPlayerId":   "host-1",
		"hostPlayerName": "Hana",
		"gameType":       "easy",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.Len(t, created["roomCode"], 6)

	// The new room answers the info endpoint immediately.
	infoResp, err := http.Get(srv.URL + "/v1/rooms/" + created["roomCode"])
	require.NoError(t, err)
	defer infoResp.Body.Close()
	require.Equal(t, http.StatusOK, infoResp.StatusCode)

	var info model.RoomInfo
	require.NoError(t, json.NewDecoder(infoResp.Body).Decode(&info))
	assert.Equal(t, created["roomCode"], info.RoomCode)
	assert.Equal(t, "easy", info.GameType)
	assert.Equal(t, model.PhaseLobby, info.Phase)
	assert.True(t, info.IsJoinable)
}

func TestCreateRoomRequiresHost(t *testing.T) {
	srv := newTestServer(t, &memBoard{})

	resp := postJSON(t, srv.URL+"/v1/rooms", map[string]string{"gameType": "easy"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateRoomWithExplicitCode(t *testing.T) {
	srv := newTestServer(t, &memBoard{})

	body := map[string]string{
		"hostPlayerId": "host-1",
		"gameType":     "easy",
		"roomCode":     "FIXED1",
	}
	resp := postJSON(t, srv.URL+"/v1/rooms", body)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Idempotent: the same create again is still a success.
	resp = postJSON(t, srv.URL+"/v1/rooms", body)
	defer resp.Body.Close()
	var created map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "FIXED1", created["roomCode"])
}

func TestInfoUnknownRoom(t *testing.T) {
	srv := newTestServer(t, &memBoard{})

	resp, err := http.Get(srv.URL + "/v1/rooms/NOPE99")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ROOM_NOT_FOUND", body["code"])
}

func TestPatchConfig(t *testing.T) {
	srv := newTestServer(t, &memBoard{})

	resp := postJSON(t, srv.URL+"/v1/rooms", map[string]string{
		"hostPlayerId": "host-1",
		"gameType":     "easy",
		"roomCode":     "PATCH1",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	patch := func(body string) *http.Response {
		req, err := http.NewRequest(http.MethodPatch, srv.URL+"/v1/rooms/PATCH1/config", bytes.NewBufferString(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		out, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return out
	}

	ok := patch(`{"maxPlayers":12,"spyCount":2}`)
	defer ok.Body.Close()
	require.Equal(t, http.StatusOK, ok.StatusCode)
	var cfg model.RoomConfig
	require.NoError(t, json.NewDecoder(ok.Body).Decode(&cfg))
	assert.Equal(t, 12, cfg.MaxPlayers)
	assert.Equal(t, 2, cfg.SpyCount)

	bad := patch(`{"spyCount":9}`)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	missing, err := http.NewRequest(http.MethodPatch, srv.URL+"/v1/rooms/NOPE99/config", bytes.NewBufferString(`{"maxPlayers":10}`))
	require.NoError(t, err)
	gone, err := http.DefaultClient.Do(missing)
	require.NoError(t, err)
	defer gone.Body.Close()
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)
}

func TestLeaderboard(t *testing.T) {
	board := &memBoard{entries: []cache.LeaderboardEntry{
		{PlayerID: "p1", Name: "Hana", Score: 5, Rank: 1},
		{PlayerID: "p2", Name: "Ben", Score: 3, Rank: 2},
	}}
	srv := newTestServer(t, board)

	resp, err := http.Get(srv.URL + "/v1/rooms/ANYR00/leaderboard")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Leaderboard []cache.LeaderboardEntry `json:"leaderboard"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Leaderboard, 2)
	assert.Equal(t, "Hana", body.Leaderboard[0].Name)
	assert.Equal(t, 1, body.Leaderboard[0].Rank)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &memBoard{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &memBoard{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/v1/rooms", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
