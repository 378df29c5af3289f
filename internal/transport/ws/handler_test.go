package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
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

type nopBoard struct{}

func (nopBoard) UpdateScore(ctx context.Context, roomCode, playerID string, score int) error {
	return nil
}
func (nopBoard) SetName(ctx context.Context, roomCode, playerID, name string) error { return nil }
func (nopBoard) GetTop(ctx context.Context, roomCode string, limit int) ([]cache.LeaderboardEntry, error) {
	return nil, nil
}
func (nopBoard) Wipe(ctx context.Context, roomCode string) error { return nil }

func TestConnectionSendBuffering(t *testing.T) {
	// No writePump draining: the buffer fills and Send must not block.
	c := newConnection(nil)
	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, c.Send([]byte("x")))
	}
	assert.ErrorIs(t, c.Send([]byte("overflow")), errSendBufferFull)

	c.Close()
	c.Close() // idempotent
	assert.ErrorIs(t, c.Send([]byte("after close")), errConnClosed)
}

func dialRoom(t *testing.T, srv *httptest.Server, code string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws/rooms/" + code
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) model.Envelope {
	t.Helper()
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env model.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestRoomWSJoinFlow(t *testing.T) {
	registry := room.NewRegistry(&memStore{snaps: make(map[string][]byte)}, nopWakes{}, nopBoard{})
	r := mux.NewRouter()
	r.HandleFunc("/v1/ws/rooms/{code}", NewHandler(registry).RoomWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, registry.Get("SOCKS1").Init(ctx, "host", "Hana", "easy"))

	conn := dialRoom(t, srv, "SOCKS1")

	// A malformed frame gets a private error and keeps the socket open.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	env := readEnvelope(t, conn)
	require.Equal(t, string(model.EvtError), env.Type)
	var perr model.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &perr))
	assert.Equal(t, model.ErrInvalidRequest, perr.Code)

	payload, err := json.Marshal(model.JoinPayload{Name: "Hana"})
	require.NoError(t, err)
	join, err := json.Marshal(model.Envelope{
		Type:     string(model.CmdJoin),
		Payload:  payload,
		PlayerID: "host",
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, join))

	env = readEnvelope(t, conn)
	require.Equal(t, string(model.EvtRoomState), env.Type)
	var state model.RoomStatePayload
	require.NoError(t, json.Unmarshal(env.Payload, &state))
	assert.Equal(t, "SOCKS1", state.RoomCode)
	assert.Equal(t, "host", state.HostID)
	require.Len(t, state.Players, 1)
	assert.Equal(t, "Hana", state.Players[0].Name)
}

func TestRoomWSUnknownRoom(t *testing.T) {
	registry := room.NewRegistry(&memStore{snaps: make(map[string][]byte)}, nopWakes{}, nopBoard{})
	r := mux.NewRouter()
	r.HandleFunc("/v1/ws/rooms/{code}", NewHandler(registry).RoomWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dialRoom(t, srv, "GHOST1")
	join, err := json.Marshal(model.Envelope{Type: string(model.CmdJoin), PlayerID: "p1"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, join))

	env := readEnvelope(t, conn)
	require.Equal(t, string(model.EvtError), env.Type)
	var perr model.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &perr))
	assert.Equal(t, model.ErrRoomNotFound, perr.Code)
}
