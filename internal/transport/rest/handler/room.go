package handler

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Greenrenge/cf-boardgames-sub000/internal/cache"
	"github.com/Greenrenge/cf-boardgames-sub000/internal/room"
)

// RoomHandler handles the administrative room endpoints.
type RoomHandler struct {
	registry    *room.Registry
	leaderboard cache.LeaderboardCache
}

// NewRoomHandler creates a new room handler.
func NewRoomHandler(registry *room.Registry, leaderboard cache.LeaderboardCache) *RoomHandler {
	return &RoomHandler{
		registry:    registry,
		leaderboard: leaderboard,
	}
}

// CreateRoomRequest is the request body for creating a room.
type CreateRoomRequest struct {
	HostPlayerID   string `json:"hostPlayerId"`
	HostPlayerName string `json:"hostPlayerName"`
	GameType       string `json:"gameType"`
	// RoomCode makes creation idempotent for gateways that already
	// resolved a code; absent, a fresh code is generated.
	RoomCode string `json:"roomCode,omitempty"`
}

// Create handles POST /v1/rooms.
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.HostPlayerID == "" {
		writeError(w, http.StatusBadRequest, "hostPlayerId is required")
		return
	}

	code := req.RoomCode
	if code == "" {
		generated, err := h.generateRoomCode(r)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to generate room code")
			return
		}
		code = generated
	}

	if err := h.registry.Get(code).Init(r.Context(), req.HostPlayerID, req.HostPlayerName, req.GameType); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"roomCode": code,
	})
}

// Info handles GET /v1/rooms/{code}.
func (h *RoomHandler) Info(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	info, err := h.registry.Get(code).Info(r.Context())
	if err != nil {
		if errors.Is(err, room.ErrNotFound) {
			writeErrorCode(w, http.StatusNotFound, "ROOM_NOT_FOUND", "room not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// PatchConfigRequest is the request body for config changes.
type PatchConfigRequest struct {
	MaxPlayers *int `json:"maxPlayers,omitempty"`
	SpyCount   *int `json:"spyCount,omitempty"`
}

// PatchConfig handles PATCH /v1/rooms/{code}/config.
func (h *RoomHandler) PatchConfig(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var req PatchConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, err := h.registry.Get(code).PatchConfig(r.Context(), req.MaxPlayers, req.SpyCount)
	if err != nil {
		switch {
		case errors.Is(err, room.ErrNotFound):
			writeErrorCode(w, http.StatusNotFound, "ROOM_NOT_FOUND", "room not found")
		case errors.Is(err, room.ErrInvalidConfig):
			writeErrorCode(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// Leaderboard handles GET /v1/rooms/{code}/leaderboard.
func (h *RoomHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	entries, err := h.leaderboard.GetTop(r.Context(), code, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"leaderboard": entries,
	})
}

// generateRoomCode creates a 6-char alphanumeric code, retrying on the
// unlikely collision with an initialized room.
func (h *RoomHandler) generateRoomCode(r *http.Request) (string, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	const codeLen = 6

	for attempts := 0; attempts < 10; attempts++ {
		b := make([]byte, codeLen)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}

		code := make([]byte, codeLen)
		for i := range code {
			code[i] = chars[int(b[i])%len(chars)]
		}
		codeStr := string(code)

		// Check uniqueness
		if _, err := h.registry.Get(codeStr).Info(r.Context()); errors.Is(err, room.ErrNotFound) {
			return codeStr, nil
		}
	}

	return "", fmt.Errorf("failed to generate unique room code")
}
