package model

import "time"

// Phase is the room's position in the game state machine.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhasePlaying  Phase = "playing"
	PhaseVoting   Phase = "voting"
	PhaseSpyGuess Phase = "spy_guess"
	PhaseResults  Phase = "results"
)

// InRound reports whether a GameState exists for this phase.
func (p Phase) InRound() bool {
	return p == PhasePlaying || p == PhaseVoting || p == PhaseSpyGuess
}

// RoomConfig holds the host-tunable settings.
type RoomConfig struct {
	MaxPlayers int `json:"maxPlayers" bson:"maxPlayers"`
	SpyCount   int `json:"spyCount" bson:"spyCount"`
}

// Room is the persistent container for one game instance.
type Room struct {
	Code           string     `json:"code" bson:"code"`
	HostPlayerID   string     `json:"hostPlayerId" bson:"hostPlayerId"`
	GameType       string     `json:"gameType" bson:"gameType"`
	Config         RoomConfig `json:"config" bson:"config"`
	Phase          Phase      `json:"phase" bson:"phase"`
	CreatedAt      time.Time  `json:"createdAt" bson:"createdAt"`
	LastActivityAt time.Time  `json:"lastActivityAt" bson:"lastActivityAt"`
	RoundsPlayed   int        `json:"roundsPlayed" bson:"roundsPlayed"`
	// PlayerOrder preserves join order; host migration promotes the
	// earliest remaining entry.
	PlayerOrder []string `json:"playerOrder" bson:"playerOrder"`
}

// RoomInfo is the administrative GET view of a room.
type RoomInfo struct {
	RoomCode    string `json:"roomCode"`
	GameType    string `json:"gameType"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
	Phase       Phase  `json:"phase"`
	IsJoinable  bool   `json:"isJoinable"`
}

// Info derives the administrative view for the given live player count.
func (r *Room) Info(playerCount int) *RoomInfo {
	return &RoomInfo{
		RoomCode:    r.Code,
		GameType:    r.GameType,
		PlayerCount: playerCount,
		MaxPlayers:  r.Config.MaxPlayers,
		Phase:       r.Phase,
		IsJoinable:  r.Phase == PhaseLobby && playerCount < r.Config.MaxPlayers,
	}
}

// RoomSnapshot is the aggregate persisted per room code.
type RoomSnapshot struct {
	Room    *Room              `json:"room" bson:"room"`
	Players map[string]*Player `json:"players" bson:"players"`
	Kicked  []string           `json:"kicked" bson:"kicked"`
	Game    *GameState         `json:"game,omitempty" bson:"game,omitempty"`
}
