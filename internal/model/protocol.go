package model

import (
	"encoding/json"
	"time"
)

// ClientMessageType enumerates commands a client may send over the socket.
type ClientMessageType string

const (
	CmdJoin      ClientMessageType = "JOIN"
	CmdStartGame ClientMessageType = "START_GAME"
	CmdChat      ClientMessageType = "CHAT"
	CmdVote      ClientMessageType = "VOTE"
	CmdSpyGuess  ClientMessageType = "SPY_GUESS"
	CmdLeave     ClientMessageType = "LEAVE"
	CmdPing      ClientMessageType = "PING"
	CmdSkipTimer ClientMessageType = "SKIP_TIMER"
	CmdResetGame ClientMessageType = "RESET_GAME"
	CmdKick      ClientMessageType = "KICK"
)

// ServerMessageType enumerates events the room pushes to clients.
type ServerMessageType string

const (
	EvtRoomState          ServerMessageType = "ROOM_STATE"
	EvtPlayerJoined       ServerMessageType = "PLAYER_JOINED"
	EvtPlayerDisconnected ServerMessageType = "PLAYER_DISCONNECTED"
	EvtPlayerLeft         ServerMessageType = "PLAYER_LEFT"
	EvtPlayerReconnected  ServerMessageType = "PLAYER_RECONNECTED"
	EvtHostChanged        ServerMessageType = "HOST_CHANGED"
	EvtGameStarted        ServerMessageType = "GAME_STARTED"
	EvtRoleAssignment     ServerMessageType = "ROLE_ASSIGNMENT"
	EvtMessage            ServerMessageType = "MESSAGE"
	EvtPhaseChange        ServerMessageType = "PHASE_CHANGE"
	EvtVoteCast           ServerMessageType = "VOTE_CAST"
	EvtVotingResults      ServerMessageType = "VOTING_RESULTS"
	EvtSpyGuessResult     ServerMessageType = "SPY_GUESS_RESULT"
	EvtTimerTick          ServerMessageType = "TIMER_TICK"
	EvtRoomConfigUpdate   ServerMessageType = "ROOM_CONFIG_UPDATE"
	EvtKicked             ServerMessageType = "KICKED"
	EvtError              ServerMessageType = "ERROR"
)

// ErrorCode is a stable machine-readable reason sent with EvtError.
type ErrorCode string

const (
	ErrRoomNotFound       ErrorCode = "ROOM_NOT_FOUND"
	ErrPlayerKicked       ErrorCode = "PLAYER_KICKED"
	ErrRoomFull           ErrorCode = "ROOM_FULL"
	ErrGameInProgress     ErrorCode = "GAME_IN_PROGRESS"
	ErrNotHost            ErrorCode = "NOT_HOST"
	ErrInvalidPlayerCount ErrorCode = "INVALID_PLAYER_COUNT"
	ErrInvalidMessage     ErrorCode = "INVALID_MESSAGE"
	ErrMessageTooLong     ErrorCode = "MESSAGE_TOO_LONG"
	ErrAlreadyVoted       ErrorCode = "ALREADY_VOTED"
	ErrInvalidSuspect     ErrorCode = "INVALID_SUSPECT"
	ErrNotSpy             ErrorCode = "NOT_SPY"
	ErrInvalidPhase       ErrorCode = "INVALID_PHASE"
	ErrInvalidLocation    ErrorCode = "INVALID_LOCATION"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrPlayerNotFound     ErrorCode = "PLAYER_NOT_FOUND"
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrInternal           ErrorCode = "INTERNAL_ERROR"
)

// Envelope is the wire format in both directions.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
	PlayerID  string          `json:"playerId,omitempty"`
}

// NewServerEnvelope marshals an outbound event, stamping the current time.
func NewServerEnvelope(t ServerMessageType, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(&Envelope{
		Type:      string(t),
		Payload:   raw,
		Timestamp: time.Now().UnixMilli(),
	})
}

// Client command payloads.

type JoinPayload struct {
	Name string `json:"name"`
}

type ChatPayload struct {
	Content         string `json:"content"`
	IsTurnIndicator bool   `json:"isTurnIndicator,omitempty"`
}

type VotePayload struct {
	SuspectID string `json:"suspectId"`
}

type SpyGuessPayload struct {
	LocationID string `json:"locationId"`
}

type KickPayload struct {
	TargetID string `json:"targetId"`
}

// Server event payloads.

type RoomStatePayload struct {
	RoomCode    string       `json:"roomCode"`
	GameType    string       `json:"gameType"`
	HostID      string       `json:"hostId"`
	Phase       Phase        `json:"phase"`
	Config      RoomConfig   `json:"config"`
	Players     []PlayerView `json:"players"`
	RoundNumber int          `json:"roundNumber,omitempty"`
}

type PlayerEventPayload struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name,omitempty"`
}

type HostChangedPayload struct {
	HostID string `json:"hostId"`
	Name   string `json:"name"`
}

type GameStartedPayload struct {
	RoundNumber int   `json:"roundNumber"`
	TimerEndsAt int64 `json:"timerEndsAt"`
	DurationSec int   `json:"durationSec"`
}

// RoleAssignmentPayload is unicast to exactly one player. Spies get no
// location but do get the full candidate list to guess from.
type RoleAssignmentPayload struct {
	RoundNumber     int               `json:"roundNumber"`
	Role            string            `json:"role"`
	IsSpy           bool              `json:"isSpy"`
	IsDuplicateRole bool              `json:"isDuplicateRole,omitempty"`
	Location        *SelectedLocation `json:"location,omitempty"`
	AllLocations    []string          `json:"allLocations,omitempty"`
	RemainingSec    int               `json:"remainingSec"`
	Messages        []Message         `json:"messages,omitempty"`
}

type PhaseChangePayload struct {
	Phase Phase `json:"phase"`
}

type VoteCastPayload struct {
	VotesCount   int            `json:"votesCount"`
	TotalPlayers int            `json:"totalPlayers"`
	Tally        map[string]int `json:"tally"`
}

type VotingResultsPayload struct {
	EliminatedPlayerID *string        `json:"eliminatedPlayerId"`
	Tally              map[string]int `json:"tally"`
	AllSpiesCaught     bool           `json:"allSpiesCaught"`
	SpyPlayerIDs       []string       `json:"spyPlayerIds,omitempty"`
	LocationName       string         `json:"locationName,omitempty"`
}

type SpyGuessResultPayload struct {
	Correct             bool     `json:"correct"`
	GuessedLocationName string   `json:"guessedLocationName"`
	ActualLocationName  string   `json:"actualLocationName"`
	SpyPlayerIDs        []string `json:"spyPlayerIds"`
}

type TimerTickPayload struct {
	RemainingSec int `json:"remainingSec"`
}

type KickedPayload struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}
