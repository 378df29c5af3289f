package model

import "time"

// ConnectionStatus tracks a player's socket liveness.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusReconnecting ConnectionStatus = "reconnecting"
)

// Player is a participant in a room. The id is supplied by the client and
// only has to be unique within the room.
type Player struct {
	ID               string           `json:"id" bson:"id"`
	Name             string           `json:"name" bson:"name"`
	ConnectionStatus ConnectionStatus `json:"connectionStatus" bson:"connectionStatus"`
	Score            int              `json:"score" bson:"score"`
	IsHost           bool             `json:"isHost" bson:"isHost"`
	JoinedAt         time.Time        `json:"joinedAt" bson:"joinedAt"`
	LastSeenAt       time.Time        `json:"lastSeenAt" bson:"lastSeenAt"`
}

// PlayerView is the broadcast-safe projection of a player. Roles never
// appear here; they travel only in private ROLE_ASSIGNMENT messages.
type PlayerView struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	ConnectionStatus ConnectionStatus `json:"connectionStatus"`
	Score            int              `json:"score"`
	IsHost           bool             `json:"isHost"`
}

// PublicView strips everything clients of other players may not see.
func (p *Player) PublicView() PlayerView {
	return PlayerView{
		ID:               p.ID,
		Name:             p.Name,
		ConnectionStatus: p.ConnectionStatus,
		Score:            p.Score,
		IsHost:           p.IsHost,
	}
}
