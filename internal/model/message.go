package model

import "time"

// Message is one chat entry in a round's append-only log. Immutable once
// created.
type Message struct {
	ID              string    `json:"id" bson:"id"`
	RoundNumber     int       `json:"roundNumber" bson:"roundNumber"`
	PlayerID        string    `json:"playerId" bson:"playerId"`
	PlayerName      string    `json:"playerName" bson:"playerName"`
	Content         string    `json:"content" bson:"content"`
	IsTurnIndicator bool      `json:"isTurnIndicator" bson:"isTurnIndicator"`
	Timestamp       time.Time `json:"timestamp" bson:"timestamp"`
}
