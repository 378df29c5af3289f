package model

import "time"

// Vote is one voter's suspicion for a round. SuspectID is a player id or
// SuspectSkip. Immutable; at most one per voter per round.
type Vote struct {
	ID          string    `json:"id" bson:"id"`
	RoundNumber int       `json:"roundNumber" bson:"roundNumber"`
	VoterID     string    `json:"voterId" bson:"voterId"`
	SuspectID   string    `json:"suspectId" bson:"suspectId"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}
