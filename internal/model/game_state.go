package model

import "time"

// SuspectSkip is the sentinel suspect id for an abstaining vote.
const SuspectSkip = "skip"

// RoleInfo is one role of the selected location, as shown to players.
type RoleInfo struct {
	ID   string `json:"id" bson:"id"`
	Name string `json:"name" bson:"name"`
}

// SelectedLocation is the round's location snapshot. Copied out of the
// catalog at round start so a catalog reload cannot change a live round.
type SelectedLocation struct {
	ID    string     `json:"id" bson:"id"`
	Name  string     `json:"name" bson:"name"`
	Roles []RoleInfo `json:"roles" bson:"roles"`
}

// Assignment is one player's hidden role for the round. Location is nil for
// spies.
type Assignment struct {
	PlayerID        string  `json:"playerId" bson:"playerId"`
	Role            string  `json:"role" bson:"role"`
	LocationID      *string `json:"locationId,omitempty" bson:"locationId,omitempty"`
	IsSpy           bool    `json:"isSpy" bson:"isSpy"`
	IsDuplicateRole bool    `json:"isDuplicateRole" bson:"isDuplicateRole"`
}

// GameState exists only while a round is active (playing, voting, spy_guess)
// plus the results display window.
type GameState struct {
	RoundNumber      int                   `json:"roundNumber" bson:"roundNumber"`
	SelectedLocation SelectedLocation      `json:"selectedLocation" bson:"selectedLocation"`
	Assignments      map[string]Assignment `json:"assignments" bson:"assignments"`
	SpyPlayerIDs     []string              `json:"spyPlayerIds" bson:"spyPlayerIds"`
	TimerStartedAt   time.Time             `json:"timerStartedAt" bson:"timerStartedAt"`
	TimerEndsAt      time.Time             `json:"timerEndsAt" bson:"timerEndsAt"`
	Messages         []Message             `json:"messages" bson:"messages"`
	Votes            []Vote                `json:"votes" bson:"votes"`
	SpyGuess         *string               `json:"spyGuess,omitempty" bson:"spyGuess,omitempty"`
	EliminatedID     *string               `json:"eliminatedId,omitempty" bson:"eliminatedId,omitempty"`
	Resolved         bool                  `json:"resolved" bson:"resolved"`
}

// HasVoted reports whether the voter already has a live vote this round.
func (g *GameState) HasVoted(voterID string) bool {
	for _, v := range g.Votes {
		if v.VoterID == voterID {
			return true
		}
	}
	return false
}

// IsSpy reports whether the player was dealt a spy role this round.
func (g *GameState) IsSpy(playerID string) bool {
	for _, id := range g.SpyPlayerIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

// RemainingSeconds is the whole seconds left on the round timer, floored
// at zero.
func (g *GameState) RemainingSeconds(now time.Time) int {
	left := int(g.TimerEndsAt.Sub(now).Seconds())
	if left < 0 {
		return 0
	}
	return left
}
