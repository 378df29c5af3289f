// Package game holds the round rules: role assignment, vote tallying and
// scoring. Everything here is pure so the coordinator stays the only place
// with side effects.
package game

import (
	"fmt"
	"math/rand"

	"github.com/Greenrenge/cf-boardgames-sub000/internal/model"
)

const (
	// MinPlayers is required to start a round.
	MinPlayers = 3
	// MaxSpies caps the configurable spy count.
	MaxSpies = 3
	// MinNonSpiesPerSpy is the player-to-spy ratio enforced at config time.
	MinNonSpiesPerSpy = 3

	// SpyRole is the role string dealt to spies; spies get no location.
	SpyRole = "Spy"

	// Scoring.
	PointsNonSpyWin     = 1
	PointsSpyGuessRight = 2
)

// ValidateSpyCount checks the 1..MaxSpies range and the non-spy ratio
// against the room capacity.
func ValidateSpyCount(spyCount, maxPlayers int) error {
	if spyCount < 1 || spyCount > MaxSpies {
		return fmt.Errorf("spy count must be between 1 and %d", MaxSpies)
	}
	if maxPlayers-spyCount < spyCount*MinNonSpiesPerSpy {
		return fmt.Errorf("need at least %d non-spies per spy", MinNonSpiesPerSpy)
	}
	return nil
}

// AssignRoles shuffles the player ids uniformly, deals the first spyCount as
// spies and the rest cyclically from the location's role list. A location
// with fewer roles than non-spies yields duplicates, flagged for the UI.
func AssignRoles(playerIDs []string, loc model.SelectedLocation, spyCount int, rng *rand.Rand) (map[string]model.Assignment, []string) {
	shuffled := make([]string, len(playerIDs))
	copy(shuffled, playerIDs)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	assignments := make(map[string]model.Assignment, len(shuffled))
	spies := make([]string, 0, spyCount)

	for i, id := range shuffled {
		if i < spyCount {
			spies = append(spies, id)
			assignments[id] = model.Assignment{
				PlayerID: id,
				Role:     SpyRole,
				IsSpy:    true,
			}
			continue
		}
		roleIdx := i - spyCount
		locID := loc.ID
		assignments[id] = model.Assignment{
			PlayerID:        id,
			Role:            loc.Roles[roleIdx%len(loc.Roles)].Name,
			LocationID:      &locID,
			IsDuplicateRole: roleIdx >= len(loc.Roles),
		}
	}
	return assignments, spies
}

// TallyVotes counts non-skip votes per suspect. The eliminated id is the
// suspect with strictly more votes than every other; any tie for the maximum
// eliminates nobody.
func TallyVotes(votes []model.Vote) (eliminated string, tally map[string]int) {
	tally = make(map[string]int)
	for _, v := range votes {
		if v.SuspectID == model.SuspectSkip {
			continue
		}
		tally[v.SuspectID]++
	}

	max, tied := 0, false
	for id, n := range tally {
		switch {
		case n > max:
			max, tied, eliminated = n, false, id
		case n == max:
			tied = true
		}
	}
	if tied || max == 0 {
		return "", tally
	}
	return eliminated, tally
}

// AllSpiesCaught reports whether eliminating the given player leaves no spy
// in play. Only single eliminations happen per round, so this is simply
// "every spy is the eliminated player".
func AllSpiesCaught(spyIDs []string, eliminated string) bool {
	if eliminated == "" {
		return false
	}
	for _, id := range spyIDs {
		if id != eliminated {
			return false
		}
	}
	return true
}
