package room

import (
	"context"
	"log"
	"time"

	"github.com/Greenrenge/cf-boardgames-sub000/internal/catalog"
	"github.com/Greenrenge/cf-boardgames-sub000/internal/game"
	"github.com/Greenrenge/cf-boardgames-sub000/internal/model"
)

func (c *Coordinator) handleStartGame(playerID string, conn Conn) {
	if playerID != c.room.HostPlayerID {
		c.sendError(conn, model.ErrNotHost, "only the host may start the game")
		return
	}
	if c.room.Phase != model.PhaseLobby {
		c.sendError(conn, model.ErrInvalidPhase, "game already in progress")
		return
	}

	connected := c.connectedIDs()
	spyCount := c.room.Config.SpyCount
	if len(connected) < game.MinPlayers || len(connected) > c.room.Config.MaxPlayers || len(connected) <= spyCount {
		c.sendError(conn, model.ErrInvalidPlayerCount, "player count out of range for this configuration")
		return
	}

	loc := catalog.Random(c.rng, difficultyFor(c.room.GameType))
	selected := loc.Selected()
	assignments, spies := game.AssignRoles(connected, selected, spyCount, c.rng)

	now := c.now()
	c.room.RoundsPlayed++
	c.game = &model.GameState{
		RoundNumber:      c.room.RoundsPlayed,
		SelectedLocation: selected,
		Assignments:      assignments,
		SpyPlayerIDs:     spies,
		TimerStartedAt:   now,
		TimerEndsAt:      now.Add(roundDuration),
	}
	c.room.Phase = model.PhasePlaying
	c.persist()

	c.broadcast(model.EvtGameStarted, &model.GameStartedPayload{
		RoundNumber: c.game.RoundNumber,
		TimerEndsAt: c.game.TimerEndsAt.UnixMilli(),
		DurationSec: int(roundDuration.Seconds()),
	})
	for id, a := range assignments {
		if playerConn, ok := c.conns[id]; ok {
			c.unicast(playerConn, model.EvtRoleAssignment, c.roleAssignmentPayload(a))
		}
	}
	c.startTicker()
	log.Printf("room %s: round %d started, location=%s, %d spies", c.code, c.game.RoundNumber, selected.ID, len(spies))
}

func (c *Coordinator) handleSkipTimer(playerID string, conn Conn) {
	if playerID != c.room.HostPlayerID {
		c.sendError(conn, model.ErrNotHost, "only the host may skip the timer")
		return
	}
	if c.room.Phase != model.PhasePlaying {
		c.sendError(conn, model.ErrInvalidPhase, "no running timer to skip")
		return
	}
	c.toVoting()
}

func (c *Coordinator) connectedIDs() []string {
	ids := make([]string, 0, len(c.players))
	for _, id := range c.room.PlayerOrder {
		if p, ok := c.players[id]; ok && p.ConnectionStatus == model.StatusConnected {
			ids = append(ids, id)
		}
	}
	return ids
}

func difficultyFor(gameType string) catalog.Difficulty {
	switch gameType {
	case "easy":
		return catalog.Easy
	case "medium":
		return catalog.Medium
	default:
		return ""
	}
}

// startTicker runs the 1-second game timer. It only lives while a round is
// in the playing phase and is torn down on any phase exit.
func (c *Coordinator) startTicker() {
	c.stopTicker()
	stop := make(chan struct{})
	c.tickerStop = stop
	round := c.game.RoundNumber
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !c.post(command{kind: cmdTick, round: round}) {
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

func (c *Coordinator) stopTicker() {
	if c.tickerStop != nil {
		close(c.tickerStop)
		c.tickerStop = nil
	}
}

func (c *Coordinator) handleTick(round int) {
	if c.game == nil || c.game.RoundNumber != round || c.room.Phase != model.PhasePlaying {
		return
	}
	remaining := c.game.RemainingSeconds(c.now())
	c.broadcast(model.EvtTimerTick, &model.TimerTickPayload{RemainingSec: remaining})
	if remaining <= 0 {
		c.toVoting()
	}
}

func (c *Coordinator) toVoting() {
	c.stopTicker()
	c.room.Phase = model.PhaseVoting
	c.persist()
	c.broadcast(model.EvtPhaseChange, &model.PhaseChangePayload{Phase: model.PhaseVoting})
	// The round may already hold a full tally from votes cast while playing.
	c.maybeResolveVoting()
}

// maybeResolveVoting resolves the round once every remaining player has a
// vote in. Departures shrink the quorum, so removals re-check it too.
func (c *Coordinator) maybeResolveVoting() {
	if c.game == nil || (c.room.Phase != model.PhasePlaying && c.room.Phase != model.PhaseVoting) {
		return
	}
	if len(c.game.Votes) >= len(c.players) {
		c.resolveVoting()
	}
}

// resolveVoting runs at most once per round: it is only reachable from the
// playing/voting phases, and it always leaves them.
func (c *Coordinator) resolveVoting() {
	if c.game == nil || (c.room.Phase != model.PhasePlaying && c.room.Phase != model.PhaseVoting) {
		return
	}
	c.stopTicker()

	eliminated, tally := game.TallyVotes(c.game.Votes)
	if eliminated != "" {
		id := eliminated
		c.game.EliminatedID = &id
	}

	if game.AllSpiesCaught(c.game.SpyPlayerIDs, eliminated) {
		c.scoreSpiesLost()
		c.game.Resolved = true
		c.room.Phase = model.PhaseResults
		c.persist()
		c.broadcast(model.EvtVotingResults, &model.VotingResultsPayload{
			EliminatedPlayerID: c.game.EliminatedID,
			Tally:              tally,
			AllSpiesCaught:     true,
			SpyPlayerIDs:       c.game.SpyPlayerIDs,
			LocationName:       c.game.SelectedLocation.Name,
		})
		c.broadcast(model.EvtPhaseChange, &model.PhaseChangePayload{Phase: model.PhaseResults})
		c.startWindowTimer(c.game.RoundNumber)
		log.Printf("room %s: round %d resolved, all spies caught", c.code, c.game.RoundNumber)
		return
	}

	// At least one spy survives: the spies get one shared guess. The
	// location stays hidden until the guess resolves.
	c.room.Phase = model.PhaseSpyGuess
	c.persist()
	c.broadcast(model.EvtVotingResults, &model.VotingResultsPayload{
		EliminatedPlayerID: c.game.EliminatedID,
		Tally:              tally,
	})
	c.broadcast(model.EvtPhaseChange, &model.PhaseChangePayload{Phase: model.PhaseSpyGuess})
	c.startWindowTimer(c.game.RoundNumber)
	log.Printf("room %s: round %d moves to spy guess", c.code, c.game.RoundNumber)
}

func (c *Coordinator) resolveSpyGuess(locationID string) {
	if c.game == nil || c.room.Phase != model.PhaseSpyGuess || c.game.Resolved {
		return
	}
	c.stopWindowTimer()

	guess := locationID
	c.game.SpyGuess = &guess
	correct := locationID == c.game.SelectedLocation.ID
	if correct {
		c.scoreSpiesWon()
	} else {
		c.scoreSpiesLost()
	}
	c.game.Resolved = true
	c.room.Phase = model.PhaseResults
	c.persist()

	guessedName := locationID
	if loc, ok := catalog.Get(locationID); ok {
		guessedName = loc.Name
	}
	c.broadcast(model.EvtSpyGuessResult, &model.SpyGuessResultPayload{
		Correct:             correct,
		GuessedLocationName: guessedName,
		ActualLocationName:  c.game.SelectedLocation.Name,
		SpyPlayerIDs:        c.game.SpyPlayerIDs,
	})
	c.broadcast(model.EvtPhaseChange, &model.PhaseChangePayload{Phase: model.PhaseResults})
	c.startWindowTimer(c.game.RoundNumber)
	log.Printf("room %s: round %d spy guess %q correct=%v", c.code, c.game.RoundNumber, locationID, correct)
}

// scoreSpiesLost awards every non-spy; spies get nothing.
func (c *Coordinator) scoreSpiesLost() {
	for id, p := range c.players {
		if !c.game.IsSpy(id) {
			p.Score += game.PointsNonSpyWin
			c.syncScore(id, p.Score)
		}
	}
}

// scoreSpiesWon awards each spy for a correct location guess.
func (c *Coordinator) scoreSpiesWon() {
	for _, id := range c.game.SpyPlayerIDs {
		if p, ok := c.players[id]; ok {
			p.Score += game.PointsSpyGuessRight
			c.syncScore(id, p.Score)
		}
	}
}

// startWindowTimer arms the fixed display window for the results and
// spy-guess phases.
func (c *Coordinator) startWindowTimer(round int) {
	c.stopWindowTimer()
	c.windowTimer = time.AfterFunc(resultsWindow, func() {
		c.post(command{kind: cmdWindowExpire, round: round})
	})
}

func (c *Coordinator) stopWindowTimer() {
	if c.windowTimer != nil {
		c.windowTimer.Stop()
		c.windowTimer = nil
	}
}

func (c *Coordinator) handleWindowExpire(round int) {
	if c.game == nil || c.game.RoundNumber != round {
		return
	}
	switch c.room.Phase {
	case model.PhaseSpyGuess:
		// The spies never guessed; that counts as a wrong guess.
		c.stopWindowTimer()
		c.scoreSpiesLost()
		c.game.Resolved = true
		c.room.Phase = model.PhaseResults
		c.persist()
		c.broadcast(model.EvtSpyGuessResult, &model.SpyGuessResultPayload{
			Correct:            false,
			ActualLocationName: c.game.SelectedLocation.Name,
			SpyPlayerIDs:       c.game.SpyPlayerIDs,
		})
		c.broadcast(model.EvtPhaseChange, &model.PhaseChangePayload{Phase: model.PhaseResults})
		c.startWindowTimer(round)
	case model.PhaseResults:
		c.backToLobby()
	}
}

// backToLobby discards the round and returns to the lobby, keeping
// cumulative scores.
func (c *Coordinator) backToLobby() {
	c.stopTicker()
	c.stopWindowTimer()
	c.game = nil
	c.room.Phase = model.PhaseLobby
	c.touch()
	c.persist()
	c.broadcast(model.EvtPhaseChange, &model.PhaseChangePayload{Phase: model.PhaseLobby})
	c.broadcast(model.EvtRoomState, c.roomStatePayload())
}

// handleSweep is the recurring liveness pass. Any panic is swallowed so the
// next wake still gets scheduled and cleanup can never stall permanently.
func (c *Coordinator) handleSweep() {
	rescheduled := false
	defer func() {
		if r := recover(); r != nil {
			log.Printf("room %s: sweep panic: %v", c.code, r)
			if !rescheduled {
				c.scheduleSweep()
			}
		}
	}()

	if err := c.ensureLoaded(); err != nil {
		log.Printf("room %s: sweep load failed: %v", c.code, err)
		c.scheduleSweep()
		rescheduled = true
		return
	}
	if c.room == nil {
		// Nothing to sweep; the actor retires once this command finishes.
		return
	}

	now := c.now()
	changed := false

	// (a) Silent but still marked connected: force the disconnect.
	for id, p := range c.players {
		if p.ConnectionStatus == model.StatusConnected && now.Sub(p.LastSeenAt) > heartbeatTimeout {
			c.markDisconnected(id)
			changed = true
		}
	}

	// (b) Grace-period eviction, lobby only. Players mid-round keep their
	// seat so they can rejoin with full state replay.
	if c.room.Phase == model.PhaseLobby {
		for _, id := range append([]string(nil), c.room.PlayerOrder...) {
			p, ok := c.players[id]
			if !ok || now.Sub(p.LastSeenAt) <= heartbeatTimeout {
				continue
			}
			promoted := c.removePlayer(id)
			changed = true
			c.persist()
			if promoted != nil {
				c.broadcast(model.EvtHostChanged, &model.HostChangedPayload{HostID: promoted.ID, Name: promoted.Name})
			}
			c.broadcast(model.EvtPlayerLeft, &model.PlayerEventPayload{PlayerID: id, Name: p.Name})
			log.Printf("room %s: evicted silent player %s", c.code, id)
		}
	}

	// (c) Whole-room inactivity bound.
	latest := c.room.LastActivityAt
	for _, p := range c.players {
		if p.LastSeenAt.After(latest) {
			latest = p.LastSeenAt
		}
	}
	if now.Sub(latest) > roomTTL {
		c.wipe()
		return
	}

	if changed {
		c.persist()
	}
	c.scheduleSweep()
	rescheduled = true
}

// wipe deletes all durable and in-memory state for the room.
func (c *Coordinator) wipe() {
	log.Printf("room %s: inactive for %v, wiping", c.code, roomTTL)
	c.stopTicker()
	c.stopWindowTimer()
	for _, conn := range c.conns {
		conn.Close()
	}
	c.conns = make(map[string]Conn)

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.store.Wipe(ctx, c.code); err != nil {
		log.Printf("room %s: storage wipe failed: %v", c.code, err)
	}
	if c.board != nil {
		if err := c.board.Wipe(ctx, c.code); err != nil {
			log.Printf("room %s: leaderboard wipe failed: %v", c.code, err)
		}
	}
	if err := c.wakes.Cancel(ctx, c.code); err != nil {
		log.Printf("room %s: wake cancel failed: %v", c.code, err)
	}

	c.room = nil
	c.players = make(map[string]*model.Player)
	c.kicked = make(map[string]bool)
	c.game = nil

	c.shutdown()
}
