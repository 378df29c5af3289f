package room

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/Greenrenge/cf-boardgames-sub000/internal/catalog"
	"github.com/Greenrenge/cf-boardgames-sub000/internal/game"
	"github.com/Greenrenge/cf-boardgames-sub000/internal/model"
)

func (c *Coordinator) handleEnvelope(env *model.Envelope, conn Conn) {
	if err := c.ensureLoaded(); err != nil {
		c.sendError(conn, model.ErrInternal, "storage unavailable")
		return
	}
	if c.room == nil {
		c.sendError(conn, model.ErrRoomNotFound, "room has not been created")
		return
	}
	c.touch()

	playerID := env.PlayerID
	if playerID == "" {
		playerID = c.playerIDFor(conn)
	}

	switch model.ClientMessageType(env.Type) {
	case model.CmdJoin:
		c.handleJoin(env, playerID, conn)
		return
	case model.CmdPing:
		c.handlePing(playerID, conn)
		return
	}

	p, ok := c.players[playerID]
	if !ok {
		c.sendError(conn, model.ErrPlayerNotFound, "unknown player")
		return
	}
	p.LastSeenAt = c.now()

	switch model.ClientMessageType(env.Type) {
	case model.CmdLeave:
		c.handleLeave(playerID)
	case model.CmdStartGame:
		c.handleStartGame(playerID, conn)
	case model.CmdSkipTimer:
		c.handleSkipTimer(playerID, conn)
	case model.CmdChat:
		c.handleChat(env, p, conn)
	case model.CmdVote:
		c.handleVote(env, playerID, conn)
	case model.CmdSpyGuess:
		c.handleSpyGuess(env, playerID, conn)
	case model.CmdKick:
		c.handleKick(env, playerID, conn)
	case model.CmdResetGame:
		c.handleResetGame(playerID, conn)
	default:
		c.sendError(conn, model.ErrInvalidRequest, fmt.Sprintf("unknown command %q", env.Type))
	}
}

func (c *Coordinator) handleJoin(env *model.Envelope, playerID string, conn Conn) {
	if playerID == "" {
		c.sendError(conn, model.ErrInvalidRequest, "join requires a player id")
		return
	}
	if c.kicked[playerID] {
		c.sendError(conn, model.ErrPlayerKicked, "you were removed from this room")
		return
	}

	var payload model.JoinPayload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			c.sendError(conn, model.ErrInvalidRequest, "malformed join payload")
			return
		}
	}

	existing, rejoining := c.players[playerID]
	if !rejoining {
		if c.room.Phase != model.PhaseLobby {
			c.sendError(conn, model.ErrGameInProgress, "a round is in progress")
			return
		}
		if len(c.players) >= c.room.Config.MaxPlayers {
			c.sendError(conn, model.ErrRoomFull, "room is full")
			return
		}
	}

	// Replace any stale connection for this id.
	if old, ok := c.conns[playerID]; ok && old != conn {
		old.Close()
	}
	c.conns[playerID] = conn

	now := c.now()
	var p *model.Player
	if rejoining {
		p = existing
		p.ConnectionStatus = model.StatusConnected
		p.LastSeenAt = now
	} else {
		p = &model.Player{
			ID:               playerID,
			Name:             c.dedupeName(strings.TrimSpace(payload.Name), playerID),
			ConnectionStatus: model.StatusConnected,
			JoinedAt:         now,
			LastSeenAt:       now,
		}
		c.players[playerID] = p
		c.room.PlayerOrder = append(c.room.PlayerOrder, playerID)
	}
	promoted := c.ensureHost()

	c.persist()

	c.unicast(conn, model.EvtRoomState, c.roomStatePayload())
	if c.game != nil {
		c.replayRound(playerID, conn)
	}

	if promoted != nil {
		c.broadcast(model.EvtHostChanged, &model.HostChangedPayload{HostID: promoted.ID, Name: promoted.Name})
	}
	evt := model.EvtPlayerJoined
	if rejoining {
		evt = model.EvtPlayerReconnected
		log.Printf("room %s: player %s reconnected", c.code, playerID)
	} else {
		c.syncScore(playerID, 0)
		log.Printf("room %s: player %s (%s) joined", c.code, playerID, p.Name)
	}
	c.broadcastExcept(playerID, evt, &model.PlayerEventPayload{PlayerID: playerID, Name: p.Name})
	c.syncName(playerID, p.Name)
}

// replayRound re-sends the private assignment, remaining timer and chat
// history so a rejoin mid-round is seamless.
func (c *Coordinator) replayRound(playerID string, conn Conn) {
	a, ok := c.game.Assignments[playerID]
	if !ok {
		return
	}
	c.unicast(conn, model.EvtRoleAssignment, c.roleAssignmentPayload(a))
}

func (c *Coordinator) roleAssignmentPayload(a model.Assignment) *model.RoleAssignmentPayload {
	payload := &model.RoleAssignmentPayload{
		RoundNumber:     c.game.RoundNumber,
		Role:            a.Role,
		IsSpy:           a.IsSpy,
		IsDuplicateRole: a.IsDuplicateRole,
		RemainingSec:    c.game.RemainingSeconds(c.now()),
		Messages:        c.game.Messages,
	}
	if a.IsSpy {
		payload.AllLocations = catalog.Names()
	} else {
		loc := c.game.SelectedLocation
		payload.Location = &loc
	}
	return payload
}

// dedupeName keeps display names unique within the room by appending a
// numeric suffix.
func (c *Coordinator) dedupeName(name, playerID string) string {
	if name == "" {
		name = "Player"
	}
	taken := func(n string) bool {
		for id, p := range c.players {
			if id != playerID && p.Name == n {
				return true
			}
		}
		return false
	}
	if !taken(name) {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)", name, i)
		if !taken(candidate) {
			return candidate
		}
	}
}

func (c *Coordinator) handlePing(playerID string, conn Conn) {
	p, ok := c.players[playerID]
	if !ok {
		c.sendError(conn, model.ErrPlayerNotFound, "unknown player")
		return
	}
	p.LastSeenAt = c.now()
	p.ConnectionStatus = model.StatusConnected
	if c.conns[playerID] == nil {
		c.conns[playerID] = conn
	}
	c.persist()
	// Echo the full snapshot so clients converge even without deltas.
	c.unicast(conn, model.EvtRoomState, c.roomStatePayload())
}

// handleLeave removes the player immediately; an explicit leave is not a
// transient drop.
func (c *Coordinator) handleLeave(playerID string) {
	p, ok := c.players[playerID]
	if !ok {
		return
	}
	promoted := c.removePlayer(playerID)
	c.persist()
	if promoted != nil {
		c.broadcast(model.EvtHostChanged, &model.HostChangedPayload{HostID: promoted.ID, Name: promoted.Name})
	}
	c.broadcast(model.EvtPlayerLeft, &model.PlayerEventPayload{PlayerID: playerID, Name: p.Name})
	log.Printf("room %s: player %s left", c.code, playerID)
	// The departure may have completed the vote quorum.
	c.maybeResolveVoting()
}

func (c *Coordinator) handleChat(env *model.Envelope, p *model.Player, conn Conn) {
	if c.game == nil {
		c.sendError(conn, model.ErrInvalidPhase, "no round in progress")
		return
	}
	var payload model.ChatPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		c.sendError(conn, model.ErrInvalidRequest, "malformed chat payload")
		return
	}
	content := payload.Content
	if !payload.IsTurnIndicator {
		content = strings.TrimSpace(content)
		if content == "" {
			c.sendError(conn, model.ErrInvalidMessage, "message is empty")
			return
		}
		if len(content) > maxChatLen {
			c.sendError(conn, model.ErrMessageTooLong, fmt.Sprintf("message exceeds %d characters", maxChatLen))
			return
		}
	}
	msg := model.Message{
		ID:              uuid.NewString(),
		RoundNumber:     c.game.RoundNumber,
		PlayerID:        p.ID,
		PlayerName:      p.Name,
		Content:         content,
		IsTurnIndicator: payload.IsTurnIndicator,
		Timestamp:       c.now(),
	}
	c.game.Messages = append(c.game.Messages, msg)
	c.persist()
	c.broadcast(model.EvtMessage, msg)
}

func (c *Coordinator) handleVote(env *model.Envelope, playerID string, conn Conn) {
	phase := c.phase()
	if c.game == nil || (phase != model.PhasePlaying && phase != model.PhaseVoting) {
		c.sendError(conn, model.ErrInvalidPhase, "voting is not open")
		return
	}
	var payload model.VotePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		c.sendError(conn, model.ErrInvalidRequest, "malformed vote payload")
		return
	}
	if payload.SuspectID != model.SuspectSkip {
		if _, ok := c.players[payload.SuspectID]; !ok {
			c.sendError(conn, model.ErrInvalidSuspect, "suspect is not in this room")
			return
		}
	}
	if c.game.HasVoted(playerID) {
		c.sendError(conn, model.ErrAlreadyVoted, "you already voted this round")
		return
	}

	c.game.Votes = append(c.game.Votes, model.Vote{
		ID:          uuid.NewString(),
		RoundNumber: c.game.RoundNumber,
		VoterID:     playerID,
		SuspectID:   payload.SuspectID,
		Timestamp:   c.now(),
	})
	c.persist()

	_, tally := game.TallyVotes(c.game.Votes)
	c.broadcast(model.EvtVoteCast, &model.VoteCastPayload{
		VotesCount:   len(c.game.Votes),
		TotalPlayers: len(c.players),
		Tally:        tally,
	})

	c.maybeResolveVoting()
}

func (c *Coordinator) handleSpyGuess(env *model.Envelope, playerID string, conn Conn) {
	if c.phase() != model.PhaseSpyGuess {
		c.sendError(conn, model.ErrInvalidPhase, "no spy guess is pending")
		return
	}
	if !c.game.IsSpy(playerID) {
		c.sendError(conn, model.ErrNotSpy, "only a spy may guess the location")
		return
	}
	var payload model.SpyGuessPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil || payload.LocationID == "" {
		c.sendError(conn, model.ErrInvalidRequest, "guess requires a location id")
		return
	}
	if _, ok := catalog.Get(payload.LocationID); !ok {
		c.sendError(conn, model.ErrInvalidLocation, "unknown location")
		return
	}
	c.resolveSpyGuess(payload.LocationID)
}

func (c *Coordinator) handleKick(env *model.Envelope, playerID string, conn Conn) {
	if playerID != c.room.HostPlayerID {
		c.sendError(conn, model.ErrNotHost, "only the host may kick players")
		return
	}
	var payload model.KickPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil || payload.TargetID == "" {
		c.sendError(conn, model.ErrInvalidRequest, "kick requires a target id")
		return
	}
	target, ok := c.players[payload.TargetID]
	if !ok {
		c.sendError(conn, model.ErrPlayerNotFound, "target is not in this room")
		return
	}
	if target.ID == playerID || target.IsHost {
		c.sendError(conn, model.ErrUnauthorized, "the host cannot be kicked")
		return
	}

	if targetConn, ok := c.conns[target.ID]; ok {
		c.unicast(targetConn, model.EvtKicked, &model.KickedPayload{Reason: "removed by host"})
	}
	c.kicked[target.ID] = true
	promoted := c.removePlayer(target.ID)
	c.persist()
	if promoted != nil {
		c.broadcast(model.EvtHostChanged, &model.HostChangedPayload{HostID: promoted.ID, Name: promoted.Name})
	}
	c.broadcast(model.EvtPlayerLeft, &model.PlayerEventPayload{PlayerID: target.ID, Name: target.Name})
	log.Printf("room %s: player %s kicked by host", c.code, target.ID)
	c.maybeResolveVoting()
}

func (c *Coordinator) handleResetGame(playerID string, conn Conn) {
	if playerID != c.room.HostPlayerID {
		c.sendError(conn, model.ErrNotHost, "only the host may reset the game")
		return
	}
	c.backToLobby()
}

func (c *Coordinator) applyConfigPatch(maxPlayers, spyCount *int) error {
	cfg := c.room.Config
	if maxPlayers != nil {
		if *maxPlayers < game.MinPlayers || *maxPlayers > maxPlayersCap {
			return fmt.Errorf("%w: maxPlayers must be between %d and %d", ErrInvalidConfig, game.MinPlayers, maxPlayersCap)
		}
		if *maxPlayers < len(c.players) {
			return fmt.Errorf("%w: cannot shrink below current player count %d", ErrInvalidConfig, len(c.players))
		}
		cfg.MaxPlayers = *maxPlayers
	}
	if spyCount != nil {
		cfg.SpyCount = *spyCount
	}
	if err := game.ValidateSpyCount(cfg.SpyCount, cfg.MaxPlayers); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	c.room.Config = cfg
	c.touch()
	c.persist()
	c.broadcast(model.EvtRoomConfigUpdate, &cfg)
	c.broadcast(model.EvtRoomState, c.roomStatePayload())
	return nil
}

func (c *Coordinator) handleDetach(conn Conn) {
	if err := c.ensureLoaded(); err != nil {
		return
	}
	for id, cn := range c.conns {
		if cn == conn {
			c.markDisconnected(id)
			return
		}
	}
}
