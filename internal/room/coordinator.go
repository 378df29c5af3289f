// Package room implements the per-room coordinator actor: the single
// authority for one room's state, reachable only through its mailbox.
package room

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"

	"github.com/Greenrenge/cf-boardgames-sub000/internal/cache"
	"github.com/Greenrenge/cf-boardgames-sub000/internal/model"
	"github.com/Greenrenge/cf-boardgames-sub000/internal/repository"
)

const (
	roundDuration     = 480 * time.Second
	resultsWindow     = 60 * time.Second
	sweepInterval     = 10 * time.Second
	heartbeatTimeout  = 25 * time.Second
	roomTTL           = 24 * time.Hour
	maxChatLen        = 500
	defaultMaxPlayers = 8
	defaultSpyCount   = 1
	maxPlayersCap     = 20
	inboxSize         = 256
	persistTimeout    = 5 * time.Second
	unclaimedTimeout  = 10 * time.Second
)

// ErrNotFound is returned by admin operations on an uninitialized room.
var ErrNotFound = errors.New("room not found")

// ErrInvalidConfig is returned when a config patch is out of range or would
// shrink capacity below the current player count.
var ErrInvalidConfig = errors.New("invalid room config")

// Conn is an outbound channel to one client. Send must not block; it
// returns an error when the connection is dead or its buffer is full.
type Conn interface {
	Send(data []byte) error
	Close()
}

type cmdKind int

const (
	cmdEnvelope cmdKind = iota
	cmdDetach
	cmdSweep
	cmdTick
	cmdWindowExpire
	cmdIdleCheck
	cmdAdmin
)

type command struct {
	kind  cmdKind
	env   *model.Envelope
	conn  Conn
	round int
	admin func()
}

// Coordinator owns all state for one room code. All mutation happens on its
// single run loop; connections, the scheduler and the REST layer only post
// commands into the inbox.
type Coordinator struct {
	code   string
	store  repository.RoomStore
	wakes  cache.WakeCache
	board  cache.LeaderboardCache
	onWipe func(code string)

	inbox chan command
	done  chan struct{}

	// Loop-owned state. Never touched outside the run loop.
	room     *model.Room
	players  map[string]*model.Player
	kicked   map[string]bool
	game     *model.GameState
	conns    map[string]Conn
	loaded   bool
	released bool

	rng *rand.Rand
	now func() time.Time

	tickerStop  chan struct{}
	windowTimer *time.Timer
}

// New creates a coordinator for the given code. Start must be called before
// posting commands.
func New(code string, store repository.RoomStore, wakes cache.WakeCache, board cache.LeaderboardCache, onWipe func(string)) *Coordinator {
	return &Coordinator{
		code:    code,
		store:   store,
		wakes:   wakes,
		board:   board,
		onWipe:  onWipe,
		inbox:   make(chan command, inboxSize),
		done:    make(chan struct{}),
		players: make(map[string]*model.Player),
		kicked:  make(map[string]bool),
		conns:   make(map[string]Conn),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
}

// Start launches the run loop. The grace timer retires actors for codes
// that never get a room, so lookups of garbage codes cannot pin goroutines.
func (c *Coordinator) Start() {
	go c.run()
	time.AfterFunc(unclaimedTimeout, func() {
		c.post(command{kind: cmdIdleCheck})
	})
}

func (c *Coordinator) run() {
	for {
		select {
		case cmd := <-c.inbox:
			c.handle(cmd)
		case <-c.done:
			return
		}
	}
}

func (c *Coordinator) handle(cmd command) {
	switch cmd.kind {
	case cmdEnvelope:
		c.handleEnvelope(cmd.env, cmd.conn)
	case cmdDetach:
		c.handleDetach(cmd.conn)
	case cmdSweep:
		c.handleSweep()
	case cmdTick:
		c.handleTick(cmd.round)
	case cmdWindowExpire:
		c.handleWindowExpire(cmd.round)
	case cmdIdleCheck:
		if err := c.ensureLoaded(); err != nil {
			log.Printf("room %s: idle check load failed: %v", c.code, err)
		}
	case cmdAdmin:
		cmd.admin()
	}
	c.maybeRelease()
}

// maybeRelease retires the actor once a command leaves it holding no room.
// Without this, every lookup of an unknown code would leak a goroutine and
// a registry entry.
func (c *Coordinator) maybeRelease() {
	if c.loaded && c.room == nil {
		c.shutdown()
	}
}

// shutdown deregisters the actor and stops the run loop. Idempotent; both
// the wipe path and the unclaimed-code path end here.
func (c *Coordinator) shutdown() {
	if c.released {
		return
	}
	c.released = true
	if c.onWipe != nil {
		c.onWipe(c.code)
	}
	close(c.done)
}

func (c *Coordinator) post(cmd command) bool {
	select {
	case c.inbox <- cmd:
		return true
	case <-c.done:
		return false
	}
}

// Deliver posts a client envelope. Per-player ordering holds because each
// connection has exactly one reader goroutine and the inbox is FIFO.
func (c *Coordinator) Deliver(env *model.Envelope, conn Conn) {
	c.post(command{kind: cmdEnvelope, env: env, conn: conn})
}

// Detach reports a closed socket. The player is not removed, only marked
// disconnected; the liveness sweep decides about eviction.
func (c *Coordinator) Detach(conn Conn) {
	c.post(command{kind: cmdDetach, conn: conn})
}

// Sweep runs the liveness/cleanup pass. Called by the wake scheduler.
func (c *Coordinator) Sweep() {
	c.post(command{kind: cmdSweep})
}

// doSync runs fn on the coordinator loop and waits for it.
func (c *Coordinator) doSync(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	cmd := command{kind: cmdAdmin, admin: func() {
		fn()
		close(ran)
	}}
	select {
	case c.inbox <- cmd:
	case <-c.done:
		return ErrNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		// The command that retired the actor may have been ours.
		select {
		case <-ran:
			return nil
		default:
			return ErrNotFound
		}
	}
}

// Init creates the room state if absent. Calling it again for the same code
// is a no-op, not an error.
func (c *Coordinator) Init(ctx context.Context, hostID, hostName, gameType string) error {
	var err error
	serr := c.doSync(ctx, func() {
		if err = c.ensureLoaded(); err != nil {
			return
		}
		if c.room != nil {
			return
		}
		now := c.now()
		c.room = &model.Room{
			Code:         c.code,
			HostPlayerID: hostID,
			GameType:     gameType,
			Config: model.RoomConfig{
				MaxPlayers: defaultMaxPlayers,
				SpyCount:   defaultSpyCount,
			},
			Phase:          model.PhaseLobby,
			CreatedAt:      now,
			LastActivityAt: now,
		}
		c.persist()
		c.scheduleSweep()
		c.syncName(hostID, hostName)
		log.Printf("room %s: initialized by host %s (%s)", c.code, hostID, gameType)
	})
	if serr != nil {
		return serr
	}
	return err
}

// Info returns the administrative view of the room.
func (c *Coordinator) Info(ctx context.Context) (*model.RoomInfo, error) {
	var (
		info *model.RoomInfo
		err  error
	)
	serr := c.doSync(ctx, func() {
		if err = c.ensureLoaded(); err != nil {
			return
		}
		if c.room == nil {
			err = ErrNotFound
			return
		}
		info = c.room.Info(len(c.players))
	})
	if serr != nil {
		return nil, serr
	}
	return info, err
}

// PatchConfig updates maxPlayers and/or spyCount. Shrinking capacity below
// the current player count is rejected and leaves state unchanged.
func (c *Coordinator) PatchConfig(ctx context.Context, maxPlayers, spyCount *int) (*model.RoomConfig, error) {
	var (
		cfg *model.RoomConfig
		err error
	)
	serr := c.doSync(ctx, func() {
		if err = c.ensureLoaded(); err != nil {
			return
		}
		if c.room == nil {
			err = ErrNotFound
			return
		}
		err = c.applyConfigPatch(maxPlayers, spyCount)
		if err != nil {
			return
		}
		out := c.room.Config
		cfg = &out
	})
	if serr != nil {
		return nil, serr
	}
	return cfg, err
}

// ensureLoaded performs the one-time cold-start load from durable storage.
// The run loop serializes callers, so no load can run twice.
func (c *Coordinator) ensureLoaded() error {
	if c.loaded {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	snap, err := c.store.Load(ctx, c.code)
	if err != nil {
		return err
	}
	c.loaded = true
	if snap == nil {
		return nil
	}
	c.room = snap.Room
	if snap.Players != nil {
		c.players = snap.Players
	}
	for _, id := range snap.Kicked {
		c.kicked[id] = true
	}
	c.game = snap.Game
	// Sockets did not survive the restart.
	for _, p := range c.players {
		p.ConnectionStatus = model.StatusDisconnected
	}
	if c.room != nil && c.room.Phase == model.PhasePlaying {
		c.startTicker()
	}
	if c.room != nil && (c.room.Phase == model.PhaseResults || c.room.Phase == model.PhaseSpyGuess) && c.game != nil {
		c.startWindowTimer(c.game.RoundNumber)
	}
	log.Printf("room %s: recovered snapshot (%d players, phase=%v)", c.code, len(c.players), c.phase())
	return nil
}

func (c *Coordinator) phase() model.Phase {
	if c.room == nil {
		return model.PhaseLobby
	}
	return c.room.Phase
}

func (c *Coordinator) snapshot() *model.RoomSnapshot {
	kicked := make([]string, 0, len(c.kicked))
	for id := range c.kicked {
		kicked = append(kicked, id)
	}
	return &model.RoomSnapshot{
		Room:    c.room,
		Players: c.players,
		Kicked:  kicked,
		Game:    c.game,
	}
}

// persist writes the affected aggregates before any broadcast goes out, so
// the room never announces state it could still lose.
func (c *Coordinator) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.store.Save(ctx, c.code, c.snapshot()); err != nil {
		log.Printf("room %s: persist failed: %v", c.code, err)
	}
}

func (c *Coordinator) scheduleSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.wakes.Schedule(ctx, c.code, c.now().Add(sweepInterval)); err != nil {
		log.Printf("room %s: schedule wake failed: %v", c.code, err)
	}
}

func (c *Coordinator) touch() {
	if c.room != nil {
		c.room.LastActivityAt = c.now()
	}
}

// roomStatePayload builds the full public snapshot sent on JOIN/PING and
// after lobby transitions.
func (c *Coordinator) roomStatePayload() *model.RoomStatePayload {
	players := make([]model.PlayerView, 0, len(c.players))
	for _, id := range c.room.PlayerOrder {
		if p, ok := c.players[id]; ok {
			players = append(players, p.PublicView())
		}
	}
	payload := &model.RoomStatePayload{
		RoomCode: c.room.Code,
		GameType: c.room.GameType,
		HostID:   c.room.HostPlayerID,
		Phase:    c.room.Phase,
		Config:   c.room.Config,
		Players:  players,
	}
	if c.game != nil {
		payload.RoundNumber = c.game.RoundNumber
	}
	return payload
}

func (c *Coordinator) unicast(conn Conn, t model.ServerMessageType, payload any) {
	data, err := model.NewServerEnvelope(t, payload)
	if err != nil {
		log.Printf("room %s: marshal %s: %v", c.code, t, err)
		return
	}
	if err := conn.Send(data); err != nil {
		c.dropConn(conn)
	}
}

func (c *Coordinator) sendError(conn Conn, code model.ErrorCode, msg string) {
	c.unicast(conn, model.EvtError, &model.ErrorPayload{Code: code, Message: msg})
}

func (c *Coordinator) broadcast(t model.ServerMessageType, payload any) {
	c.broadcastExcept("", t, payload)
}

// broadcastExcept fans out to every live connection except the given player.
// A failed send marks that connection dead and sweeps it into the normal
// disconnect path without aborting the fan-out.
func (c *Coordinator) broadcastExcept(excludeID string, t model.ServerMessageType, payload any) {
	data, err := model.NewServerEnvelope(t, payload)
	if err != nil {
		log.Printf("room %s: marshal %s: %v", c.code, t, err)
		return
	}
	var dead []string
	for id, conn := range c.conns {
		if id == excludeID {
			continue
		}
		if err := conn.Send(data); err != nil {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		c.markDisconnected(id)
	}
}

// silence closes the player's socket and flips the status without telling
// the room. Callers announce the drop only once the flip is durable.
func (c *Coordinator) silence(playerID string) *model.Player {
	if conn, ok := c.conns[playerID]; ok {
		conn.Close()
		delete(c.conns, playerID)
	}
	p, ok := c.players[playerID]
	if !ok || p.ConnectionStatus == model.StatusDisconnected {
		return nil
	}
	p.ConnectionStatus = model.StatusDisconnected
	return p
}

func (c *Coordinator) markDisconnected(playerID string) {
	p := c.silence(playerID)
	if p == nil {
		return
	}
	c.persist()
	log.Printf("room %s: player %s disconnected", c.code, playerID)
	c.broadcastExcept(playerID, model.EvtPlayerDisconnected, &model.PlayerEventPayload{PlayerID: playerID, Name: p.Name})
}

func (c *Coordinator) dropConn(conn Conn) {
	for id, cn := range c.conns {
		if cn == conn {
			c.markDisconnected(id)
			return
		}
	}
	conn.Close()
}

func (c *Coordinator) playerIDFor(conn Conn) string {
	for id, cn := range c.conns {
		if cn == conn {
			return id
		}
	}
	return ""
}

// ensureHost keeps the invariant that the host is a member whenever
// membership is positive, promoting the earliest remaining player. Returns
// the promoted player, or nil when no change was needed.
func (c *Coordinator) ensureHost() *model.Player {
	if len(c.players) == 0 {
		return nil
	}
	if p, ok := c.players[c.room.HostPlayerID]; ok {
		p.IsHost = true
		return nil
	}
	next := c.players[c.room.PlayerOrder[0]]
	for _, id := range c.room.PlayerOrder {
		if p, ok := c.players[id]; ok {
			next = p
			break
		}
	}
	c.room.HostPlayerID = next.ID
	next.IsHost = true
	log.Printf("room %s: host migrated to %s", c.code, next.ID)
	return next
}

// removePlayer deletes the player and returns the promoted host, if the
// removal triggered a migration. Callers persist and then broadcast
// HOST_CHANGED before PLAYER_LEFT.
func (c *Coordinator) removePlayer(playerID string) *model.Player {
	if conn, ok := c.conns[playerID]; ok {
		conn.Close()
		delete(c.conns, playerID)
	}
	delete(c.players, playerID)
	order := c.room.PlayerOrder[:0]
	for _, id := range c.room.PlayerOrder {
		if id != playerID {
			order = append(order, id)
		}
	}
	c.room.PlayerOrder = order
	return c.ensureHost()
}

func (c *Coordinator) syncName(playerID, name string) {
	if c.board == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.board.SetName(ctx, c.code, playerID, name); err != nil {
		log.Printf("room %s: leaderboard name sync failed: %v", c.code, err)
	}
}

func (c *Coordinator) syncScore(playerID string, score int) {
	if c.board == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.board.UpdateScore(ctx, c.code, playerID, score); err != nil {
		log.Printf("room %s: leaderboard score sync failed: %v", c.code, err)
	}
}
