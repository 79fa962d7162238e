// Package netclient connects to the game server over a websocket, keeps the
// world Store current and turns server notifications into bus events.
package netclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
	"golang.org/x/time/rate"

	"flappy-client/internal/config"
	"flappy-client/internal/events"
	"flappy-client/internal/metrics"
	"flappy-client/internal/world"
)

const (
	// DefaultReconnectDelay is the wait between connection attempts.
	DefaultReconnectDelay = 2 * time.Second
	// RemoteShotGap drops player_shot repeats from one shooter closer than this.
	RemoteShotGap = 35 * time.Millisecond

	maxMessageSize = 1 << 20
	writeTimeout   = 5 * time.Second
)

var (
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("netclient: closed")
	// ErrNotConnected is returned by sends while no connection is up.
	ErrNotConnected = errors.New("netclient: not connected")
	// ErrThrottled is returned when a steering-only input exceeds the intent rate.
	ErrThrottled = errors.New("netclient: input throttled")
	// ErrRunning is returned by a second concurrent Run.
	ErrRunning = errors.New("netclient: already running")
)

// Handler receives what the client cannot express as a Store update.
// Calls arrive on the reader goroutine.
type Handler interface {
	HandleWelcome(selfID string, cfg *ServerConfig)
	HandleEvent(p events.Payload)
	HandleBulletsRemove(ids []string)
	HandleDisconnect(err error)
}

// Options configures a Client.
type Options struct {
	URL            string
	PlayerName     string
	ReconnectDelay time.Duration
	IntentRate     int // steering inputs per second

	// SkipBulletEntities keeps server bullets out of the Store; spawns
	// still produce Shot events. Used by the mobile landscape profile.
	SkipBulletEntities bool

	Store   *world.Store
	Handler Handler
	Dialer  *websocket.Dialer
	Clock   func() time.Time
	Logger  zerolog.Logger
}

// OptionsFromConfig derives client options from the app config.
func OptionsFromConfig(n config.NetworkConfig, p config.Profile) Options {
	return Options{
		URL:                n.ServerURL,
		PlayerName:         n.PlayerName,
		ReconnectDelay:     time.Duration(n.ReconnectDelayMs) * time.Millisecond,
		IntentRate:         n.IntentRate,
		SkipBulletEntities: p == config.ProfileMobileLandscape,
	}
}

// Stats are connection counters.
type Stats struct {
	Connected    bool   `json:"connected"`
	SessionID    string `json:"session_id"`
	Messages     uint64 `json:"messages"`
	Snapshots    uint64 `json:"snapshots"`
	DecodeErrors uint64 `json:"decode_errors"`
	Reconnects   uint64 `json:"reconnects"`
	InputsSent   uint64 `json:"inputs_sent"`
	Throttled    uint64 `json:"throttled"`
}

// Client is a reconnecting websocket client for one game session.
type Client struct {
	opts      Options
	sessionID string
	limiter   *rate.Limiter

	connMu  sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	running  atomic.Bool
	closed   atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once

	inputSeq atomic.Uint64
	lastShot map[string]time.Time // reader goroutine only

	messages     atomic.Uint64
	snapshots    atomic.Uint64
	decodeErrors atomic.Uint64
	reconnects   atomic.Uint64
	inputsSent   atomic.Uint64
	throttled    atomic.Uint64

	log zerolog.Logger
}

// New creates a client. Store and Handler are required.
func New(opts Options) *Client {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.IntentRate <= 0 {
		opts.IntentRate = 60
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Client{
		opts:      opts,
		sessionID: ksuid.New().String(),
		limiter:   rate.NewLimiter(rate.Limit(opts.IntentRate), max(1, opts.IntentRate/10)),
		stopCh:    make(chan struct{}),
		lastShot:  make(map[string]time.Time),
		log:       opts.Logger,
	}
}

// SessionID identifies this client process to the server.
func (c *Client) SessionID() string { return c.sessionID }

// Connected reports whether a connection is up.
func (c *Client) Connected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn != nil
}

// Stats returns counters.
func (c *Client) Stats() Stats {
	return Stats{
		Connected:    c.Connected(),
		SessionID:    c.sessionID,
		Messages:     c.messages.Load(),
		Snapshots:    c.snapshots.Load(),
		DecodeErrors: c.decodeErrors.Load(),
		Reconnects:   c.reconnects.Load(),
		InputsSent:   c.inputsSent.Load(),
		Throttled:    c.throttled.Load(),
	}
}

// Run connects and reads until ctx is done or Close is called,
// reconnecting after ReconnectDelay whenever the connection drops.
func (c *Client) Run(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer c.running.Store(false)

	for {
		err := c.session(ctx)
		if c.closed.Load() {
			return ErrClosed
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.reconnects.Add(1)
		c.log.Warn().Err(err).Dur("retry_in", c.opts.ReconnectDelay).Msg("⚠️ Connection lost")

		timer := time.NewTimer(c.opts.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-c.stopCh:
			timer.Stop()
			return ErrClosed
		case <-timer.C:
		}
	}
}

// session runs one connection from dial to disconnect.
func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		metrics.RecordReconnect("dial")
		return fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	conn.SetReadLimit(maxMessageSize)

	c.connMu.Lock()
	if c.closed.Load() {
		c.connMu.Unlock()
		conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.connMu.Unlock()
	metrics.SetConnected(true)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.log.Info().Str("url", c.opts.URL).Str("session", c.sessionID).Msg("✅ Connected to game server")
	if err := c.writeJSON(conn, outSetName{Type: MsgSetName, Name: c.opts.PlayerName, SessionID: c.sessionID}); err != nil {
		c.log.Warn().Err(err).Msg("⚠️ Failed to send name")
	}

	err = c.readLoop(conn)

	c.connMu.Lock()
	c.conn = nil
	c.connMu.Unlock()
	conn.Close()
	metrics.SetConnected(false)

	if c.closed.Load() {
		metrics.RecordReconnect("closed")
	} else {
		metrics.RecordReconnect("read")
	}
	if c.opts.Handler != nil {
		c.opts.Handler.HandleDisconnect(err)
	}
	return err
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		receivedAt := c.opts.Clock()
		m, err := Decode(data)
		if err != nil {
			c.decodeErrors.Add(1)
			c.log.Debug().Err(err).Msg("⚠️ Dropping undecodable message")
			continue
		}
		c.messages.Add(1)
		c.Apply(m, receivedAt)
	}
}

// Close stops Run and drops the connection. It is safe to call more than once.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		c.closed.Store(true)
		close(c.stopCh)
		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.connMu.Unlock()
	})
}

// SendInput sends control state. Inputs that change shooting or boosting
// are always sent; steering-only inputs are throttled to IntentRate.
func (c *Client) SendInput(in Input) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	now := c.opts.Clock()
	if in.Shooting == nil && in.Boosting == nil && !c.limiter.AllowN(now, 1) {
		c.throttled.Add(1)
		return ErrThrottled
	}
	msg := outInput{
		Type:          MsgInput,
		InputSeq:      c.inputSeq.Add(1),
		ClientInputTs: float64(now.UnixMilli()),
		Input:         in,
	}
	if err := c.writeJSON(conn, msg); err != nil {
		return err
	}
	c.inputsSent.Add(1)
	return nil
}

func (c *Client) writeJSON(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Apply folds one decoded message into the Store and the Handler. It runs
// on the reader goroutine; tests call it directly.
func (c *Client) Apply(m *Message, receivedAt time.Time) {
	recvMs := float64(receivedAt.UnixNano()) / float64(time.Millisecond)
	metrics.RecordMessage(messageLabel(m.Type))
	store := c.opts.Store

	switch m.Type {
	case MsgInit:
		store.Update(func(f *world.Frame) {
			f.ServerTime = serverTime(m.Timestamp, recvMs)
			f.ReceivedAt = recvMs
			f.Obstacles = toObstacles(m.Pipes)
			f.Bullets = map[string]world.Bullet{}
			applyPlayers(f, m.Players, recvMs)
			applyOrbs(f, m.Orbs)
		})
		c.log.Info().Str("player_id", m.PlayerID).Int("players", len(m.Players)).Msg("🎮 Joined")
		if c.opts.Handler != nil {
			c.opts.Handler.HandleWelcome(m.PlayerID, m.Config)
		}

	case MsgState:
		store.Update(func(f *world.Frame) {
			f.ServerTime = serverTime(m.Timestamp, recvMs)
			f.ReceivedAt = recvMs
			applyPlayers(f, m.Players, recvMs)
			applyOrbs(f, m.Orbs)
		})
		c.snapshots.Add(1)
		metrics.RecordSnapshot()

	case MsgBulletSpawn:
		if m.Bullet == nil || m.Bullet.ID == "" || !world.Finite(m.Bullet.X, m.Bullet.Y) {
			return
		}
		b := toBullet(*m.Bullet)
		if !c.opts.SkipBulletEntities {
			store.Update(func(f *world.Frame) { f.Bullets[b.ID] = b })
		}
		c.emit(events.Shot{X: b.X, Y: b.Y, Angle: math.Atan2(b.VY, b.VX), OwnerID: b.OwnerID, BulletID: b.ID})

	case MsgBulletsRemove:
		if c.opts.SkipBulletEntities || len(m.BulletIDs) == 0 {
			return
		}
		store.Update(func(f *world.Frame) {
			for _, id := range m.BulletIDs {
				delete(f.Bullets, id)
			}
		})
		if c.opts.Handler != nil {
			c.opts.Handler.HandleBulletsRemove(m.BulletIDs)
		}

	case MsgPlayerDeath:
		if len(m.Orbs) > 0 {
			store.Update(func(f *world.Frame) {
				for _, o := range m.Orbs {
					if o.ID != "" {
						f.Orbs[o.ID] = world.Orb{ID: o.ID, X: o.X, Y: o.Y, Value: o.Value}
					}
				}
			})
		}
		if m.X == nil || m.Y == nil {
			return
		}
		birdType := ""
		if e, ok := store.Latest().Entities[m.PlayerID]; ok {
			birdType = e.BirdType
		}
		var tick int64
		if m.DeathTick != nil && world.Finite(*m.DeathTick) {
			tick = int64(*m.DeathTick)
		}
		c.emit(events.Death{X: *m.X, Y: *m.Y, PlayerID: m.PlayerID, BirdType: birdType, Tick: tick})

	case MsgPlayerHit:
		e, ok := store.Latest().Entities[m.PlayerID]
		if !ok {
			return
		}
		store.Update(func(f *world.Frame) {
			if cur, ok := f.Entities[m.PlayerID]; ok {
				cur.Health = m.Health
				f.Entities[m.PlayerID] = cur
			}
		})
		c.emit(events.Hit{X: e.X, Y: e.Y, AttackerID: m.AttackerID, PlayerID: m.PlayerID})

	case MsgOrbsCollected:
		latest := store.Latest()
		x, y := math.NaN(), math.NaN()
		if len(m.OrbIDs) > 0 {
			if o, ok := latest.Orbs[m.OrbIDs[0]]; ok {
				x, y = o.X, o.Y
			}
		}
		if !world.Finite(x, y) {
			if e, ok := latest.Entities[m.PlayerID]; ok {
				x, y = e.X, e.Y
			}
		}
		if len(m.OrbIDs) > 0 {
			store.Update(func(f *world.Frame) {
				for _, id := range m.OrbIDs {
					delete(f.Orbs, id)
				}
			})
		}
		c.emit(events.Pickup{X: x, Y: y, PlayerID: m.PlayerID, Count: len(m.OrbIDs)})

	case MsgOrbsSpawned:
		if len(m.Orbs) == 0 {
			return
		}
		store.Update(func(f *world.Frame) {
			for _, o := range m.Orbs {
				if o.ID != "" {
					f.Orbs[o.ID] = world.Orb{ID: o.ID, X: o.X, Y: o.Y, Value: o.Value}
				}
			}
		})

	case MsgPlayerShot:
		if m.WorldX == nil || m.WorldY == nil || !world.Finite(*m.WorldX, *m.WorldY) {
			return
		}
		shooter := m.ShooterID
		if shooter == "" {
			shooter = "unknown"
		}
		if last, ok := c.lastShot[shooter]; ok && receivedAt.Sub(last) < RemoteShotGap {
			return
		}
		c.lastShot[shooter] = receivedAt
		if len(c.lastShot) > 256 {
			c.pruneShots(receivedAt)
		}
		angle := 0.0
		if e, ok := store.Latest().Entities[shooter]; ok {
			angle = e.Angle
		}
		c.emit(events.Shot{X: *m.WorldX, Y: *m.WorldY, Angle: angle, OwnerID: shooter})
	}
}

func (c *Client) emit(p events.Payload) {
	if c.opts.Handler != nil {
		c.opts.Handler.HandleEvent(p)
	}
}

func (c *Client) pruneShots(now time.Time) {
	for id, at := range c.lastShot {
		if now.Sub(at) >= RemoteShotGap {
			delete(c.lastShot, id)
		}
	}
}

// messageLabel bounds the metrics label to known message types.
func messageLabel(t string) string {
	switch t {
	case MsgInit, MsgState, MsgBulletSpawn, MsgBulletsRemove, MsgPlayerDeath,
		MsgPlayerHit, MsgOrbsCollected, MsgOrbsSpawned, MsgPlayerShot:
		return t
	default:
		return "other"
	}
}
