package netclient

import (
	"encoding/json"
	"fmt"
	"math"

	"flappy-client/internal/world"
)

// Server message types.
const (
	MsgInit          = "init"
	MsgState         = "state"
	MsgBulletSpawn   = "bulletSpawn"
	MsgBulletsRemove = "bulletsRemove"
	MsgPlayerDeath   = "playerDeath"
	MsgPlayerHit     = "playerHit"
	MsgOrbsCollected = "orbsCollected"
	MsgOrbsSpawned   = "orbsSpawned"
	MsgPlayerShot    = "player_shot"
)

// Client message types.
const (
	MsgSetName = "setName"
	MsgInput   = "input"
)

type wirePlayer struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Angle         float64 `json:"angle"`
	Health        float64 `json:"health"`
	Kills         int     `json:"kills"`
	Alive         bool    `json:"alive"`
	Boost         float64 `json:"boost"`
	Boosting      bool    `json:"boosting"`
	BoostDepleted bool    `json:"boostDepleted"`
	Shooting      bool    `json:"shooting"`
	OnGround      bool    `json:"onGround"`
	BirdType      string  `json:"birdType"`
}

type wireBullet struct {
	ID        string  `json:"id"`
	OwnerID   string  `json:"ownerId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	VX        float64 `json:"vx"`
	VY        float64 `json:"vy"`
	CreatedAt float64 `json:"createdAt"`
}

type wireOrb struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value float64 `json:"valueLamports"`
}

type wirePipe struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ServerConfig is the subset of the init config the client uses.
type ServerConfig struct {
	WorldWidth    float64 `json:"worldWidth"`
	WorldHeight   float64 `json:"worldHeight"`
	PlayerSize    float64 `json:"playerSize"`
	BulletSpeed   float64 `json:"bulletSpeed"`
	BulletRange   float64 `json:"bulletRange"`
	ShootCooldown float64 `json:"shootCooldown"`
	BoostMax      float64 `json:"boostMax"`
}

// Message is every server message flattened into one struct; only the
// fields of Type are set.
type Message struct {
	Type      string        `json:"type"`
	Timestamp float64       `json:"timestamp"`
	PlayerID  string        `json:"playerId"`
	Config    *ServerConfig `json:"config"`
	Pipes     []wirePipe    `json:"pipes"`
	Players   []wirePlayer  `json:"players"`
	Orbs      []wireOrb     `json:"orbs"`

	Bullet    *wireBullet `json:"bullet"`
	BulletIDs []string    `json:"bulletIds"`

	X         *float64 `json:"x"`
	Y         *float64 `json:"y"`
	KillerID  string   `json:"killerId"`
	Cause     string   `json:"cause"`
	DeathTick *float64 `json:"deathTick"`

	Health     float64 `json:"health"`
	AttackerID string  `json:"attackerId"`

	OrbIDs []string `json:"orbIds"`

	ShooterID string   `json:"shooterId"`
	WorldX    *float64 `json:"worldX"`
	WorldY    *float64 `json:"worldY"`
}

// Decode parses one server message.
func Decode(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if m.Type == "" {
		return nil, fmt.Errorf("decode message: missing type")
	}
	return &m, nil
}

// Input is the outgoing control state. Only set fields are sent.
type Input struct {
	Angle    *float64 `json:"angle,omitempty"`
	Throttle *float64 `json:"throttle,omitempty"`
	Shooting *bool    `json:"shooting,omitempty"`
	Boosting *bool    `json:"boosting,omitempty"`
}

type outInput struct {
	Type          string  `json:"type"`
	InputSeq      uint64  `json:"inputSeq"`
	ClientInputTs float64 `json:"clientInputTs"`
	Input
}

type outSetName struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	SessionID string `json:"sessionId"`
}

func toEntity(p wirePlayer, stamp float64) world.Entity {
	return world.Entity{
		ID:            p.ID,
		Name:          p.Name,
		X:             p.X,
		Y:             p.Y,
		Angle:         p.Angle,
		Alive:         p.Alive,
		Health:        p.Health,
		Boost:         p.Boost,
		Boosting:      p.Boosting,
		BoostDepleted: p.BoostDepleted,
		OnGround:      p.OnGround,
		Shooting:      p.Shooting,
		BirdType:      p.BirdType,
		Kills:         p.Kills,
		Stamp:         stamp,
	}
}

func toBullet(b wireBullet) world.Bullet {
	return world.Bullet{
		ID:        b.ID,
		OwnerID:   b.OwnerID,
		X:         b.X,
		Y:         b.Y,
		VX:        b.VX,
		VY:        b.VY,
		CreatedAt: b.CreatedAt,
	}
}

func toObstacles(pipes []wirePipe) []world.Obstacle {
	out := make([]world.Obstacle, 0, len(pipes))
	for _, p := range pipes {
		if !world.Finite(p.X, p.Y, p.Width, p.Height) || p.Width <= 0 || p.Height <= 0 {
			continue
		}
		out = append(out, world.Obstacle{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height})
	}
	return out
}

// applyPlayers replaces the entity table, dropping players the message
// no longer lists.
func applyPlayers(f *world.Frame, players []wirePlayer, stamp float64) {
	next := make(map[string]world.Entity, len(players))
	for _, p := range players {
		if p.ID == "" {
			continue
		}
		next[p.ID] = toEntity(p, stamp)
	}
	f.Entities = next
}

func applyOrbs(f *world.Frame, orbs []wireOrb) {
	next := make(map[string]world.Orb, len(orbs))
	for _, o := range orbs {
		if o.ID == "" {
			continue
		}
		next[o.ID] = world.Orb{ID: o.ID, X: o.X, Y: o.Y, Value: o.Value}
	}
	f.Orbs = next
}

// serverTime is the snapshot's server timestamp, or the receipt time when
// the server sent none.
func serverTime(serverTs, receivedAt float64) float64 {
	if serverTs > 0 && !math.IsInf(serverTs, 0) && !math.IsNaN(serverTs) {
		return serverTs
	}
	return receivedAt
}
