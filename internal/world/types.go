// Package world holds the authoritative tables the server hands the client.
// Everything here is read-only from the engine's point of view.
package world

// Entity is one player as last reported by the server.
type Entity struct {
	ID            string
	Name          string
	X             float64
	Y             float64
	Angle         float64
	Alive         bool
	Health        float64
	Boost         float64
	Boosting      bool
	BoostDepleted bool
	OnGround      bool
	Shooting      bool // sustained fire, as reported for remote shooters
	BirdType      string
	Kills         int

	// Stamp is the sample time in milliseconds: the receipt time when the
	// server provided one, else the snapshot timestamp.
	Stamp float64
}

// Bullet is a server-replicated projectile. Velocity is per 60Hz tick.
type Bullet struct {
	ID        string
	OwnerID   string
	X         float64
	Y         float64
	VX        float64
	VY        float64
	CreatedAt float64 // ms
}

// Orb is a collectible.
type Orb struct {
	ID    string
	X     float64
	Y     float64
	Value float64
}

// Obstacle is an axis-aligned rectangle (a pipe segment).
type Obstacle struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Frame is one immutable authoritative snapshot of the world tables.
type Frame struct {
	Seq        uint64
	ServerTime float64 // ms, as sent by the server
	ReceivedAt float64 // ms, local clock
	Entities   map[string]Entity
	Bullets    map[string]Bullet
	Orbs       map[string]Orb
	Obstacles  []Obstacle
}

// EmptyFrame returns a frame with allocated, empty tables.
func EmptyFrame() *Frame {
	return &Frame{
		Entities: map[string]Entity{},
		Bullets:  map[string]Bullet{},
		Orbs:     map[string]Orb{},
	}
}
