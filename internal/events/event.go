// Package events is the in-process publish/subscribe channel between the
// simulation, the effect systems and the audio dispatcher.
package events

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeShot
	EventTypeHit
	EventTypeDeath
	EventTypePickup
	EventTypeFireStart
	EventTypeFireStop

	numEventTypes
)

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeShot:
		return "shot"
	case EventTypeHit:
		return "hit"
	case EventTypeDeath:
		return "death"
	case EventTypePickup:
		return "pickup"
	case EventTypeFireStart:
		return "fireStart"
	case EventTypeFireStop:
		return "fireStop"
	default:
		return "unknown"
	}
}

// Payload is implemented by every event body. Type must not depend on
// field values.
type Payload interface {
	Type() EventType
}

// Typed payloads for different event types

// Shot is published for every fired bullet, local or remote.
type Shot struct {
	X        float64
	Y        float64
	Angle    float64
	OwnerID  string
	BulletID string
	Local    bool
}

// Hit is published when the server reports a bullet hit.
type Hit struct {
	X          float64
	Y          float64
	AttackerID string
	PlayerID   string
}

// Death is published when a player dies. Tick is the server death tick
// used for deduplication.
type Death struct {
	X        float64
	Y        float64
	PlayerID string
	BirdType string
	Tick     int64
}

// Pickup is published when orbs are collected.
type Pickup struct {
	X        float64
	Y        float64
	PlayerID string
	Count    int
}

// FireStart is the input layer's intent to begin sustained fire.
type FireStart struct {
	PlayerID string
}

// FireStop ends sustained fire. Reason is informational ("release", "death", "blur").
type FireStop struct {
	PlayerID string
	Reason   string
}

func (Shot) Type() EventType      { return EventTypeShot }
func (Hit) Type() EventType       { return EventTypeHit }
func (Death) Type() EventType     { return EventTypeDeath }
func (Pickup) Type() EventType    { return EventTypePickup }
func (FireStart) Type() EventType { return EventTypeFireStart }
func (FireStop) Type() EventType  { return EventTypeFireStop }
