package engine

import "github.com/louisbranch/monarena/internal/services/arena/domain/battle"

// EventKind names something that happened during a call.
type EventKind string

const (
	EventMove         EventKind = "move"
	EventSwitch       EventKind = "switch"
	EventNoOp         EventKind = "no_op"
	EventSkipped      EventKind = "skipped"
	EventRejected     EventKind = "rejected"
	EventStateChanged EventKind = "state_changed"
	EventKnockedOut   EventKind = "knocked_out"
	EventForfeit      EventKind = "forfeit"
	EventBattleEnded  EventKind = "battle_ended"
)

// Event is one entry of a turn's event stream.
type Event struct {
	Kind   EventKind `json:"kind"`
	Player int       `json:"player"`
	Slot   int       `json:"slot"`
	Mon    int       `json:"mon"`
	Move   string    `json:"move,omitempty"`
	Stat   string    `json:"stat,omitempty"`
	Delta  int32     `json:"delta,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// TurnResult is what a state-changing call reports back.
type TurnResult struct {
	BattleID string
	Turn     uint64
	Winner   battle.Winner
	Flag     battle.ActFlag
	// Ready is set by submissions once every required decision is present.
	Ready  bool
	Events []Event
	// Touched lists the effect scopes whose attachments changed.
	Touched []battle.Target
}
