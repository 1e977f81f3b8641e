package domain

import "time"

// EventKind names an engine notification.
type EventKind string

const (
	EventActivity     EventKind = "activity"
	EventTrade        EventKind = "trade"
	EventVaultSweep   EventKind = "vault_sweep"
	EventPhase        EventKind = "phase"
	EventPanic        EventKind = "panic"
	EventAuthFailed   EventKind = "auth_failed"
	EventDisconnected EventKind = "disconnected"
)

// Event is emitted by the engine after a state change has been applied. The
// payload is one of LogEntry, TradeRecord, VaultSweep or Phase depending on
// Kind.
type Event struct {
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// EventSink receives engine events. Implementations must not block.
type EventSink interface {
	Emit(ev Event)
}
