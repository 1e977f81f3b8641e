package domain

import "time"

// Severity classifies an activity log entry.
type Severity string

const (
	SeveritySystem Severity = "system"
	SeveritySignal Severity = "signal"
	SeverityTrade  Severity = "trade"
	SeverityVault  Severity = "vault"
	SeverityError  Severity = "error"
)

// LogEntry is one line of the engine's bounded activity log.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
}
