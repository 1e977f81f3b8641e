package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/vaultbot/internal/domain"
	"github.com/google/uuid"
)

// ActivityCapacity bounds the activity log.
const ActivityCapacity = 200

// ActivityLog is the bounded, append-only record of engine events. Every
// entry is mirrored to slog and handed to the emit callback.
type ActivityLog struct {
	ring   *Ring[domain.LogEntry]
	logger *slog.Logger
	now    func() time.Time
	emit   func(domain.LogEntry)
}

// NewActivityLog returns an empty log. emit may be nil.
func NewActivityLog(logger *slog.Logger, now func() time.Time, emit func(domain.LogEntry)) *ActivityLog {
	return &ActivityLog{
		ring:   NewRing[domain.LogEntry](ActivityCapacity),
		logger: logger,
		now:    now,
		emit:   emit,
	}
}

// Add appends an entry and returns it.
func (a *ActivityLog) Add(sev domain.Severity, msg string) domain.LogEntry {
	entry := domain.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: a.now(),
		Severity:  sev,
		Message:   msg,
	}
	a.ring.Push(entry)

	level := slog.LevelInfo
	if sev == domain.SeverityError {
		level = slog.LevelWarn
	}
	a.logger.Log(context.Background(), level, msg, slog.String("severity", string(sev)))

	if a.emit != nil {
		a.emit(entry)
	}
	return entry
}

// Entries returns the retained entries, oldest first.
func (a *ActivityLog) Entries() []domain.LogEntry { return a.ring.Items() }

// Len returns the number of retained entries.
func (a *ActivityLog) Len() int { return a.ring.Len() }
