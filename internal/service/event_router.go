package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/vaultbot/internal/domain"
	"github.com/alanyoungcy/vaultbot/internal/metrics"
)

// routerQueueSize bounds events waiting for delivery.
const routerQueueSize = 1024

// EventNotifier forwards selected events to operators.
type EventNotifier interface {
	Enabled(event string) bool
	NotifyEvent(ctx context.Context, ev domain.Event) error
}

// EventRouter implements domain.EventSink. Events are queued without
// blocking the engine and delivered in order to Redis pub/sub, the ledger
// stream and the notifier.
type EventRouter struct {
	bus      domain.SignalBus
	notifier EventNotifier
	queue    chan domain.Event
	logger   *slog.Logger
}

var _ domain.EventSink = (*EventRouter)(nil)

// NewEventRouter creates an EventRouter. notifier may be nil.
func NewEventRouter(bus domain.SignalBus, notifier EventNotifier, logger *slog.Logger) *EventRouter {
	return &EventRouter{
		bus:      bus,
		notifier: notifier,
		queue:    make(chan domain.Event, routerQueueSize),
		logger:   logger.With(slog.String("component", "event_router")),
	}
}

// Emit queues ev. When the queue is full the event is dropped and counted.
func (r *EventRouter) Emit(ev domain.Event) {
	select {
	case r.queue <- ev:
	default:
		metrics.MessagesDropped.WithLabelValues("event_queue_full").Inc()
	}
}

// Run delivers queued events until ctx is cancelled.
func (r *EventRouter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return ctx.Err()
		case ev := <-r.queue:
			r.route(ctx, ev)
		}
	}
}

func (r *EventRouter) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case ev := <-r.queue:
			r.route(ctx, ev)
		default:
			return
		}
	}
}

// ChannelFor maps an event kind to its pub/sub channel.
func ChannelFor(kind domain.EventKind) string {
	switch kind {
	case domain.EventActivity:
		return domain.ChannelActivity
	case domain.EventTrade:
		return domain.ChannelTrade
	case domain.EventVaultSweep:
		return domain.ChannelVault
	default:
		return domain.ChannelStatus
	}
}

func (r *EventRouter) route(ctx context.Context, ev domain.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.logger.WarnContext(ctx, "event marshal failed",
			slog.String("kind", string(ev.Kind)),
			slog.String("error", err.Error()),
		)
		return
	}

	channel := ChannelFor(ev.Kind)
	if err := r.bus.Publish(ctx, channel, payload); err != nil {
		r.logger.WarnContext(ctx, "event publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}

	if ev.Kind == domain.EventTrade || ev.Kind == domain.EventVaultSweep {
		if err := r.bus.StreamAppend(ctx, domain.StreamLedger, payload); err != nil {
			r.logger.WarnContext(ctx, "ledger stream append failed", slog.String("error", err.Error()))
		}
	}

	if r.notifier != nil && r.notifier.Enabled(string(ev.Kind)) {
		if err := r.notifier.NotifyEvent(ctx, ev); err != nil {
			r.logger.WarnContext(ctx, "notify failed",
				slog.String("kind", string(ev.Kind)),
				slog.String("error", err.Error()),
			)
		}
	}
}
