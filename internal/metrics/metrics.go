// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WSConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultbot_ws_connected",
		Help: "1 while the broker session is open",
	})

	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultbot_messages_received_total",
		Help: "Inbound broker messages by msg_type",
	}, []string{"msg_type"})

	MessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultbot_messages_dropped_total",
		Help: "Inbound broker messages discarded, by reason",
	}, []string{"reason"})

	RequestsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultbot_requests_sent_total",
		Help: "Outbound broker requests by kind",
	}, []string{"kind"})

	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultbot_open_positions",
		Help: "Contracts currently held",
	})

	PendingRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultbot_pending_requests",
		Help: "Correlated requests awaiting a response",
	})

	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultbot_settlements_total",
		Help: "Settled contracts by result",
	}, []string{"result"})

	FastExits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultbot_fast_exits_total",
		Help: "Early sells triggered by the profit target",
	})

	RunningProfit = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultbot_running_profit",
		Help: "Unswept realised profit",
	})

	VaultBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultbot_vault_balance",
		Help: "Total profit locked in the vault",
	})

	VaultSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultbot_vault_sweeps_total",
		Help: "Number of vault sweeps",
	})

	PersistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultbot_persist_failures_total",
		Help: "Failed persistence writes by kind",
	}, []string{"kind"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultbot_http_requests_total",
		Help: "API requests by method and status",
	}, []string{"method", "status"})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultbot_ws_clients",
		Help: "Dashboard websocket clients attached to the hub",
	})
)
