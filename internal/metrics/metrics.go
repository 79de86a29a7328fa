// Package metrics declares the process's Prometheus instrumentation.
//
// Naming convention: namespace_subsystem_name
//   - namespace: boardsync
//   - subsystem: room, dbqueue, ratelimit, websocket, circuit_breaker, redis
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "boardsync",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "boardsync",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of live room actors",
	})

	RoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "boardsync",
		Subsystem: "room",
		Name:      "members_count",
		Help:      "Number of connected members in each room",
	}, []string{"room_id"})

	RoomMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boardsync",
		Subsystem: "room",
		Name:      "messages_total",
		Help:      "Total room actor mailbox messages processed",
	}, []string{"kind", "status"})

	RoomMessageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "boardsync",
		Subsystem: "room",
		Name:      "message_processing_seconds",
		Help:      "Time spent processing a room actor mailbox message",
		Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"kind"})

	DBQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "boardsync",
		Subsystem: "dbqueue",
		Name:      "lane_depth",
		Help:      "Number of rows written by the last flush of a DB queue lane",
	}, []string{"lane"})

	DBQueueFlushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "boardsync",
		Subsystem: "dbqueue",
		Name:      "flush_duration_seconds",
		Help:      "Duration of a bulk flush on a DB queue lane",
		Buckets:   prometheus.DefBuckets,
	}, []string{"lane"})

	DBQueueFlushErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boardsync",
		Subsystem: "dbqueue",
		Name:      "flush_errors_total",
		Help:      "Total number of failed bulk flushes on a DB queue lane",
	}, []string{"lane"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "boardsync",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	RateLimitBanned = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "boardsync",
		Subsystem: "ratelimit",
		Name:      "banned_ips",
		Help:      "Current number of banned IP addresses",
	})

	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boardsync",
		Subsystem: "ratelimit",
		Name:      "exceeded_total",
		Help:      "Total number of requests/messages that exceeded a rate limit",
	}, []string{"surface", "reason"})

	RedisOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boardsync",
		Subsystem: "redis",
		Name:      "operations_total",
		Help:      "Total number of Redis operations",
	}, []string{"operation", "status"})

	RedisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "boardsync",
		Subsystem: "redis",
		Name:      "operation_duration_seconds",
		Help:      "Duration of Redis operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boardsync",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total number of calls dropped while a circuit breaker is open",
	}, []string{"service"})
)

func IncConnection() { ActiveWebSocketConnections.Inc() }
func DecConnection() { ActiveWebSocketConnections.Dec() }
