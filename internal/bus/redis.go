// Package bus is the cross-process side channel between boardsync-server
// replicas. Board state itself never crosses this bus — every board
// lives on exactly one replica's room actor, per the Room Registry's
// single-owner model — but two things must still fan out to every
// replica: a co-editor token rotation invalidating sessions that may be
// authenticated against a different replica's in-memory actor, and the
// flood guard's ban list, so a client banned on one replica is banned
// everywhere. Adapted from the teacher's internal/v1/bus/redis.go,
// trimmed to these two event kinds instead of generic WebRTC signaling
// fan-out.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/boardsync/server/internal/logging"
	"github.com/boardsync/server/internal/metrics"
)

// Event is the envelope published on the shared channel.
type Event struct {
	Kind    string          `json:"kind"` // "co_editor_rotated" | "ip_banned" | "ip_unbanned"
	BoardID string          `json:"boardId,omitempty"`
	IP      string          `json:"ip,omitempty"`
	Strict  bool            `json:"strict,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const channel = "boardsync:events"

// Service wraps a Redis client behind a circuit breaker so a Redis
// outage degrades this side channel rather than taking down the process.
type Service struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// NewService opens a Redis connection, verifying it with an immediate
// ping. addr/password may describe a disabled Redis (see config.Config);
// callers should not construct a Service at all in that case.
func NewService(addr, password string) (*Service, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var v float64
			switch to {
			case gobreaker.StateClosed:
				v = 0
			case gobreaker.StateOpen:
				v = 1
			case gobreaker.StateHalfOpen:
				v = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(v)
		},
	}

	logging.Info(context.Background(), "connected to redis event bus")
	return &Service{client: rdb, cb: gobreaker.NewCircuitBreaker(st)}, nil
}

// Client exposes the underlying client for health checks.
func (s *Service) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// PublishCoEditorRotated announces on the shared channel that boardID's
// co-editor token was rotated. Only the announcement is made here: the
// server's own Subscribe handler acts on ip_banned/ip_unbanned events and
// ignores this kind.
func (s *Service) PublishCoEditorRotated(ctx context.Context, boardID string) error {
	return s.publish(ctx, Event{Kind: "co_editor_rotated", BoardID: boardID})
}

// PublishIPBanned mirrors a flood guard ban decision to every replica.
func (s *Service) PublishIPBanned(ctx context.Context, ip string, strict bool) error {
	return s.publish(ctx, Event{Kind: "ip_banned", IP: ip, Strict: strict})
}

// PublishIPUnbanned mirrors a flood guard ban expiry to every replica.
func (s *Service) PublishIPUnbanned(ctx context.Context, ip string) error {
	return s.publish(ctx, Event{Kind: "ip_unbanned", IP: ip})
}

func (s *Service) publish(ctx context.Context, evt Event) error {
	if s == nil || s.client == nil {
		return nil
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		data, err := json.Marshal(evt)
		if err != nil {
			return nil, err
		}
		return nil, s.client.Publish(ctx, channel, data).Err()
	})
	if err == gobreaker.ErrOpenState {
		metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
		logging.Warn(ctx, "redis circuit open, dropping bus publish")
		return nil
	}
	return err
}

// Subscribe starts a background listener invoking handler for every event
// published on the shared channel, including this replica's own
// publications, until ctx is cancelled.
func (s *Service) Subscribe(ctx context.Context, handler func(Event)) {
	if s == nil || s.client == nil {
		return
	}
	pubsub := s.client.Subscribe(ctx, channel)
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					logging.Error(ctx, "failed to decode bus event")
					continue
				}
				handler(evt)
			}
		}
	}()
}

// Ping checks Redis connectivity, used by the readiness handler.
func (s *Service) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	return err
}

// Close releases the underlying connection pool.
func (s *Service) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
