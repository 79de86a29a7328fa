package ratelimit

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/boardsync/server/internal/config"
	"github.com/boardsync/server/internal/logging"
)

// HTTPLimiter holds the ulule/limiter instances guarding the HTTP API
// surface, grounded on the teacher's internal/v1/ratelimit/limiter.go.
// Unlike the FloodGuard (which bans abusive sockets outright), this layer
// enforces steady-state request quotas per route class.
type HTTPLimiter struct {
	global   *limiter.Limiter
	public   *limiter.Limiter
	rooms    *limiter.Limiter
	messages *limiter.Limiter
}

// NewHTTPLimiter builds the four route-class limiters. redisClient may be
// nil, in which case an in-memory store is used (single-process/dev mode).
func NewHTTPLimiter(cfg *config.Config, redisClient *redis.Client) (*HTTPLimiter, error) {
	globalRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPIGlobal)
	if err != nil {
		return nil, fmt.Errorf("invalid global rate: %w", err)
	}
	publicRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPIPublic)
	if err != nil {
		return nil, fmt.Errorf("invalid public rate: %w", err)
	}
	roomsRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPIRooms)
	if err != nil {
		return nil, fmt.Errorf("invalid rooms rate: %w", err)
	}
	messagesRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPIMessages)
	if err != nil {
		return nil, fmt.Errorf("invalid messages rate: %w", err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "boardsync:limiter:"})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "HTTP rate limiter using Redis store")
	} else {
		store = memory.NewStore()
		logging.Warn(context.Background(), "HTTP rate limiter using in-memory store")
	}

	return &HTTPLimiter{
		global:   limiter.New(store, globalRate),
		public:   limiter.New(store, publicRate),
		rooms:    limiter.New(store, roomsRate),
		messages: limiter.New(store, messagesRate),
	}, nil
}

// Global applies the process-wide request quota to every route.
func (h *HTTPLimiter) Global() gin.HandlerFunc {
	return mgin.NewMiddleware(h.global)
}

// Public applies the stricter unauthenticated-route quota (login, signup,
// public board reads).
func (h *HTTPLimiter) Public() gin.HandlerFunc {
	return mgin.NewMiddleware(h.public)
}

// Rooms applies the room-creation/mutation quota.
func (h *HTTPLimiter) Rooms() gin.HandlerFunc {
	return mgin.NewMiddleware(h.rooms)
}

// Messages applies the message-volume quota, for any HTTP endpoint that
// accepts bulk edit submissions outside the WebSocket path.
func (h *HTTPLimiter) Messages() gin.HandlerFunc {
	return mgin.NewMiddleware(h.messages)
}
