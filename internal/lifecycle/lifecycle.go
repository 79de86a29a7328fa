// Package lifecycle runs the three background loops every long-lived
// replica needs, each a direct port of one of the original
// implementation's lifecycle tasks (server/src/lifecycle/): the reaper
// (cache_cleaner.rs's cleanup_cache, evicting idle rooms via HasUsers
// instead of a bespoke TryExpireCache message), the monitor (monitor.rs,
// periodic active-room logging), and the shutdown coordinator
// (on_shutdown.rs, broadcasting Expire to every live room and waiting
// for each to finish flushing before the process exits).
package lifecycle

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/boardsync/server/internal/logging"
	"github.com/boardsync/server/internal/registry"
	"github.com/boardsync/server/internal/roomactor"
)

// Reaper periodically evicts rooms that have had no connected members
// for at least grace, freeing their actor goroutine and mailbox.
type Reaper struct {
	reg      *registry.Registry
	interval time.Duration
	grace    time.Duration

	mu        sync.Mutex
	idleSince map[string]time.Time
}

func NewReaper(reg *registry.Registry, interval, grace time.Duration) *Reaper {
	return &Reaper{reg: reg, interval: interval, grace: grace, idleSince: make(map[string]time.Time)}
}

// Run sweeps every interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	active := r.reg.Active()
	seen := make(map[string]bool, len(active))
	for _, id := range active {
		seen[id] = true
		ref, ok := r.reg.Lookup(id)
		if !ok {
			continue
		}
		if ref.HasUsers(ctx) {
			delete(r.idleSince, id)
			continue
		}
		since, idle := r.idleSince[id]
		if !idle {
			r.idleSince[id] = now
			continue
		}
		if now.Sub(since) >= r.grace {
			logging.Info(ctx, "reaping idle room")
			r.reg.Evict(ctx, id)
			delete(r.idleSince, id)
		}
	}
	for id := range r.idleSince {
		if !seen[id] {
			delete(r.idleSince, id)
		}
	}
}

// Monitor periodically logs the active room count, the direct analog of
// monitor.rs's info! logging loop.
type Monitor struct {
	reg      *registry.Registry
	interval time.Duration
}

func NewMonitor(reg *registry.Registry, interval time.Duration) *Monitor {
	return &Monitor{reg: reg, interval: interval}
}

func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logging.Info(ctx, "lifecycle monitor tick", zap.Int("active_rooms", len(m.reg.Active())))
		}
	}
}

// Shutdown broadcasts Expire to every live room and waits for each one
// to finish its final flush, the direct analog of on_shutdown.rs.
func Shutdown(ctx context.Context, reg *registry.Registry) {
	ids := reg.Active()
	var wg sync.WaitGroup
	for _, id := range ids {
		ref, ok := reg.Lookup(id)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(ref roomactor.Ref) {
			defer wg.Done()
			ref.Expire(ctx)
		}(ref)
	}
	wg.Wait()
}
