// Package ratelimit implements two independent layers of abuse protection:
// a bespoke per-IP flood-guard actor modelled directly on the original
// implementation's ban_manager task (libs/flood_protection.rs), and an
// ulule/limiter-backed HTTP middleware layer grounded on the teacher's
// internal/v1/ratelimit/limiter.go for the outer HTTP surface.
package ratelimit

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/boardsync/server/internal/apperr"
	"github.com/boardsync/server/internal/logging"
	"github.com/boardsync/server/internal/metrics"
)

// Constants match the original's libs/flood_protection.rs exactly.
const (
	banLimit         = 10 * time.Minute
	strictBanLimit   = 24 * time.Hour
	measureRate      = 15 * time.Second
	requestLimit     = 50
	messageLimit     = 3000
	criticalBanCount = 100
)

type visitor struct {
	requestCount int
	messageCount int
	lastRequest  time.Time
	lastMessage  time.Time
}

type banned struct {
	bannedAt time.Time
	strict   bool
}

func (b banned) over(now time.Time) bool {
	limit := banLimit
	if b.strict {
		limit = strictBanLimit
	}
	return now.Sub(b.bannedAt) > limit
}

type actionKind int

const (
	actionRequest actionKind = iota
	actionMessage
)

type action struct {
	ip   string
	kind actionKind
}

// Publisher mirrors a ban decision to the other replicas in the cluster,
// satisfied by *bus.Service. Left nil in single-replica deployments.
type Publisher interface {
	PublishIPBanned(ctx context.Context, ip string, strict bool) error
	PublishIPUnbanned(ctx context.Context, ip string) error
}

// FloodGuard is a single actor goroutine tracking recent request/message
// rates per IP and banning ones that exceed the thresholds above. A
// single instance is shared process-wide (HTTP requests and WebSocket
// messages alike feed it), matching the original's single ban_manager
// task fed from both the HTTP filter chain and the room's message loop.
type FloodGuard struct {
	actions chan action
	unban   chan string
	remote  chan banEvent

	pub Publisher

	mu       sync.RWMutex
	visitors map[string]*visitor
	banlist  map[string]banned
}

type banEvent struct {
	ip     string
	banned bool
	strict bool
}

func NewFloodGuard() *FloodGuard {
	return &FloodGuard{
		actions:  make(chan action, 4096),
		unban:    make(chan string, 256),
		remote:   make(chan banEvent, 256),
		visitors: make(map[string]*visitor),
		banlist:  make(map[string]banned),
	}
}

// SetPublisher wires cross-replica ban mirroring. Call before Run.
func (f *FloodGuard) SetPublisher(pub Publisher) {
	f.pub = pub
}

// ApplyRemoteBan mirrors a ban decision made by another replica's
// FloodGuard into this one's banlist, so a client banned on one replica
// stays banned regardless of which replica load balancing routes it to
// next.
func (f *FloodGuard) ApplyRemoteBan(ip string, strict bool) {
	select {
	case f.remote <- banEvent{ip: ip, banned: true, strict: strict}:
	default:
	}
}

// ApplyRemoteUnban mirrors a ban expiry decided by another replica.
func (f *FloodGuard) ApplyRemoteUnban(ip string) {
	select {
	case f.remote <- banEvent{ip: ip, banned: false}:
	default:
	}
}

// Run processes actions until ctx is cancelled. Must be started exactly
// once, typically from cmd/server/main.go alongside the DB Queue.
func (f *FloodGuard) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-f.actions:
			f.handle(a)
		case ip := <-f.unban:
			f.mu.Lock()
			delete(f.banlist, ip)
			f.mu.Unlock()
			metrics.RateLimitBanned.Set(float64(len(f.banlist)))
			f.publishUnban(ip)
		case ev := <-f.remote:
			f.mu.Lock()
			if ev.banned {
				f.banlist[ev.ip] = banned{bannedAt: time.Now(), strict: ev.strict}
			} else {
				delete(f.banlist, ev.ip)
			}
			f.mu.Unlock()
			metrics.RateLimitBanned.Set(float64(len(f.banlist)))
		}
	}
}

func (f *FloodGuard) handle(a action) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.visitors) > criticalBanCount {
		f.cleanupLocked()
	}

	v, ok := f.visitors[a.ip]
	if !ok {
		v = &visitor{lastRequest: time.Now(), lastMessage: time.Now()}
		f.visitors[a.ip] = v
	}

	now := time.Now()
	switch a.kind {
	case actionRequest:
		if now.Sub(v.lastRequest) < measureRate {
			v.requestCount++
		} else {
			v.requestCount = 1
			v.lastRequest = now
		}
		if v.requestCount > requestLimit {
			f.banLocked(a.ip)
		}
	case actionMessage:
		if now.Sub(v.lastMessage) < measureRate {
			v.messageCount++
		} else {
			v.messageCount = 1
			v.lastMessage = now
		}
		if v.messageCount > messageLimit {
			f.banLocked(a.ip)
		}
	}
}

// banLocked must be called with f.mu held.
func (f *FloodGuard) banLocked(ip string) {
	if _, already := f.banlist[ip]; already {
		return
	}
	strict := len(f.banlist) > criticalBanCount
	f.banlist[ip] = banned{bannedAt: time.Now(), strict: strict}
	logging.Warn(context.Background(), "ip banned for request/message flood")
	metrics.RateLimitExceeded.WithLabelValues("flood_guard", "banned").Inc()
	metrics.RateLimitBanned.Set(float64(len(f.banlist)))
	f.publishBan(ip, strict)
}

func (f *FloodGuard) publishBan(ip string, strict bool) {
	if f.pub == nil {
		return
	}
	if err := f.pub.PublishIPBanned(context.Background(), ip, strict); err != nil {
		logging.Warn(context.Background(), "failed to mirror ip ban to bus")
	}
}

func (f *FloodGuard) publishUnban(ip string) {
	if f.pub == nil {
		return
	}
	if err := f.pub.PublishIPUnbanned(context.Background(), ip); err != nil {
		logging.Warn(context.Background(), "failed to mirror ip unban to bus")
	}
}

// cleanupLocked drops visitor entries that have gone quiet long enough
// to no longer matter, keeping the table bounded under sustained churn.
// Must be called with f.mu held.
func (f *FloodGuard) cleanupLocked() {
	now := time.Now()
	for ip, v := range f.visitors {
		if now.Sub(v.lastRequest) > measureRate*4 && now.Sub(v.lastMessage) > measureRate*4 {
			delete(f.visitors, ip)
		}
	}
}

// CheckAndRecordRequest is the HTTP-path check: rejects banned IPs, and
// records the hit otherwise (auto-unbanning an expired ban). Call once
// per inbound HTTP request.
func (f *FloodGuard) CheckAndRecordRequest(ip string) error {
	return f.checkAndRecord(ip, actionRequest)
}

// CheckAndRecordMessage is the WebSocket-path check, called once per
// inbound client frame on an already-established connection.
func (f *FloodGuard) CheckAndRecordMessage(ip string) error {
	return f.checkAndRecord(ip, actionMessage)
}

func (f *FloodGuard) checkAndRecord(ip string, kind actionKind) error {
	f.mu.RLock()
	b, banned := f.banlist[ip]
	f.mu.RUnlock()

	if banned {
		if !b.over(time.Now()) {
			return apperr.ErrBanned
		}
		select {
		case f.unban <- ip:
		default:
		}
	}

	select {
	case f.actions <- action{ip: ip, kind: kind}:
	default:
		// actions lane saturated; drop rather than block the caller, the
		// request limit will still trip on a subsequent hit.
	}
	return nil
}

// RemoteIP extracts the bare IP from a request's RemoteAddr, tolerating
// addresses with no port (common in tests).
func RemoteIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
