// Package ratelimit throttles login attempts per client identifier.
//
// Each identifier gets a window of MaxAttempts attempts. Attempts beyond that
// are denied until the window ends, and still counted: reaching
// BlacklistThreshold within one window blacklists the identifier for
// BlacklistDuration, during which every check is denied whatever the window
// state. State is held in process memory only.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/infra/logging"
	"github.com/mkrupp/promptbank/internal/util/clock"
)

// BlacklistMessage is returned to blacklisted clients.
const BlacklistMessage = "IP address temporarily blocked due to suspicious activity"

type entry struct {
	count        int
	resetAt      time.Time
	firstAttempt time.Time
}

type blacklistEntry struct {
	until time.Time
	timer clock.Timer
}

// Limiter is an in-memory attempt counter with blacklist escalation.
// Check and Reset are safe for concurrent use.
type Limiter struct {
	cfg   Config
	clock clock.Clock
	log   logging.Logger

	mu        sync.Mutex
	entries   map[string]*entry
	blacklist map[string]blacklistEntry
	sweep     clock.Timer
	closed    bool
}

// NewLimiter creates a Limiter and schedules its periodic sweep of expired windows.
// Close must be called to cancel the scheduled tasks.
func NewLimiter(cfg Config, clk clock.Clock) *Limiter {
	if clk == nil {
		clk = clock.Real{}
	}

	limiter := &Limiter{
		cfg:       cfg,
		clock:     clk,
		log:       logging.GetLogger("svc.ratelimit"),
		entries:   make(map[string]*entry),
		blacklist: make(map[string]blacklistEntry),
	}

	limiter.mu.Lock()
	limiter.scheduleSweep()
	limiter.mu.Unlock()

	return limiter
}

// Check records an attempt by id and decides whether it may proceed.
// This is a combined check-and-increment: every call counts as an attempt.
func (l *Limiter) Check(ctx context.Context, id string) domain.RateLimitDecision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()

	if bl, ok := l.blacklist[id]; ok {
		if now.Before(bl.until) {
			return denyBlacklisted(bl.until)
		}

		l.unblacklist(id)
	}

	current, ok := l.entries[id]
	if !ok || now.After(current.resetAt) {
		l.entries[id] = &entry{
			count:        1,
			resetAt:      now.Add(l.cfg.Window),
			firstAttempt: now,
		}

		return domain.RateLimitDecision{
			Allowed:   true,
			Remaining: l.cfg.MaxAttempts - 1,
		}
	}

	current.count++

	if current.count <= l.cfg.MaxAttempts {
		return domain.RateLimitDecision{
			Allowed:   true,
			Remaining: l.cfg.MaxAttempts - current.count,
		}
	}

	if current.count >= l.cfg.BlacklistThreshold {
		until := now.Add(l.cfg.BlacklistDuration)
		l.blacklist[id] = blacklistEntry{
			until: until,
			timer: l.clock.AfterFunc(l.cfg.BlacklistDuration, func() { l.expireBlacklist(id, until) }),
		}
		delete(l.entries, id)

		l.log.WarnContext(ctx, "identifier blacklisted", logging.Group("ratelimit",
			"id", id,
			"attempts", current.count,
			"firstAttempt", current.firstAttempt,
			"until", until,
		))

		return denyBlacklisted(until)
	}

	return domain.RateLimitDecision{
		Allowed:   false,
		Remaining: 0,
		ResetAt:   current.resetAt,
		Message:   fmt.Sprintf("Too many attempts. Try again in %d minutes.", minutesUntil(now, current.resetAt)),
	}
}

// Reset forgets the attempt window of id, typically after a successful login.
// An active blacklist entry is kept.
func (l *Limiter) Reset(ctx context.Context, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[id]; ok {
		delete(l.entries, id)
		l.log.DebugContext(ctx, "attempts reset", "id", id)
	}
}

// Tracked returns the number of identifiers with an attempt window and on the blacklist.
func (l *Limiter) Tracked() (windows, blacklisted int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries), len(l.blacklist)
}

// Close cancels the periodic sweep and all pending blacklist expiries.
// Blacklist entries stay in force until their deadline passes.
func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true

	if l.sweep != nil {
		l.sweep.Stop()
	}

	for _, bl := range l.blacklist {
		bl.timer.Stop()
	}
}

func (l *Limiter) scheduleSweep() {
	if l.closed {
		return
	}

	l.sweep = l.clock.AfterFunc(l.cfg.SweepInterval, l.runSweep)
}

func (l *Limiter) runSweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()

	var evicted int

	for id, current := range l.entries {
		if now.After(current.resetAt) {
			delete(l.entries, id)

			evicted++
		}
	}

	if evicted > 0 {
		l.log.Debug("expired windows evicted", "count", evicted)
	}

	l.scheduleSweep()
}

func (l *Limiter) expireBlacklist(id string, until time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if bl, ok := l.blacklist[id]; ok && bl.until.Equal(until) {
		delete(l.blacklist, id)
		l.log.Info("blacklist expired", "id", id)
	}
}

func (l *Limiter) unblacklist(id string) {
	if bl, ok := l.blacklist[id]; ok {
		bl.timer.Stop()
		delete(l.blacklist, id)
	}
}

func denyBlacklisted(until time.Time) domain.RateLimitDecision {
	return domain.RateLimitDecision{
		Allowed:     false,
		Remaining:   0,
		ResetAt:     until,
		Message:     BlacklistMessage,
		Blacklisted: true,
	}
}

func minutesUntil(now, then time.Time) int {
	return int(math.Ceil(then.Sub(now).Minutes()))
}
