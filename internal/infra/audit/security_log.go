// Package audit writes security events to the operational log stream.
package audit

import (
	"context"
	"log/slog"
	"sort"

	context_ "github.com/mkrupp/promptbank/internal/infra/context"
	"github.com/mkrupp/promptbank/internal/infra/logging"
	"github.com/mkrupp/promptbank/internal/util/clock"
)

// EventKind names a security event. Kinds are dotted, subsystem first.
type EventKind string

const (
	EventLoginSuccess     EventKind = "login.success"
	EventLoginFailed      EventKind = "login.failed"
	EventLoginRateLimited EventKind = "login.rate_limited"
	EventLoginBlacklisted EventKind = "login.blacklisted"
	EventUnauthorized     EventKind = "auth.unauthorized"
	EventLogout           EventKind = "auth.logout"
	EventUploadRejected   EventKind = "upload.rejected"
	EventUploadSuspicious EventKind = "upload.suspicious"
	EventConfigWarning    EventKind = "config.warning"
)

// Alert reports whether events of this kind warrant operator attention.
// Alerts are only marked in the record; delivery to an alerting system is up to log shipping.
func (k EventKind) Alert() bool {
	switch k {
	case EventLoginBlacklisted, EventUploadSuspicious:
		return true
	default:
		return false
	}
}

// Details carries event specific context such as the client identifier or a rejection reason.
type Details map[string]any

// SecurityLog is a write-only sink for security events.
// A nil *SecurityLog discards everything.
type SecurityLog struct {
	log   logging.Logger
	clock clock.Clock
}

// NewSecurityLog creates a SecurityLog writing through log and stamping events with clk.
func NewSecurityLog(log logging.Logger, clk clock.Clock) *SecurityLog {
	if clk == nil {
		clk = clock.Real{}
	}

	return &SecurityLog{log: log, clock: clk}
}

// Log emits one record {timestamp, event, ...details}. It never fails.
// Alert-worthy kinds are written at WARN with alert=true, everything else at INFO.
func (s *SecurityLog) Log(ctx context.Context, kind EventKind, details Details) {
	if s == nil || s.log == nil {
		return
	}

	attrs := make([]slog.Attr, 0, len(details)+4)
	attrs = append(attrs,
		slog.String("event", string(kind)),
		slog.Time("timestamp", s.clock.Now().UTC()),
	)

	if _, ok := details["client"]; !ok {
		attrs = append(attrs, slog.String("client", context_.ClientIDFromContext(ctx)))
	}

	keys := make([]string, 0, len(details))
	for key := range details {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		attrs = append(attrs, slog.Any(key, details[key]))
	}

	level := logging.LevelInfo
	if kind.Alert() {
		level = logging.LevelWarn

		attrs = append(attrs, slog.Bool("alert", true))
	}

	s.log.LogAttrs(ctx, level, "security event", attrs...)
}
