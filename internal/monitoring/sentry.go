// Package monitoring reports errors to Sentry. With an empty DSN every call
// is a no-op.
package monitoring

import (
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

// Options configures the Sentry client
type Options struct {
	DSN         string
	Environment string
	Release     string
}

// Init sets up the global Sentry client. Failures are logged, never fatal.
func Init(opts Options) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         opts.DSN,
		Environment: opts.Environment,
		Release:     opts.Release,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			event.User = sentry.User{}
			return event
		},
	})
	if err != nil {
		slog.Warn("sentry init failed", "error", err)
		return
	}
	if opts.DSN == "" {
		slog.Debug("SENTRY_DSN empty, error tracking disabled")
	}
}

// Flush waits for buffered events
func Flush() { sentry.Flush(2 * time.Second) }

// Reporter sends errors to Sentry with tags
type Reporter struct {
	hub *sentry.Hub
}

// NewReporter reports through the current global hub
func NewReporter() *Reporter {
	return &Reporter{hub: sentry.CurrentHub()}
}

// NewReporterWithHub reports through hub
func NewReporterWithHub(hub *sentry.Hub) *Reporter {
	return &Reporter{hub: hub}
}

// Capture reports err with tags attached
func (r *Reporter) Capture(err error, tags map[string]string) {
	if r == nil || err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		r.hub.CaptureException(err)
	})
}

// Warn reports a message at warning level
func (r *Reporter) Warn(msg string, tags map[string]string) {
	if r == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		r.hub.CaptureMessage(msg)
	})
}
