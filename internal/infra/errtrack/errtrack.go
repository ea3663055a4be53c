// Package errtrack forwards unexpected errors to Sentry when a DSN is configured.
package errtrack

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Options configures the Sentry client.
type Options struct {
	DSN         string
	Environment string
	Release     string
}

var enabled bool

// Init initialises Sentry. An empty DSN leaves error tracking disabled.
func Init(opts Options) error {
	if opts.DSN == "" {
		enabled = false
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              opts.DSN,
		Environment:      opts.Environment,
		Release:          opts.Release,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if event.Tags == nil {
				event.Tags = make(map[string]string)
			}
			event.Tags["service"] = "estirar"
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}
	enabled = true
	return nil
}

// IsEnabled returns true if errors are forwarded to Sentry.
func IsEnabled() bool {
	return enabled
}

// CaptureError captures an error with additional context such as senior_id and operation.
func CaptureError(err error, context map[string]interface{}) {
	if !IsEnabled() || err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		for key, value := range context {
			scope.SetTag(key, fmt.Sprintf("%v", value))
		}
		scope.SetLevel(sentry.LevelError)
		sentry.CaptureException(err)
	})
}

// Recover reports a panic of a background job without re-panicking.
func Recover(job string) {
	if r := recover(); r != nil {
		CaptureError(fmt.Errorf("panic recovered in %s: %v", job, r), map[string]interface{}{"job": job})
	}
}

// Close flushes pending events before shutdown.
func Close() {
	if !IsEnabled() {
		return
	}
	sentry.Flush(2 * time.Second)
}
