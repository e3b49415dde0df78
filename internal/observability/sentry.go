// Package observability sets up logging and error reporting.
package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry enables error reporting. An empty dsn leaves reporting off;
// sentry calls are then no-ops.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

// FlushSentry waits briefly for buffered events to be delivered.
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
