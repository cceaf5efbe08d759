// Package telemetry forwards selected errors to Sentry.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/geoclock/timekeeper/internal/conf"
	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/logger"
)

// DefaultFlushTimeout bounds Flush when callers pass zero.
const DefaultFlushTimeout = 2 * time.Second

// ReportedCategories are the error categories sent to Sentry. Client
// errors (validation, not-found, forbidden, conflict) stay local.
var ReportedCategories = []errors.ErrorCategory{
	errors.CategoryDatabase,
	errors.CategoryReconcile,
	errors.CategoryConfiguration,
}

// Options adjusts initialization. Tests set Transport to capture events.
type Options struct {
	Release     string
	Environment string
	Transport   sentry.Transport
	Logger      logger.Logger
}

// InitSentry initializes the SDK and installs the error reporter. It is a
// no-op returning false when reporting is disabled.
func InitSentry(settings *conf.SentrySettings, opts Options) (bool, error) {
	if settings == nil || !settings.Enabled {
		errors.SetTelemetryReporter(nil)
		return false, nil
	}
	if opts.Environment == "" {
		opts.Environment = "production"
	}
	if opts.Release == "" {
		opts.Release = "dev"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      opts.Environment,
		ServerName:       "",
		Release:          fmt.Sprintf("timekeeper@%s", opts.Release),
		Transport:        opts.Transport,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return false, errors.New(fmt.Errorf("sentry initialization failed: %w", err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true, ReportedCategories...))

	if opts.Logger != nil {
		opts.Logger.Info("sentry error reporting enabled",
			logger.String("release", opts.Release),
			logger.String("environment", opts.Environment))
	}
	return true, nil
}

// Flush waits for buffered events and detaches the reporter.
func Flush(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultFlushTimeout
	}
	errors.SetTelemetryReporter(nil)
	return sentry.Flush(timeout)
}

// applyPrivacyFilters removes host and user identifying data from an event.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	if event == nil {
		return nil
	}
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		for _, k := range []string{"device", "os", "runtime", "user_id", "actor_id"} {
			delete(event.Contexts, k)
		}
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}
