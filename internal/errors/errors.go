// Package errors provides categorized errors with optional telemetry
// reporting. It also passes through the standard library helpers so callers
// import a single errors package.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"maps"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

// ErrorCategory groups errors for HTTP mapping, metrics and telemetry.
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryForbidden     ErrorCategory = "forbidden"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryDatabase      ErrorCategory = "database"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryReconcile     ErrorCategory = "reconcile"
	CategoryAudit         ErrorCategory = "audit"
	CategoryMQTTPublish   ErrorCategory = "mqtt-publish"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryGeneric       ErrorCategory = "generic"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryCancellation  ErrorCategory = "cancellation"
)

// ComponentUnknown is used when the component cannot be determined.
const ComponentUnknown = "unknown"

const selfPackage = "github.com/geoclock/timekeeper/internal/errors"

// hasActiveReporting is set while an enabled reporter is installed. Build
// only walks the stack for the component when it is.
var hasActiveReporting atomic.Bool

// EnhancedError wraps an error with a category, the component that raised
// it and structured context. It is immutable after Build.
type EnhancedError struct {
	Err       error
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time

	component string
	reported  atomic.Bool
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches another EnhancedError by category, anything else through the
// wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return Is(ee.Err, target)
}

// GetComponent returns the component name.
func (ee *EnhancedError) GetComponent() string {
	return ee.component
}

// GetContext returns a copy of the error context
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	return maps.Clone(ee.Context)
}

// GetMessage returns the error message
func (ee *EnhancedError) GetMessage() string {
	if ee.Err != nil {
		return ee.Err.Error()
	}
	return ""
}

// MarkReported marks this error as reported to telemetry
func (ee *EnhancedError) MarkReported() {
	ee.reported.Store(true)
}

// IsReported returns whether this error has been reported
func (ee *EnhancedError) IsReported() bool {
	return ee.reported.Load()
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New starts an EnhancedError wrapping err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts an EnhancedError from a formatted message.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name. Unset components are derived from
// the caller's package when telemetry is active.
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the category. Unset categories are inherited from a wrapped
// EnhancedError or derived from the cause.
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context adds context data to the error
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Build creates the EnhancedError and hands it to the telemetry reporter,
// if one is active.
func (eb *ErrorBuilder) Build() *EnhancedError {
	reporting := hasActiveReporting.Load()

	component := eb.component
	if component == "" && reporting {
		component = callerComponent()
	}
	if component == "" {
		component = ComponentUnknown
	}
	category := eb.category
	if category == "" {
		category = detectCategory(eb.err, component)
	}

	ee := &EnhancedError{
		Err:       eb.err,
		Category:  category,
		Context:   eb.context,
		Timestamp: time.Now(),
		component: component,
	}
	if reporting {
		reportToTelemetry(ee)
	}
	return ee
}

// componentPackages maps package path fragments to component names, most
// specific first.
var componentPackages = []struct{ pattern, component string }{
	{"internal/datastore", "datastore"},
	{"internal/localday", "localday"},
	{"internal/pairing", "pairing"},
	{"internal/workday", "workday"},
	{"internal/ledger", "ledger"},
	{"internal/punch", "punch"},
	{"internal/audit", "audit"},
	{"internal/mqtt", "mqtt"},
	{"internal/export", "export"},
	{"internal/conf", "configuration"},
	{"internal/api", "api"},
	{"/cmd/", "cli"},
}

// callerComponent walks the stack to the first frame outside this package
// that belongs to a known component.
func callerComponent() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.Function, selfPackage) {
			for _, p := range componentPackages {
				if strings.Contains(frame.Function, p.pattern) {
					return p.component
				}
			}
		}
		if !more {
			return ""
		}
	}
}

// detectCategory derives a category from the wrapped error first and the
// component second.
func detectCategory(err error, component string) ErrorCategory {
	if err == nil {
		return CategoryGeneric
	}

	var inner *EnhancedError
	if stderrors.As(err, &inner) && inner.Category != "" {
		return inner.Category
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case stderrors.Is(err, context.Canceled):
		return CategoryCancellation
	}

	switch component {
	case "datastore":
		return CategoryDatabase
	case "configuration":
		return CategoryConfiguration
	case "audit":
		return CategoryAudit
	}
	return CategoryGeneric
}

// ValidationError creates a validation error naming the offending field.
func ValidationError(field, problem string) *EnhancedError {
	return Newf("%s: %s", field, problem).
		Category(CategoryValidation).
		Context("field", field).
		Build()
}

// NotFoundError creates a not-found error for the given entity.
func NotFoundError(entity, id string) *EnhancedError {
	return Newf("%s %s not found", entity, id).
		Category(CategoryNotFound).
		Context("entity", entity).
		Context("id", id).
		Build()
}

// ForbiddenError creates an authorization failure.
func ForbiddenError(message string) *EnhancedError {
	return New(NewStd(message)).
		Category(CategoryForbidden).
		Build()
}

// NewStd creates a plain error (errors.New from the standard library).
func NewStd(text string) error {
	return stderrors.New(text)
}

// Is is the standard library errors.Is.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is the standard library errors.As.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Join is the standard library errors.Join.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// CategoryOf returns the category of the outermost EnhancedError in err's
// tree, or CategoryGeneric.
func CategoryOf(err error) ErrorCategory {
	var enhancedErr *EnhancedError
	if As(err, &enhancedErr) {
		return enhancedErr.Category
	}
	return CategoryGeneric
}

// IsCategory checks if an error is an EnhancedError with the specified category.
func IsCategory(err error, category ErrorCategory) bool {
	var enhancedErr *EnhancedError
	return As(err, &enhancedErr) && enhancedErr.Category == category
}

// IsNotFound checks if an error is an EnhancedError with CategoryNotFound.
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}

// IsValidation checks if an error is an EnhancedError with CategoryValidation.
func IsValidation(err error) bool {
	return IsCategory(err, CategoryValidation)
}

// IsForbidden checks if an error is an EnhancedError with CategoryForbidden.
func IsForbidden(err error) bool {
	return IsCategory(err, CategoryForbidden)
}

// IsConflict checks if an error is an EnhancedError with CategoryConflict.
func IsConflict(err error) bool {
	return IsCategory(err, CategoryConflict)
}
