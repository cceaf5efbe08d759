package repository

import (
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/geoclock/timekeeper/internal/errors"
)

// Sentinel errors for repository operations.
var (
	// ErrEntryNotFound indicates the requested entry does not exist.
	ErrEntryNotFound = errors.NewStd("entry not found")

	// ErrWorkDayNotFound indicates no work day exists for the key.
	ErrWorkDayNotFound = errors.NewStd("work day not found")

	// ErrCorrectionNotFound indicates no correction matches the lookup.
	ErrCorrectionNotFound = errors.NewStd("correction not found")

	// ErrOrganizationNotFound indicates the requested organization does not exist.
	ErrOrganizationNotFound = errors.NewStd("organization not found")

	// ErrMemberNotFound indicates the user is not a member of the organization.
	ErrMemberNotFound = errors.NewStd("member not found")

	// ErrLocationNotFound indicates the location does not exist in the organization.
	ErrLocationNotFound = errors.NewStd("location not found")

	// ErrDuplicateKey indicates a unique constraint violation.
	ErrDuplicateKey = errors.NewStd("duplicate key")
)

// isDuplicateKey reports whether err is a unique constraint violation.
// TranslateError covers both drivers; the string checks catch statements
// run on sessions created without it.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry")
}

// MySQL server error numbers for lock contention.
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// isLockConflict reports whether MySQL aborted the statement or the
// transaction because of lock contention.
func isLockConflict(err error) bool {
	var myErr *mysqldriver.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	return myErr.Number == mysqlDeadlock || myErr.Number == mysqlLockWaitTimeout
}

// IsRetryable reports whether a failed transaction can be rerun from the
// start: it lost a unique-key insert race or a lock conflict.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDuplicateKey) || isDuplicateKey(err) || isLockConflict(err)
}

// IsNotFound reports whether err is one of the repository not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrWorkDayNotFound) ||
		errors.Is(err, ErrCorrectionNotFound) ||
		errors.Is(err, ErrOrganizationNotFound) ||
		errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrLocationNotFound)
}
