// Package repository provides the storage interfaces and their GORM
// implementations for entries, work days, corrections, the organization
// directory and the audit log.
//
// # Error Handling
//
// Repositories return sentinel errors (ErrEntryNotFound, ErrDuplicateKey,
// ...) instead of leaking GORM errors. Callers translate them into
// categorized errors at the service boundary.
//
// # Transactions
//
// Repositories.Transaction runs a function against a set of repositories
// bound to one database transaction. Nested calls create savepoints.
//
// # Thread Safety
//
// All repository methods are safe for concurrent use.
package repository
