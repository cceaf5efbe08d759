// Package entities contains the GORM models of the timekeeper schema.
//
// Instants are stored as Unix milliseconds (int64, UTC) so range predicates
// behave identically across SQLite and MySQL. Primary keys are UUID strings
// assigned in BeforeCreate when the caller leaves them empty.
package entities
