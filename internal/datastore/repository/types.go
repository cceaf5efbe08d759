package repository

// idBatchSize limits IN (...) lists to stay under SQLite's 999 parameter limit.
const idBatchSize = 500

// Default and maximum page sizes for list queries.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// EntryFilter narrows entry list queries. Zero values are ignored; the
// millisecond bounds are half-open [FromMs, ToMs).
type EntryFilter struct {
	OrgID      string
	UserID     string
	LocationID string
	FromMs     int64
	ToMs       int64
	Limit      int
	Offset     int
}

// WorkDayFilter narrows work day list queries. From and To are inclusive
// YYYY-MM-DD dates.
type WorkDayFilter struct {
	OrgID      string
	UserID     string
	LocationID string
	From       string
	To         string
	Limit      int
	Offset     int
}

// AuditFilter narrows audit log queries.
type AuditFilter struct {
	OrgID      string
	EntityType string
	EntityID   string
	Limit      int
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
