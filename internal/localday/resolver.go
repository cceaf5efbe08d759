package localday

import (
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/geoclock/timekeeper/internal/errors"
)

const (
	locationCacheTTL     = 24 * time.Hour
	locationCacheCleanup = time.Hour
)

// Resolver loads and caches IANA locations and decides which zone applies
// to a request. It never falls back to the server's local zone.
type Resolver struct {
	fallback *time.Location
	cache    *cache.Cache
}

// NewResolver returns a Resolver whose last-resort zone is defaultZone, or
// UTC when defaultZone is empty.
func NewResolver(defaultZone string) (*Resolver, error) {
	r := &Resolver{
		fallback: time.UTC,
		cache:    cache.New(locationCacheTTL, locationCacheCleanup),
	}
	if strings.TrimSpace(defaultZone) != "" {
		loc, err := r.Load(defaultZone)
		if err != nil {
			return nil, err
		}
		r.fallback = loc
	}
	return r, nil
}

// Load returns the location for an IANA name. "Local" is rejected; an
// empty name is a validation error too.
func (r *Resolver) Load(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return nil, errors.ValidationError("timezone", "an IANA timezone name is required")
	}

	if v, ok := r.cache.Get(name); ok {
		if loc, ok := v.(*time.Location); ok {
			return loc, nil
		}
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.New(err).
			Component("localday").
			Category(errors.CategoryValidation).
			Context("field", "timezone").
			Context("timezone", name).
			Build()
	}

	r.cache.SetDefault(name, loc)
	return loc, nil
}

// Resolve picks the first non-empty candidate in priority order (request,
// organization) and falls back to the configured default.
func (r *Resolver) Resolve(candidates ...string) (*time.Location, error) {
	for _, c := range candidates {
		if strings.TrimSpace(c) == "" {
			continue
		}
		return r.Load(c)
	}
	return r.fallback, nil
}

// Default returns the configured fallback location.
func (r *Resolver) Default() *time.Location {
	return r.fallback
}
