package model

import (
	"time"

	echo_errors "github.com/dev-mohitbeniwal/echo/accessproxy/errors"
)

// OutcomeKind tells how the proxy answered a request.
type OutcomeKind int

const (
	OutcomeDenied OutcomeKind = iota
	OutcomeHit
	OutcomeFetched
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeDenied:
		return "denied"
	case OutcomeHit:
		return "hit"
	case OutcomeFetched:
		return "fetched"
	default:
		return "unknown"
	}
}

// Outcome is the result of a single proxied request. Response is empty when denied.
type Outcome struct {
	Kind     OutcomeKind `json:"kind"`
	Request  string      `json:"request"`
	Response string      `json:"response,omitempty"`
	Actor    Actor       `json:"actor"`
}

func (o Outcome) Denied() bool {
	return o.Kind == OutcomeDenied
}

// Err returns an *errors.AccessDeniedError for denied outcomes and nil otherwise.
func (o Outcome) Err() error {
	if o.Kind != OutcomeDenied {
		return nil
	}
	return &echo_errors.AccessDeniedError{Actor: o.Actor.Name, Role: o.Actor.Role.String()}
}

// CacheEntry is a response remembered by the proxy.
type CacheEntry struct {
	Response string
	CachedAt time.Time
}

// Age is measured against now; a negative age (clock step back) counts as zero.
func (e CacheEntry) Age(now time.Time) time.Duration {
	age := now.Sub(e.CachedAt)
	if age < 0 {
		return 0
	}
	return age
}

// IsStale reports age >= ttl. An entry exactly ttl old is stale.
func (e CacheEntry) IsStale(now time.Time, ttl time.Duration) bool {
	return e.Age(now) >= ttl
}
