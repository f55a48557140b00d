// audit/model.go
package audit

import (
	"time"

	"github.com/dev-mohitbeniwal/echo/accessproxy/model"
)

type AuditLog struct {
	Timestamp     time.Time `json:"timestamp"`
	Actor         string    `json:"actor"`
	Role          string    `json:"role"`
	Request       string    `json:"request"`
	Outcome       string    `json:"outcome"`
	AccessGranted bool      `json:"access_granted"`
}

// FromOutcome builds the audit record for a proxied request.
func FromOutcome(o model.Outcome, at time.Time) AuditLog {
	return AuditLog{
		Timestamp:     at.UTC(),
		Actor:         o.Actor.Name,
		Role:          o.Actor.Role.String(),
		Request:       o.Request,
		Outcome:       o.Kind.String(),
		AccessGranted: !o.Denied(),
	}
}
