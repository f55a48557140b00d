// errors/audit_errors.go
package errors

import "errors"

var (
	ErrAuditUnavailable = errors.New("audit repository unavailable")
	ErrAuditIndexing    = errors.New("audit log indexing failed")
)
