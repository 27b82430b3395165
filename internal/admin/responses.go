package admin

import audit "unionvote/pkg/platform/audit"

// AuditTrailResponse wraps a page of audit entries for HTTP response.
type AuditTrailResponse struct {
	Entries []audit.Entry `json:"entries"`
	Count   int           `json:"count"`
}
