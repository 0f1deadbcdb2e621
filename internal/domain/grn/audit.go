package grn

import (
	"context"

	"grnflow/internal/core/id"
)

// Audit action names recorded by the workflow.
const (
	AuditCreate    = "create"
	AuditUpdate    = "update"
	AuditDelete    = "delete"
	AuditSubmitQC  = "submit_qc"
	AuditQCApprove = "qc_approve"
	AuditQCReject  = "qc_reject"
	AuditReset     = "reset"
	AuditPost      = "post"
	AuditRetry     = "retry_posting"
)

// AuditRecorder records workflow actions for the audit trail.
// Recording failures never fail the business operation.
type AuditRecorder interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error
}
