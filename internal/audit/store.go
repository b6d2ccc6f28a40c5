// Package audit is the tamper-evident trail: every mutation of a tracked
// table appends one immutable entry with full before/after row images, in
// the same transaction as the mutation itself.
package audit

import (
	"context"
	"time"

	"metrology/internal/domain"
)

// Filter narrows audit reads. Zero fields match everything.
type Filter struct {
	TableName string
	RowID     *domain.ID
	Limit     int
	Offset    int
}

// Store is the audit persistence port. Entries are append-only; the single
// exception is MarkShipped, used by the relay to record topic delivery.
type Store interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
	List(ctx context.Context, filter Filter) ([]domain.AuditEntry, error)
	Unshipped(ctx context.Context, limit int) ([]domain.AuditEntry, error)
	MarkShipped(ctx context.Context, ids []domain.ID, at time.Time) error
}
