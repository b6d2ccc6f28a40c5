package audit

import (
	"context"
	"encoding/json"
	"time"

	"metrology/internal/domain"
	"metrology/internal/platform/metrics"
	"metrology/internal/platform/middleware"
	domainerrors "metrology/pkg/domain-errors"
)

// Recorder appends audit entries for row mutations. Services call it inside
// their write transaction so an entry never exists without its mutation and
// a mutation never commits without its entry.
type Recorder struct {
	store   Store
	metrics *metrics.Metrics
	clock   domain.Clock
}

func NewRecorder(store Store, m *metrics.Metrics) *Recorder {
	return &Recorder{store: store, metrics: m, clock: time.Now}
}

// WithClock overrides the entry timestamp source. For tests.
func (r *Recorder) WithClock(clock domain.Clock) *Recorder {
	r.clock = clock
	return r
}

// Record appends one entry. Row images follow the action: inserts pass a
// nil oldRow, deletes a nil newRow, updates both.
func (r *Recorder) Record(ctx context.Context, action, table string, rowID domain.ID, oldRow, newRow any) error {
	entry := domain.AuditEntry{
		ID:        domain.NewID(),
		At:        r.clock().UTC(),
		Principal: middleware.ActorFrom(ctx),
		Action:    action,
		TableName: table,
		RowID:     rowID,
	}
	var err error
	if entry.OldRow, err = marshalImage(oldRow); err != nil {
		return err
	}
	if entry.NewRow, err = marshalImage(newRow); err != nil {
		return err
	}
	if err := r.store.Append(ctx, entry); err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.AuditEntries.Inc()
	}
	return nil
}

func marshalImage(row any) (json.RawMessage, error) {
	if row == nil {
		return nil, nil
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "encode audit row image")
	}
	return raw, nil
}
