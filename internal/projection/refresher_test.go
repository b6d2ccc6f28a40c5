package projection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metrology/internal/domain"
	domainerrors "metrology/pkg/domain-errors"
)

type staticSource struct {
	rows []domain.CheckDueRow
	err  error
}

func (s *staticSource) DueRows(context.Context) ([]domain.CheckDueRow, error) {
	return s.rows, s.err
}

func dueRow(inventoryNo string, due time.Time) domain.CheckDueRow {
	return domain.CheckDueRow{
		InstrumentID: domain.NewID(),
		InventoryNo:  inventoryNo,
		CheckTypeID:  domain.NewID(),
		NextDueDate:  due,
	}
}

func newRefresher(source Source, cache Cache, now time.Time) *Refresher {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRefresher(source, cache, nil, log).WithClock(func() time.Time { return now })
}

func TestRefreshBucketsRows(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, time.March, 10, 15, 30, 0, 0, time.UTC)
	source := &staticSource{rows: []domain.CheckDueRow{
		dueRow("INV-OVERDUE", time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC)),
		dueRow("INV-TODAY", time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)),
		dueRow("INV-SOON", time.Date(2025, time.April, 8, 0, 0, 0, 0, time.UTC)),
		dueRow("INV-EDGE", time.Date(2025, time.April, 9, 0, 0, 0, 0, time.UTC)),
		dueRow("INV-FAR", time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)),
	}}
	cache := NewMemoryCache()
	r := newRefresher(source, cache, now)

	require.NoError(t, r.Refresh(ctx))

	overdue, err := r.Snapshot(ctx, domain.ProjectionOverdue)
	require.NoError(t, err)
	require.Len(t, overdue.Rows, 1)
	assert.Equal(t, "INV-OVERDUE", overdue.Rows[0].InventoryNo)
	assert.Equal(t, -1, overdue.Rows[0].DaysToDue)
	assert.Equal(t, now.UTC(), overdue.RefreshedAt)

	due30d, err := r.Snapshot(ctx, domain.ProjectionDue30d)
	require.NoError(t, err)
	require.Len(t, due30d.Rows, 2, "due today and due in 29 days are in the window, due in 30 is not")
	assert.Equal(t, "INV-TODAY", due30d.Rows[0].InventoryNo)
	assert.Equal(t, 0, due30d.Rows[0].DaysToDue)
	assert.Equal(t, "INV-SOON", due30d.Rows[1].InventoryNo)
	assert.Equal(t, 29, due30d.Rows[1].DaysToDue)
}

func TestSnapshotBeforeRefresh(t *testing.T) {
	ctx := context.Background()
	r := newRefresher(&staticSource{}, NewMemoryCache(), time.Now())

	_, err := r.Snapshot(ctx, domain.ProjectionDue30d)
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeNotFound))
}

func TestSnapshotUnknownName(t *testing.T) {
	ctx := context.Background()
	r := newRefresher(&staticSource{}, NewMemoryCache(), time.Now())

	_, err := r.Snapshot(ctx, "due_90d")
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeNotFound))
}

func TestRefreshPropagatesSourceError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	r := newRefresher(&staticSource{err: boom}, NewMemoryCache(), time.Now())

	require.ErrorIs(t, r.Refresh(ctx), boom)
}

func TestRefreshReplacesPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	source := &staticSource{rows: []domain.CheckDueRow{
		dueRow("INV-OVERDUE", time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)),
	}}
	cache := NewMemoryCache()
	r := newRefresher(source, cache, now)

	require.NoError(t, r.Refresh(ctx))
	source.rows = nil
	require.NoError(t, r.Refresh(ctx))

	overdue, err := r.Snapshot(ctx, domain.ProjectionOverdue)
	require.NoError(t, err)
	assert.Empty(t, overdue.Rows, "readers see the latest refreshed state")
}

func TestInstrumentRollupPicksNearestDue(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	instID := domain.NewID()
	verification := dueRow("INV-001", time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC))
	verification.InstrumentID = instID
	calibration := dueRow("INV-001", time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC))
	calibration.InstrumentID = instID
	other := dueRow("INV-002", time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC))

	source := &staticSource{rows: []domain.CheckDueRow{verification, calibration, other}}
	r := newRefresher(source, NewMemoryCache(), now)

	rollup, err := r.InstrumentRollup(ctx)
	require.NoError(t, err)
	require.Len(t, rollup, 2)

	assert.Equal(t, "INV-002", rollup[0].InventoryNo, "sorted by nearest due date first")
	assert.Equal(t, 10, rollup[0].DaysToDue)

	assert.Equal(t, instID, rollup[1].InstrumentID)
	assert.Equal(t, calibration.NextDueDate, rollup[1].NextDueDate, "rollup keeps the earliest date per instrument")
}
