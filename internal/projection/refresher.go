// Package projection materializes the due-date read models: the 30-day
// horizon and the overdue list. Snapshots refresh only on explicit request;
// readers see the last refreshed state, and staleness between refreshes is
// part of the contract.
package projection

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"metrology/internal/domain"
	"metrology/internal/platform/metrics"
	domainerrors "metrology/pkg/domain-errors"
)

// Source supplies the per-(instrument, check type) due rows the snapshots
// are built from.
type Source interface {
	DueRows(ctx context.Context) ([]domain.CheckDueRow, error)
}

type Refresher struct {
	source  Source
	cache   Cache
	metrics *metrics.Metrics
	log     *slog.Logger
	clock   domain.Clock
}

func NewRefresher(source Source, cache Cache, m *metrics.Metrics, log *slog.Logger) *Refresher {
	return &Refresher{
		source:  source,
		cache:   cache,
		metrics: m,
		log:     log,
		clock:   time.Now,
	}
}

// WithClock overrides the refresh timestamp source. For tests.
func (r *Refresher) WithClock(clock domain.Clock) *Refresher {
	r.clock = clock
	return r
}

// Refresh reads the due rows once and rebuilds both snapshots from the same
// read, so due_30d and overdue never disagree about the underlying state.
func (r *Refresher) Refresh(ctx context.Context) error {
	now := r.clock()
	today := domain.Date(now)
	rows, err := r.source.DueRows(ctx)
	if err != nil {
		return err
	}

	var due30d, overdue []domain.CheckDueRow
	for _, row := range rows {
		row.DaysToDue = daysBetween(today, domain.Date(row.NextDueDate))
		switch {
		case row.DaysToDue < 0:
			overdue = append(overdue, row)
		case row.DaysToDue < 30:
			due30d = append(due30d, row)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.cache.Put(gctx, domain.DueSnapshot{
			Name:        domain.ProjectionDue30d,
			RefreshedAt: now.UTC(),
			Rows:        due30d,
		})
	})
	g.Go(func() error {
		return r.cache.Put(gctx, domain.DueSnapshot{
			Name:        domain.ProjectionOverdue,
			RefreshedAt: now.UTC(),
			Rows:        overdue,
		})
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if r.metrics != nil {
		r.metrics.ProjectionRefreshes.Inc()
	}
	r.log.Info("due projections refreshed", "due_30d", len(due30d), "overdue", len(overdue))
	return nil
}

// Snapshot returns the last refreshed state of a named projection.
func (r *Refresher) Snapshot(ctx context.Context, name string) (domain.DueSnapshot, error) {
	if name != domain.ProjectionDue30d && name != domain.ProjectionOverdue {
		return domain.DueSnapshot{}, domainerrors.Newf(domainerrors.CodeNotFound, "unknown projection %s", name)
	}
	return r.cache.Get(ctx, name)
}

// InstrumentRollup reads the due rows live and collapses them to the nearest
// due date per instrument.
func (r *Refresher) InstrumentRollup(ctx context.Context) ([]domain.InstrumentDueRow, error) {
	today := domain.Date(r.clock())
	rows, err := r.source.DueRows(ctx)
	if err != nil {
		return nil, err
	}

	nearest := make(map[domain.ID]domain.InstrumentDueRow)
	for _, row := range rows {
		current, ok := nearest[row.InstrumentID]
		if ok && !row.NextDueDate.Before(current.NextDueDate) {
			continue
		}
		nearest[row.InstrumentID] = domain.InstrumentDueRow{
			InstrumentID: row.InstrumentID,
			InventoryNo:  row.InventoryNo,
			SerialNo:     row.SerialNo,
			OrgUnitID:    row.OrgUnitID,
			LocationID:   row.LocationID,
			NextDueDate:  row.NextDueDate,
			DaysToDue:    daysBetween(today, domain.Date(row.NextDueDate)),
		}
	}

	out := make([]domain.InstrumentDueRow, 0, len(nearest))
	for _, row := range nearest {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextDueDate.Equal(out[j].NextDueDate) {
			return out[i].NextDueDate.Before(out[j].NextDueDate)
		}
		return out[i].InventoryNo < out[j].InventoryNo
	})
	return out, nil
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
