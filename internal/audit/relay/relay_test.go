package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"metrology/internal/audit"
	"metrology/internal/domain"
	"metrology/internal/store/memdb"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) Produce(_ context.Context, records []*kgo.Record) error {
	if p.err != nil {
		return p.err
	}
	p.records = append(p.records, records...)
	return nil
}

func seedEntries(t *testing.T, store *audit.MemoryStore, n int) []domain.AuditEntry {
	t.Helper()
	entries := make([]domain.AuditEntry, 0, n)
	for i := 0; i < n; i++ {
		entry := domain.AuditEntry{
			ID:        domain.NewID(),
			At:        time.Date(2025, time.March, 10, 12, 0, i, 0, time.UTC),
			Principal: "tester",
			Action:    domain.AuditInsert,
			TableName: domain.TableInstrument,
			RowID:     domain.NewID(),
			NewRow:    json.RawMessage(`{"inventory_no":"INV-001"}`),
		}
		require.NoError(t, store.Append(context.Background(), entry))
		entries = append(entries, entry)
	}
	return entries
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDrainOnceShipsAndMarks(t *testing.T) {
	ctx := context.Background()
	store := audit.NewMemoryStore(memdb.New())
	seeded := seedEntries(t, store, 3)

	producer := &fakeProducer{}
	shipped := time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC)
	r := New(store, producer, "metrology.audit", discard(), nil).
		WithClock(func() time.Time { return shipped })

	n, err := r.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, producer.records, 3)

	rec := producer.records[0]
	assert.Equal(t, "metrology.audit", rec.Topic)
	assert.Equal(t, seeded[0].TableName+"/"+seeded[0].RowID.String(), string(rec.Key))
	var decoded domain.AuditEntry
	require.NoError(t, json.Unmarshal(rec.Value, &decoded))
	assert.Equal(t, seeded[0].ID, decoded.ID)

	remaining, err := store.Unshipped(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	n, err = r.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "a drained outbox ships nothing")
}

func TestDrainOnceLeavesEntriesOnProduceFailure(t *testing.T) {
	ctx := context.Background()
	store := audit.NewMemoryStore(memdb.New())
	seedEntries(t, store, 2)

	producer := &fakeProducer{err: errors.New("broker unreachable")}
	r := New(store, producer, "metrology.audit", discard(), nil)

	_, err := r.DrainOnce(ctx)
	require.Error(t, err)

	remaining, err := store.Unshipped(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 2, "failed delivery must keep the outbox intact for the next tick")
}

func TestDrainOnceRespectsBatchLimit(t *testing.T) {
	ctx := context.Background()
	store := audit.NewMemoryStore(memdb.New())
	seedEntries(t, store, 5)

	producer := &fakeProducer{}
	r := New(store, producer, "metrology.audit", discard(), nil)
	r.batch = 2

	n, err := r.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	remaining, err := store.Unshipped(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 3)
}
