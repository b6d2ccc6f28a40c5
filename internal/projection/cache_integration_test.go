//go:build integration

package projection_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metrology/internal/domain"
	"metrology/internal/platform/redis"
	"metrology/internal/projection"
	domainerrors "metrology/pkg/domain-errors"
	"metrology/pkg/testutil/containers"
)

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	cache := projection.NewRedisCache(&redis.Client{Client: rc.Client})

	_, err := cache.Get(ctx, domain.ProjectionDue30d)
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeNotFound))

	serial := "SN-42"
	snapshot := domain.DueSnapshot{
		Name:        domain.ProjectionDue30d,
		RefreshedAt: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC),
		Rows: []domain.CheckDueRow{{
			InstrumentID: domain.NewID(),
			InventoryNo:  "INV-001",
			SerialNo:     &serial,
			CheckTypeID:  domain.NewID(),
			NextDueDate:  time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
			DaysToDue:    22,
		}},
	}
	require.NoError(t, cache.Put(ctx, snapshot))

	got, err := cache.Get(ctx, domain.ProjectionDue30d)
	require.NoError(t, err)
	assert.Equal(t, snapshot, got)

	require.NoError(t, rc.FlushAll(ctx))
	_, err = cache.Get(ctx, domain.ProjectionDue30d)
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeNotFound))
}
