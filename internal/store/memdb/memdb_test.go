package memdb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metrology/internal/domain"
)

func TestRunInTxCommits(t *testing.T) {
	db := New()
	unit := domain.OrgUnit{ID: domain.NewID(), Code: "TSEKH-1", Name: "Assembly shop"}

	err := db.RunInTx(context.Background(), func(ctx context.Context) error {
		return db.Update(ctx, func(s *State) error {
			s.OrgUnits[unit.ID] = unit
			return nil
		})
	})
	require.NoError(t, err)

	err = db.View(context.Background(), func(s *State) error {
		_, ok := s.OrgUnits[unit.ID]
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestRunInTxRestoresStateOnError(t *testing.T) {
	db := New()
	kept := domain.OrgUnit{ID: domain.NewID(), Code: "TSEKH-1", Name: "Assembly shop"}
	require.NoError(t, db.Update(context.Background(), func(s *State) error {
		s.OrgUnits[kept.ID] = kept
		return nil
	}))

	boom := errors.New("boom")
	err := db.RunInTx(context.Background(), func(ctx context.Context) error {
		if err := db.Update(ctx, func(s *State) error {
			s.OrgUnits[domain.NewID()] = domain.OrgUnit{Code: "TSEKH-2"}
			delete(s.OrgUnits, kept.ID)
			return nil
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = db.View(context.Background(), func(s *State) error {
		assert.Len(t, s.OrgUnits, 1, "rolled back writes must not be visible")
		_, ok := s.OrgUnits[kept.ID]
		assert.True(t, ok, "pre-transaction rows must survive the rollback")
		return nil
	})
	require.NoError(t, err)
}

func TestRunInTxRespectsCanceledContext(t *testing.T) {
	db := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := db.RunInTx(ctx, func(ctx context.Context) error {
		t.Fatal("fn must not run on a dead context")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSeededLookups(t *testing.T) {
	db := New()
	err := db.View(context.Background(), func(s *State) error {
		row, ok := s.ResultStatus(domain.ResultPassed)
		require.True(t, ok)
		assert.True(t, row.IsSuccess)

		row, ok = s.ResultStatus(domain.ResultFailed)
		require.True(t, ok)
		assert.False(t, row.IsSuccess)

		for _, code := range []string{
			domain.StatusActive, domain.StatusInRepair,
			domain.StatusDecommissioned, domain.StatusReplaced,
		} {
			_, ok := s.InstrumentStatus(code)
			assert.True(t, ok, code)
		}
		return nil
	})
	require.NoError(t, err)
}
