package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBudgetStore struct {
	calls []time.Time
	n     int64
	err   error
}

func (f *fakeBudgetStore) DeactivateExpired(_ context.Context, today time.Time) (int64, error) {
	f.calls = append(f.calls, today)
	return f.n, f.err
}

func TestScheduler_SweepBudgets(t *testing.T) {
	now := time.Date(2024, 10, 16, 0, 0, 5, 0, time.Local)
	store := &fakeBudgetStore{n: 2}
	s := NewScheduler(store)
	s.now = fixedClock(now)

	assert.Equal(t, int64(2), s.SweepBudgets(context.Background()))
	require.Len(t, store.calls, 1)
	assert.True(t, store.calls[0].Equal(now))

	store.err = errors.New("db down")
	assert.Equal(t, int64(0), s.SweepBudgets(context.Background()))
}

func TestScheduler_Register(t *testing.T) {
	s := NewScheduler(&fakeBudgetStore{})
	require.NoError(t, s.Register(""))
	require.NoError(t, s.Register("@every 1h"))
	assert.Len(t, s.cron.Entries(), 2)
	assert.Error(t, s.Register("not a spec"))

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
