package service

import (
	"context"
	"testing"
	"time"

	"budgettracker/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyQuota_Boundary(t *testing.T) {
	now := time.Date(2024, 7, 15, 18, 0, 0, 0, time.Local)
	ctx := context.Background()

	tests := []struct {
		prior   int
		allowed bool
	}{
		{0, true},
		{1, true},
		{2, true},
		{3, false},
		{4, false},
	}
	for _, tc := range tests {
		store := &fakeSummaryStore{}
		store.seed(1, now.Add(-time.Hour), tc.prior)
		// 昨天的记录不占用今天的配额
		store.seed(1, now.AddDate(0, 0, -1), 5)

		q := NewDailyQuota(store, 3)
		used, err := q.Check(ctx, 1, now)
		assert.Equal(t, int64(tc.prior), used)
		if tc.allowed {
			assert.NoError(t, err, "prior=%d", tc.prior)
		} else {
			require.Error(t, err, "prior=%d", tc.prior)
			assert.True(t, IsKind(err, KindRateLimited))
			assert.Contains(t, err.Error(), "每天最多 3 次")
		}
	}
}

func TestDailyQuota_StatusAndCommit(t *testing.T) {
	now := time.Date(2024, 7, 15, 8, 0, 0, 0, time.Local)
	store := &fakeSummaryStore{}
	store.seed(1, now, 2)
	q := NewDailyQuota(store, 0)
	assert.Equal(t, 3, q.Limit())

	st, err := q.Status(context.Background(), 1, now)
	require.NoError(t, err)
	assert.Equal(t, &QuotaStatus{Used: 2, Limit: 3, Remaining: 1}, st)

	require.NoError(t, q.Commit(context.Background(), &models.MonthlySummary{UserID: 1, CreatedAt: now}, now))

	// 第 4 次在写入阶段被拒绝
	err = q.Commit(context.Background(), &models.MonthlySummary{UserID: 1, CreatedAt: now}, now)
	assert.True(t, IsKind(err, KindRateLimited))
	assert.Len(t, store.rows, 3)
}
