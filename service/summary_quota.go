package service

import (
	"context"
	"fmt"
	"time"

	"budgettracker/models"
)

// QuotaStatus 当日配额使用情况
type QuotaStatus struct {
	Used      int64 `json:"used"`
	Limit     int   `json:"limit"`
	Remaining int64 `json:"remaining"`
}

// DailyQuota 每个用户每个自然日（服务器本地时间）的生成次数限制
type DailyQuota struct {
	store SummaryStore
	limit int
}

// NewDailyQuota 创建每日配额，limit <= 0 时取 3
func NewDailyQuota(store SummaryStore, limit int) *DailyQuota {
	if limit <= 0 {
		limit = 3
	}
	return &DailyQuota{store: store, limit: limit}
}

// Limit 每日上限
func (q *DailyQuota) Limit() int {
	return q.limit
}

func (q *DailyQuota) exceeded() error {
	return RateLimitError(fmt.Sprintf("今日生成次数已达上限（每天最多 %d 次），请明天再试或删除已有的总结", q.limit), nil)
}

// Status 查询当日已用次数
func (q *DailyQuota) Status(ctx context.Context, userID uint, now time.Time) (*QuotaStatus, error) {
	used, err := q.store.CountCreatedBetween(ctx, userID, models.DateOf(now), models.EndOfDay(now))
	if err != nil {
		return nil, err
	}
	remaining := int64(q.limit) - used
	if remaining < 0 {
		remaining = 0
	}
	return &QuotaStatus{Used: used, Limit: q.limit, Remaining: remaining}, nil
}

// Check 已用次数 >= limit 时拒绝，返回已用次数
func (q *DailyQuota) Check(ctx context.Context, userID uint, now time.Time) (int64, error) {
	st, err := q.Status(ctx, userID, now)
	if err != nil {
		return 0, err
	}
	if st.Used >= int64(q.limit) {
		return st.Used, q.exceeded()
	}
	return st.Used, nil
}

// Commit 写入总结，写入前在事务内重新计数
func (q *DailyQuota) Commit(ctx context.Context, summary *models.MonthlySummary, now time.Time) error {
	created, err := q.store.CreateWithinQuota(ctx, summary, models.DateOf(now), models.EndOfDay(now), q.limit)
	if err != nil {
		return err
	}
	if !created {
		return q.exceeded()
	}
	return nil
}
