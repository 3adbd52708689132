package database

import (
	"context"
	"time"

	"budgettracker/models"

	"gorm.io/gorm"
)

// BudgetStore 预算存储
type BudgetStore struct {
	db *gorm.DB
}

// NewBudgetStore 创建预算存储
func NewBudgetStore(db *gorm.DB) *BudgetStore {
	return &BudgetStore{db: db}
}

// DeactivateExpired 将结束日期早于 today 的预算置为失效，返回影响行数
func (s *BudgetStore) DeactivateExpired(ctx context.Context, today time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Budget{}).
		Where("is_active = ? AND period_end IS NOT NULL AND period_end < ?", true, models.DateOf(today)).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}
