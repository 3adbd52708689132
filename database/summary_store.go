package database

import (
	"context"
	"time"

	"budgettracker/models"

	"gorm.io/gorm"
)

// SummaryStore 月度总结存储
type SummaryStore struct {
	db *gorm.DB
}

// NewSummaryStore 创建月度总结存储
func NewSummaryStore(db *gorm.DB) *SummaryStore {
	return &SummaryStore{db: db}
}

// CountCreatedBetween 统计时间段内生成的总结数量
func (s *SummaryStore) CountCreatedBetween(ctx context.Context, userID uint, from, to time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.MonthlySummary{}).
		Where("user_id = ? AND created_at >= ? AND created_at <= ?", userID, from, to).
		Count(&count).Error
	return count, err
}

// CreateWithinQuota 在同一事务内加锁重新计数后写入，超出 limit 时不写入并返回 false
func (s *SummaryStore) CreateWithinQuota(ctx context.Context, summary *models.MonthlySummary, from, to time.Time, limit int) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := forUpdate(tx).Model(&models.MonthlySummary{}).
			Where("user_id = ? AND created_at >= ? AND created_at <= ?", summary.UserID, from, to).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count >= int64(limit) {
			return nil
		}
		if err := tx.Create(summary).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}
