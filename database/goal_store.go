package database

import (
	"context"
	"time"

	"budgettracker/models"

	"gorm.io/gorm"
)

// GoalStore 理财目标存储，批量更新在同一事务内加行锁
type GoalStore struct {
	db *gorm.DB
}

// NewGoalStore 创建目标存储
func NewGoalStore(db *gorm.DB) *GoalStore {
	return &GoalStore{db: db}
}

// UpdateActiveGoals 锁定用户所有未过期的 ACTIVE 目标，交给 fn 修改后统一保存
func (s *GoalStore) UpdateActiveGoals(ctx context.Context, userID uint, asOf time.Time, fn func([]models.FinancialGoal) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var goals []models.FinancialGoal
		err := forUpdate(tx).
			Where("user_id = ? AND status = ?", userID, models.GoalActive).
			Where("deadline IS NULL OR deadline >= ?", models.DateOf(asOf)).
			Order("id ASC").
			Find(&goals).Error
		if err != nil {
			return err
		}
		if len(goals) == 0 {
			return nil
		}

		if err := fn(goals); err != nil {
			return err
		}

		for i := range goals {
			err := tx.Model(&goals[i]).Updates(map[string]interface{}{
				"current_amount": goals[i].CurrentAmount,
				"status":         goals[i].Status,
			}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateGoal 锁定单个目标，fn 返回错误时回滚
func (s *GoalStore) UpdateGoal(ctx context.Context, goalID uint, fn func(*models.FinancialGoal) error) (*models.FinancialGoal, error) {
	var goal models.FinancialGoal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&goal, goalID).Error; err != nil {
			return err
		}
		if err := fn(&goal); err != nil {
			return err
		}
		return tx.Save(&goal).Error
	})
	if err != nil {
		return nil, err
	}
	return &goal, nil
}
