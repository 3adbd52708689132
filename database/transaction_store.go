package database

import (
	"context"
	"fmt"

	"budgettracker/models"

	"gorm.io/gorm"
)

// TransactionStore 账本查询
type TransactionStore struct {
	db *gorm.DB
}

// NewTransactionStore 创建账本查询
func NewTransactionStore(db *gorm.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// FindTransactions 按条件查询用户交易，按日期升序
func (s *TransactionStore) FindTransactions(ctx context.Context, userID uint, f models.TransactionFilter) ([]models.Transaction, error) {
	q := s.db.WithContext(ctx).Preload("Category").Where("user_id = ?", userID)
	if !f.Start.IsZero() {
		q = q.Where("date >= ?", f.Start)
	}
	if !f.End.IsZero() {
		q = q.Where("date <= ?", f.End)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.ExcludeID != 0 {
		q = q.Where("id <> ?", f.ExcludeID)
	}

	var list []models.Transaction
	if err := q.Order("date ASC, id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("查询交易记录失败: %w", err)
	}
	return list, nil
}

// UserStore 用户查询
type UserStore struct {
	db *gorm.DB
}

// NewUserStore 创建用户查询
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// FindUser 按 ID 查询用户
func (s *UserStore) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
