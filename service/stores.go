package service

import (
	"context"
	"time"

	"budgettracker/models"
)

// LedgerStore 账本查询
type LedgerStore interface {
	FindTransactions(ctx context.Context, userID uint, f models.TransactionFilter) ([]models.Transaction, error)
}

// GoalStore 目标存储
type GoalStore interface {
	UpdateActiveGoals(ctx context.Context, userID uint, asOf time.Time, fn func([]models.FinancialGoal) error) error
	UpdateGoal(ctx context.Context, goalID uint, fn func(*models.FinancialGoal) error) (*models.FinancialGoal, error)
}

// SummaryStore 月度总结存储
type SummaryStore interface {
	CountCreatedBetween(ctx context.Context, userID uint, from, to time.Time) (int64, error)
	CreateWithinQuota(ctx context.Context, summary *models.MonthlySummary, from, to time.Time, limit int) (bool, error)
}

// UserStore 用户查询
type UserStore interface {
	FindUser(ctx context.Context, id uint) (*models.User, error)
}

// BudgetStore 预算存储
type BudgetStore interface {
	DeactivateExpired(ctx context.Context, today time.Time) (int64, error)
}
