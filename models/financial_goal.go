package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GoalType 目标类型
type GoalType string

const (
	GoalSavings    GoalType = "SAVINGS"
	GoalInvestment GoalType = "INVESTMENT"
	GoalPurchase   GoalType = "PURCHASE"
	GoalDebtPayoff GoalType = "DEBT_PAYOFF"
	GoalOther      GoalType = "OTHER"
)

// GoalStatus 目标状态
type GoalStatus string

const (
	GoalActive    GoalStatus = "ACTIVE"
	GoalCompleted GoalStatus = "COMPLETED"
	GoalPaused    GoalStatus = "PAUSED"
	GoalCancelled GoalStatus = "CANCELLED"
)

// ParseGoalType 解析目标类型
func ParseGoalType(s string) (GoalType, error) {
	switch t := GoalType(strings.ToUpper(strings.TrimSpace(s))); t {
	case GoalSavings, GoalInvestment, GoalPurchase, GoalDebtPayoff, GoalOther:
		return t, nil
	default:
		return "", fmt.Errorf("无效的目标类型: %q，可选值: SAVINGS, INVESTMENT, PURCHASE, DEBT_PAYOFF, OTHER", s)
	}
}

// ParseGoalStatus 解析目标状态
func ParseGoalStatus(s string) (GoalStatus, error) {
	switch st := GoalStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case GoalActive, GoalCompleted, GoalPaused, GoalCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("无效的目标状态: %q，可选值: ACTIVE, COMPLETED, PAUSED, CANCELLED", s)
	}
}

// DefaultIcon 各类型的默认图标
func (t GoalType) DefaultIcon() string {
	switch t {
	case GoalSavings:
		return "💰"
	case GoalInvestment:
		return "📈"
	case GoalPurchase:
		return "🛒"
	case GoalDebtPayoff:
		return "💳"
	default:
		return "🎯"
	}
}

// FinancialGoal 理财目标
type FinancialGoal struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	UserID        uint            `json:"user_id" gorm:"index:idx_goal_user_status;not null"`
	Name          string          `json:"name" gorm:"size:100;not null"`
	Description   string          `json:"description" gorm:"size:255"`
	TargetAmount  decimal.Decimal `json:"target_amount" gorm:"type:decimal(15,2);not null" swaggertype:"string" example:"10000000"`
	CurrentAmount decimal.Decimal `json:"current_amount" gorm:"type:decimal(15,2);not null;default:0" swaggertype:"string" example:"0"`
	Deadline      *time.Time      `json:"deadline" gorm:"type:date"`
	Type          GoalType        `json:"type" gorm:"size:20;not null"`
	Status        GoalStatus      `json:"status" gorm:"size:20;not null;index:idx_goal_user_status"`
	Icon          string          `json:"icon" gorm:"size:16"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `json:"-" gorm:"index"`
}

func (FinancialGoal) TableName() string {
	return "financial_goals"
}

// Deposit 增加金额，达到目标时封顶并标记完成，返回实际入账金额
func (g *FinancialGoal) Deposit(amount decimal.Decimal) decimal.Decimal {
	before := g.CurrentAmount
	next := g.CurrentAmount.Add(amount)
	if next.GreaterThanOrEqual(g.TargetAmount) {
		next = g.TargetAmount
		g.Status = GoalCompleted
	}
	g.CurrentAmount = next
	return next.Sub(before)
}

// SettleCompletion 手动修改金额后同步完成状态，已完成的目标不会被重新打开
func (g *FinancialGoal) SettleCompletion() {
	if g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount) {
		g.CurrentAmount = g.TargetAmount
		g.Status = GoalCompleted
	}
}

// Progress 完成百分比（先保留 4 位小数再乘 100）
func (g *FinancialGoal) Progress() decimal.Decimal {
	if !g.TargetAmount.IsPositive() {
		return decimal.Zero
	}
	return g.CurrentAmount.DivRound(g.TargetAmount, 4).Mul(decimal.NewFromInt(100))
}

// Remaining 距离目标的差额
func (g *FinancialGoal) Remaining() decimal.Decimal {
	r := g.TargetAmount.Sub(g.CurrentAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// PastDeadline 截止日期早于 day 时视为已过期
func (g *FinancialGoal) PastDeadline(day time.Time) bool {
	return g.Deadline != nil && DateOf(*g.Deadline).Before(DateOf(day))
}
