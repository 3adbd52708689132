package service

import (
	"context"
	"time"

	"budgettracker/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// BudgetUsage 预算使用情况
type BudgetUsage struct {
	SpentAmount     decimal.Decimal `json:"spent_amount" swaggertype:"string"`
	RemainingAmount decimal.Decimal `json:"remaining_amount" swaggertype:"string"`
	UsagePercentage decimal.Decimal `json:"usage_percentage" swaggertype:"string"`
}

// BudgetCalculator 预算使用计算
type BudgetCalculator struct {
	ledger LedgerStore
	now    func() time.Time
}

// NewBudgetCalculator 创建预算计算器
func NewBudgetCalculator(ledger LedgerStore) *BudgetCalculator {
	return &BudgetCalculator{ledger: ledger, now: time.Now}
}

// Usage 统计预算周期内（未设置结束日期时截至今天）的支出
func (c *BudgetCalculator) Usage(ctx context.Context, b *models.Budget) (*BudgetUsage, error) {
	end := c.now()
	if b.PeriodEnd != nil {
		end = *b.PeriodEnd
	}

	list, err := c.ledger.FindTransactions(ctx, b.UserID, models.TransactionFilter{
		Start:      models.DateOf(b.PeriodStart),
		End:        models.EndOfDay(end),
		Type:       models.TransactionExpense,
		CategoryID: b.CategoryID,
	})
	if err != nil {
		return nil, err
	}

	spent := decimal.Zero
	for _, tx := range list {
		spent = spent.Add(tx.Amount)
	}
	usage := ComputeUsage(b.Amount, spent)
	return &usage, nil
}

// ComputeUsage remaining 不小于 0，百分比先保留 4 位小数（四舍五入）再乘 100
func ComputeUsage(amount, spent decimal.Decimal) BudgetUsage {
	remaining := amount.Sub(spent)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	pct := decimal.Zero
	if amount.IsPositive() {
		pct = spent.DivRound(amount, 4).Mul(hundred)
	}

	return BudgetUsage{
		SpentAmount:     spent,
		RemainingAmount: remaining,
		UsagePercentage: pct,
	}
}
