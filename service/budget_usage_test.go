package service

import (
	"context"
	"testing"
	"time"

	"budgettracker/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeUsage(t *testing.T) {
	tests := []struct {
		name      string
		amount    string
		spent     string
		remaining string
		pct       string
	}{
		{"正常", "1000", "250", "750", "25"},
		{"超支", "100", "150", "0", "150"},
		{"四舍五入", "3", "1", "2", "33.33"},
		{"零预算", "0", "50", "0", "0"},
		{"负预算", "-10", "5", "0", "0"},
		{"未支出", "500", "0", "500", "0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			u := ComputeUsage(dec(tc.amount), dec(tc.spent))
			assert.True(t, u.RemainingAmount.Equal(dec(tc.remaining)), "remaining %s", u.RemainingAmount)
			assert.True(t, u.UsagePercentage.Equal(dec(tc.pct)), "pct %s", u.UsagePercentage)
			assert.False(t, u.RemainingAmount.IsNegative())
			assert.False(t, u.UsagePercentage.IsNegative())
		})
	}
}

func TestBudgetCalculator_Usage(t *testing.T) {
	ledger := &fakeLedger{}
	food := uint(3)
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.Local)

	ledger.add(1, models.TransactionExpense, 300, start.Add(2*time.Hour))
	ledger.add(1, models.TransactionExpense, 200, start.AddDate(0, 0, 10))
	ledger.add(1, models.TransactionIncome, 9000, start.AddDate(0, 0, 1))
	ledger.add(1, models.TransactionExpense, 700, start.AddDate(0, 1, 0)) // 周期外
	ledger.txs[0].CategoryID = &food

	calc := NewBudgetCalculator(ledger)
	calc.now = fixedClock(start.AddDate(0, 0, 20))

	b := &models.Budget{UserID: 1, Amount: decimal.NewFromInt(1000), Period: models.PeriodMonthly, PeriodStart: start}
	b.EnsurePeriodEnd()

	u, err := calc.Usage(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, u.SpentAmount.Equal(decimal.NewFromInt(500)))
	assert.True(t, u.RemainingAmount.Equal(decimal.NewFromInt(500)))
	assert.True(t, u.UsagePercentage.Equal(decimal.NewFromInt(50)))

	// 按类别过滤
	b.CategoryID = &food
	u, err = calc.Usage(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, u.SpentAmount.Equal(decimal.NewFromInt(300)))
}

func TestBudgetCalculator_UsageWithoutEndUsesToday(t *testing.T) {
	ledger := &fakeLedger{}
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.Local)
	today := time.Date(2024, 4, 5, 9, 0, 0, 0, time.Local)
	ledger.add(1, models.TransactionExpense, 100, time.Date(2024, 4, 5, 21, 0, 0, 0, time.Local))
	ledger.add(1, models.TransactionExpense, 100, time.Date(2024, 4, 6, 8, 0, 0, 0, time.Local))

	calc := NewBudgetCalculator(ledger)
	calc.now = fixedClock(today)

	u, err := calc.Usage(context.Background(), &models.Budget{UserID: 1, Amount: decimal.NewFromInt(50), PeriodStart: start})
	require.NoError(t, err)
	assert.True(t, u.SpentAmount.Equal(decimal.NewFromInt(100)))
	assert.True(t, u.RemainingAmount.IsZero())
	assert.True(t, u.UsagePercentage.Equal(decimal.NewFromInt(200)))
}
