package service

import (
	"context"
	"fmt"
	"time"

	"budgettracker/models"

	"github.com/shopspring/decimal"
)

// ExpenseLimitValidator 支出不得超过当月收入
type ExpenseLimitValidator struct {
	ledger LedgerStore
	now    func() time.Time
}

// NewExpenseLimitValidator 创建支出校验器
func NewExpenseLimitValidator(ledger LedgerStore) *ExpenseLimitValidator {
	return &ExpenseLimitValidator{ledger: ledger, now: time.Now}
}

// MonthTotals 当月收支合计
type MonthTotals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// SumTotals 按类型汇总金额
func SumTotals(list []models.Transaction) MonthTotals {
	t := MonthTotals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, tx := range list {
		switch tx.Type {
		case models.TransactionIncome:
			t.Income = t.Income.Add(tx.Amount)
		case models.TransactionExpense:
			t.Expense = t.Expense.Add(tx.Amount)
		}
	}
	return t
}

// Validate 新增或修改交易前调用，excludeID 为正在编辑的交易（新增时为 0）
func (v *ExpenseLimitValidator) Validate(ctx context.Context, userID uint, txType models.TransactionType, amount decimal.Decimal, excludeID uint) error {
	if txType != models.TransactionExpense {
		return nil
	}

	start, end := models.MonthRange(v.now())
	list, err := v.ledger.FindTransactions(ctx, userID, models.TransactionFilter{
		Start:     start,
		End:       end,
		ExcludeID: excludeID,
	})
	if err != nil {
		return err
	}

	totals := SumTotals(list)
	if totals.Income.LessThan(totals.Expense.Add(amount)) {
		return ValidationError(fmt.Sprintf("本月收入不足，无法记录该支出（本月收入 %s，已支出 %s，本次支出 %s）",
			totals.Income.String(), totals.Expense.String(), amount.String()))
	}
	return nil
}
