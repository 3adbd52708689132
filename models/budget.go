package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BudgetPeriod 预算周期
type BudgetPeriod string

const (
	PeriodMonthly BudgetPeriod = "MONTHLY"
	PeriodWeekly  BudgetPeriod = "WEEKLY"
	PeriodYearly  BudgetPeriod = "YEARLY"
)

// ParseBudgetPeriod 解析预算周期，只接受 MONTHLY/WEEKLY/YEARLY
func ParseBudgetPeriod(s string) (BudgetPeriod, error) {
	switch p := BudgetPeriod(strings.ToUpper(strings.TrimSpace(s))); p {
	case PeriodMonthly, PeriodWeekly, PeriodYearly:
		return p, nil
	default:
		return "", fmt.Errorf("无效的预算周期: %q，可选值: MONTHLY, WEEKLY, YEARLY", s)
	}
}

// EndFrom 从开始日期推算周期最后一天，未知周期按月计算
func (p BudgetPeriod) EndFrom(start time.Time) time.Time {
	start = DateOf(start)
	switch p {
	case PeriodWeekly:
		return start.AddDate(0, 0, 6)
	case PeriodYearly:
		return addMonthsClamped(start, 12).AddDate(0, 0, -1)
	default:
		return addMonthsClamped(start, 1).AddDate(0, 0, -1)
	}
}

// addMonthsClamped 加月份，目标月份没有对应日期时取该月最后一天（1月31日 + 1个月 = 2月28/29日）
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := DaysIn(first); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}

// Budget 预算
type Budget struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	UserID      uint            `json:"user_id" gorm:"index;not null"`
	CategoryID  *uint           `json:"category_id" gorm:"index"` // 为空表示全部类别
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(15,2);not null" swaggertype:"string" example:"2000000"`
	Period      BudgetPeriod    `json:"period" gorm:"size:10;not null"`
	PeriodStart time.Time       `json:"period_start" gorm:"type:date;not null"`
	PeriodEnd   *time.Time      `json:"period_end" gorm:"type:date"`
	Description string          `json:"description" gorm:"size:255"`
	IsActive    bool            `json:"is_active" gorm:"default:true;index"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `json:"-" gorm:"index"`

	Category *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
}

func (Budget) TableName() string {
	return "budgets"
}

// EnsurePeriodEnd 结束日期为空时按周期推算
func (b *Budget) EnsurePeriodEnd() {
	if b.PeriodEnd == nil {
		end := b.Period.EndFrom(b.PeriodStart)
		b.PeriodEnd = &end
	}
}

// DateOf 截取到当天零点
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay 当天最后一刻
func EndOfDay(t time.Time) time.Time {
	return DateOf(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// DaysIn 当月天数
func DaysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// MonthRange 当月第一天零点到最后一天最后一刻
func MonthRange(t time.Time) (time.Time, time.Time) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return first, first.AddDate(0, 1, 0).Add(-time.Nanosecond)
}
