package models

import (
	"strconv"
	"strings"
	"time"
)

// MonthlySummary AI 月度总结（每次生成追加一条）
type MonthlySummary struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	UserID           uint      `json:"user_id" gorm:"index:idx_summary_user_created;not null"`
	Month            string    `json:"month" gorm:"size:20;not null"`
	Year             string    `json:"year" gorm:"size:4;not null"`
	TotalIncome      string    `json:"total_income" gorm:"size:32;not null"`
	TotalExpense     string    `json:"total_expense" gorm:"size:32;not null"`
	Balance          string    `json:"balance" gorm:"size:32;not null"`
	AISummary        string    `json:"ai_summary" gorm:"type:text"`
	AIRecommendation string    `json:"ai_recommendation" gorm:"type:text"`
	AITrendAnalysis  string    `json:"ai_trend_analysis" gorm:"type:text"`
	CreatedAt        time.Time `json:"created_at" gorm:"index:idx_summary_user_created"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (MonthlySummary) TableName() string {
	return "monthly_summaries"
}

// Recommendations 按行拆分建议，忽略空行
func (s *MonthlySummary) Recommendations() []string {
	var out []string
	for _, line := range strings.Split(s.AIRecommendation, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

var chineseMonths = [...]string{"一月", "二月", "三月", "四月", "五月", "六月", "七月", "八月", "九月", "十月", "十一月", "十二月"}

// MonthName 本地化月份名称，如 "十月"
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return chineseMonths[m-1]
}

// MonthLabel 本地化年月，如 "2026年十月"
func MonthLabel(t time.Time) string {
	return strconv.Itoa(t.Year()) + "年" + MonthName(t.Month())
}

// MonthNumber MonthName 的逆运算，未知名称返回 0
func MonthNumber(name string) int {
	for i, n := range chineseMonths {
		if n == name {
			return i + 1
		}
	}
	return 0
}
