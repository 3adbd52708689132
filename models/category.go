package models

import (
	"time"

	"gorm.io/gorm"
)

// Category 收支类别（全局共享，后台维护）
type Category struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	Name        string          `json:"name" gorm:"size:50;not null;uniqueIndex:idx_category_name_type"`
	Type        TransactionType `json:"type" gorm:"size:10;not null;uniqueIndex:idx_category_name_type"`
	Description string          `json:"description" gorm:"size:255"`
	Color       string          `json:"color" gorm:"size:20;default:#64748b"` // 颜色代码，如 #ef4444
	Sort        int             `json:"sort" gorm:"default:0;index"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `json:"-" gorm:"index"`
}

func (Category) TableName() string {
	return "categories"
}

// DefaultCategoryName 交易未关联类别时在报告中使用的名称
const DefaultCategoryName = "其他"

// DefaultCategory 默认类别种子数据
type DefaultCategory struct {
	Name  string
	Type  TransactionType
	Color string
}

// DefaultCategories 初始化时写入的类别
func DefaultCategories() []DefaultCategory {
	return []DefaultCategory{
		{"餐饮", TransactionExpense, "#ef4444"},
		{"交通", TransactionExpense, "#3b82f6"},
		{"购物", TransactionExpense, "#a855f7"},
		{"娱乐", TransactionExpense, "#ec4899"},
		{"医疗", TransactionExpense, "#10b981"},
		{"教育", TransactionExpense, "#f59e0b"},
		{"住房", TransactionExpense, "#14b8a6"},
		{"其他", TransactionExpense, "#64748b"},
		{"工资", TransactionIncome, "#10b981"},
		{"奖金", TransactionIncome, "#3b82f6"},
		{"理财", TransactionIncome, "#a855f7"},
		{"兼职", TransactionIncome, "#f59e0b"},
		{"其他", TransactionIncome, "#64748b"},
	}
}
