package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType 交易类型
type TransactionType string

const (
	TransactionIncome  TransactionType = "INCOME"
	TransactionExpense TransactionType = "EXPENSE"
)

// ParseTransactionType 解析交易类型（大小写不敏感）
func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(strings.ToUpper(strings.TrimSpace(s))); t {
	case TransactionIncome, TransactionExpense:
		return t, nil
	default:
		return "", fmt.Errorf("无效的交易类型: %q，可选值: INCOME, EXPENSE", s)
	}
}

// Transaction 收支记录
type Transaction struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	UserID     uint            `json:"user_id" gorm:"index:idx_tx_user_date;not null"`
	CategoryID *uint           `json:"category_id" gorm:"index"`
	Type       TransactionType `json:"type" gorm:"size:10;not null;index"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:decimal(15,2);not null" swaggertype:"string" example:"150000"`
	Date       time.Time       `json:"date" gorm:"index:idx_tx_user_date;not null"`
	Note       string          `json:"note" gorm:"size:255"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	DeletedAt  gorm.DeletedAt  `json:"-" gorm:"index"`

	Category *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	User     User      `json:"-" gorm:"foreignKey:UserID"`
}

// TableName 设置表名
func (Transaction) TableName() string {
	return "transactions"
}

// CategoryName 类别名称，未关联时返回默认值
func (t *Transaction) CategoryName() string {
	if t.Category == nil || t.Category.Name == "" {
		return DefaultCategoryName
	}
	return t.Category.Name
}

// TransactionFilter 账本查询条件，零值字段不参与过滤
type TransactionFilter struct {
	Start      time.Time
	End        time.Time
	Type       TransactionType
	CategoryID *uint
	ExcludeID  uint
}

// ValidateAmount 金额必须是非负整数
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("金额不能为负数")
	}
	if !amount.IsInteger() {
		return fmt.Errorf("金额必须为整数")
	}
	return nil
}
