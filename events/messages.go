// Package events 收入入账事件的发布与消费
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrClosed 发布者已关闭
var ErrClosed = errors.New("events: publisher closed")

// IncomeRecorded 一笔收入已入账，消费方据此为目标自动分配金额
type IncomeRecorded struct {
	UserID        uint            `json:"user_id"`
	TransactionID uint            `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	RecordedAt    time.Time       `json:"recorded_at"`
}

// NewIncomeRecorded 创建收入事件
func NewIncomeRecorded(userID, transactionID uint, amount decimal.Decimal) *IncomeRecorded {
	return &IncomeRecorded{
		UserID:        userID,
		TransactionID: transactionID,
		Amount:        amount,
		RecordedAt:    time.Now(),
	}
}

// ToJSON 序列化
func (m *IncomeRecorded) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// IncomeRecordedFromJSON 反序列化
func IncomeRecordedFromJSON(data []byte) (*IncomeRecorded, error) {
	var msg IncomeRecorded
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Handler 处理一条收入事件
type Handler func(ctx context.Context, msg *IncomeRecorded) error

// Publisher 收入事件发布者
type Publisher interface {
	PublishIncome(ctx context.Context, msg *IncomeRecorded) error
	Close() error
}

// Bus 可发布也可消费的事件通道
type Bus interface {
	Publisher
	Consume(ctx context.Context, handler Handler) error
}

// exponentialBackoff 1s、2s、4s... 最长 30s
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 4 {
		return 30 * time.Second
	}
	d := time.Second << attempt
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}
