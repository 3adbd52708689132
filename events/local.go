package events

import (
	"context"
	"sync"
	"time"

	"budgettracker/logger"
)

// LocalBus 进程内事件总线：带缓冲的 channel，由单个消费者串行处理
type LocalBus struct {
	queue       chan *IncomeRecorded
	closed      chan struct{}
	closeOnce   sync.Once
	maxAttempts int
	backoff     func(attempt int) time.Duration
	log         *logger.Logger
}

// NewLocalBus 创建进程内总线，buffer <= 0 时取 256
func NewLocalBus(buffer int) *LocalBus {
	if buffer <= 0 {
		buffer = 256
	}
	return &LocalBus{
		queue:       make(chan *IncomeRecorded, buffer),
		closed:      make(chan struct{}),
		maxAttempts: 3,
		backoff:     exponentialBackoff,
		log:         logger.Component(logger.ComponentEvents),
	}
}

// PublishIncome 入队，队列满时阻塞直到 ctx 结束
func (b *LocalBus) PublishIncome(ctx context.Context, msg *IncomeRecorded) error {
	select {
	case <-b.closed:
		return ErrClosed
	default:
	}

	select {
	case b.queue <- msg:
		return nil
	case <-b.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume 处理事件直到 ctx 结束或总线关闭，关闭时先处理完已入队的事件
func (b *LocalBus) Consume(ctx context.Context, handler Handler) error {
	b.log.Info("开始消费收入事件", "driver", "local")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.queue:
			b.handle(ctx, msg, handler)
		case <-b.closed:
			for {
				select {
				case msg := <-b.queue:
					b.handle(ctx, msg, handler)
				default:
					return nil
				}
			}
		}
	}
}

func (b *LocalBus) handle(ctx context.Context, msg *IncomeRecorded, handler Handler) {
	log := b.log.With(logger.FieldUserID, msg.UserID, "transaction_id", msg.TransactionID)
	for attempt := 0; attempt < b.maxAttempts; attempt++ {
		err := handler(ctx, msg)
		if err == nil {
			return
		}
		log.Warn("处理收入事件失败", logger.FieldAttempt, attempt+1, logger.FieldError, err)
		if attempt == b.maxAttempts-1 {
			break
		}
		select {
		case <-time.After(b.backoff(attempt)):
		case <-ctx.Done():
			return
		}
	}
	log.Error("收入事件重试次数耗尽，已丢弃", "amount", msg.Amount.String())
}

// Close 关闭总线，之后的发布返回 ErrClosed
func (b *LocalBus) Close() error {
	b.closeOnce.Do(func() { close(b.closed) })
	return nil
}
