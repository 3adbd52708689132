package events

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"budgettracker/logger"

	"github.com/rabbitmq/amqp091-go"
)

// AMQPClient 基于 RabbitMQ 的收入事件通道
type AMQPClient struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	closed       atomic.Bool
	log          *logger.Logger
}

// NewAMQPClient 连接 broker 并声明持久化的 direct exchange 和队列
func NewAMQPClient(url, exchangeName, queueName string) (*AMQPClient, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("连接 AMQP 失败: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("打开 AMQP channel 失败: %w", err)
	}

	client := &AMQPClient{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
		log:          logger.Component(logger.ComponentEvents),
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (c *AMQPClient) setup() error {
	if err := c.channel.ExchangeDeclare(c.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("声明 exchange 失败: %w", err)
	}
	if _, err := c.channel.QueueDeclare(c.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("声明队列失败: %w", err)
	}
	// direct exchange 的 routing key 与队列同名
	if err := c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("绑定队列失败: %w", err)
	}
	return nil
}

// PublishIncome 发布持久化消息
func (c *AMQPClient) PublishIncome(ctx context.Context, msg *IncomeRecorded) error {
	if c.closed.Load() {
		return ErrClosed
	}
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("序列化收入事件失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(ctx, c.exchangeName, c.queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    msg.RecordedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("发布收入事件失败: %w", err)
	}

	c.log.Debug("已发布收入事件", logger.FieldUserID, msg.UserID, "transaction_id", msg.TransactionID, "queue", c.queueName)
	return nil
}

// Consume 手动确认消费；处理失败的消息重新投递一次，再次失败则丢弃。
// 调用 Close 后正常返回 nil。
func (c *AMQPClient) Consume(ctx context.Context, handler Handler) error {
	deliveries, err := c.channel.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("开始消费失败: %w", err)
	}

	c.log.Info("开始消费收入事件", "driver", "amqp", "queue", c.queueName)
	return c.consume(ctx, deliveries, handler)
}

func (c *AMQPClient) consume(ctx context.Context, deliveries <-chan amqp091.Delivery, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				if c.closed.Load() {
					return nil
				}
				return fmt.Errorf("AMQP 消息通道已关闭")
			}
			c.handleDelivery(ctx, d, handler)
		}
	}
}

func (c *AMQPClient) handleDelivery(ctx context.Context, d amqp091.Delivery, handler Handler) {
	msg, err := IncomeRecordedFromJSON(d.Body)
	if err != nil {
		c.log.Error("收入事件格式错误", logger.FieldError, err)
		_ = d.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		requeue := !d.Redelivered
		c.log.Warn("处理收入事件失败", logger.FieldUserID, msg.UserID, "requeue", requeue, logger.FieldError, err)
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
}

// Close 关闭 channel 和连接，重复调用无副作用
func (c *AMQPClient) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
