package events

import (
	"fmt"

	"budgettracker/config"
)

// New 根据配置创建事件总线
func New(cfg config.EventsConfig) (Bus, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalBus(cfg.Buffer), nil
	case "amqp":
		return NewAMQPClient(cfg.AMQPURL, cfg.Exchange, cfg.Queue)
	default:
		return nil, fmt.Errorf("未知的事件驱动: %s", cfg.Driver)
	}
}
