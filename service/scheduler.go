package service

import (
	"context"
	"fmt"
	"time"

	"budgettracker/logger"

	"github.com/robfig/cron/v3"
)

// Scheduler 后台定时任务
type Scheduler struct {
	cron    *cron.Cron
	budgets BudgetStore
	now     func() time.Time
	log     *logger.Logger
}

// NewScheduler 创建定时任务调度器
func NewScheduler(budgets BudgetStore) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		budgets: budgets,
		now:     time.Now,
		log:     logger.Component(logger.ComponentScheduler),
	}
}

// Register 注册预算过期巡检任务，spec 为空时每天执行一次
func (s *Scheduler) Register(spec string) error {
	if spec == "" {
		spec = "@daily"
	}
	if _, err := s.cron.AddFunc(spec, func() {
		s.SweepBudgets(context.Background())
	}); err != nil {
		return fmt.Errorf("注册预算巡检任务失败: %w", err)
	}
	s.log.Info("已注册预算巡检任务", "spec", spec)
	return nil
}

// SweepBudgets 将已过结束日期的预算置为失效
func (s *Scheduler) SweepBudgets(ctx context.Context) int64 {
	n, err := s.budgets.DeactivateExpired(ctx, s.now())
	if err != nil {
		s.log.Error("预算巡检失败", logger.FieldError, err)
		return 0
	}
	if n > 0 {
		s.log.Info("已停用过期预算", "count", n)
	}
	return n
}

// Start 启动调度
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
