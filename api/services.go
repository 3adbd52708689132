package api

import (
	"budgettracker/config"
	"budgettracker/database"
	"budgettracker/events"
	"budgettracker/service"

	"gorm.io/gorm"
)

// Services 处理器依赖的业务组件
type Services struct {
	Config    *config.Config
	Validator *service.ExpenseLimitValidator
	Budgets   *service.BudgetCalculator
	Goals     *service.GoalAllocator
	Summaries *service.SummaryGenerator
	Email     *service.EmailService
	Events    events.Publisher
}

// NewServices 基于数据库连接组装业务组件
func NewServices(cfg *config.Config, db *gorm.DB, publisher events.Publisher) *Services {
	ledger := database.NewTransactionStore(db)
	quota := service.NewDailyQuota(database.NewSummaryStore(db), cfg.AI.DailyLimit)
	summaries := service.NewSummaryGenerator(ledger, database.NewUserStore(db), quota, service.NewChatClient(cfg.AI)).
		WithTimeout(cfg.AI.RequestTimeout)

	return &Services{
		Config:    cfg,
		Validator: service.NewExpenseLimitValidator(ledger),
		Budgets:   service.NewBudgetCalculator(ledger),
		Goals:     service.NewGoalAllocator(database.NewGoalStore(db)),
		Summaries: summaries,
		Email:     service.NewEmailService(&cfg.Email),
		Events:    publisher,
	}
}
