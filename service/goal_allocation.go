package service

import (
	"context"
	"errors"
	"time"

	"budgettracker/logger"
	"budgettracker/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Allocation 单个目标的分配结果
type Allocation struct {
	GoalID    uint            `json:"goal_id"`
	Added     decimal.Decimal `json:"added" swaggertype:"string"`
	Completed bool            `json:"completed"`
}

// GoalAllocator 收入自动分配与手动存入
type GoalAllocator struct {
	goals GoalStore
	now   func() time.Time
	log   *logger.Logger
}

// NewGoalAllocator 创建目标分配器
func NewGoalAllocator(goals GoalStore) *GoalAllocator {
	return &GoalAllocator{
		goals: goals,
		now:   time.Now,
		log:   logger.Component(logger.ComponentGoal),
	}
}

// SplitIncome 将收入平均分到每个目标（保留两位小数，四舍五入），超过目标金额的部分封顶
func SplitIncome(goals []models.FinancialGoal, amount decimal.Decimal) []Allocation {
	if len(goals) == 0 || !amount.IsPositive() {
		return nil
	}

	perGoal := amount.DivRound(decimal.NewFromInt(int64(len(goals))), 2)
	out := make([]Allocation, 0, len(goals))
	for i := range goals {
		added := goals[i].Deposit(perGoal)
		out = append(out, Allocation{
			GoalID:    goals[i].ID,
			Added:     added,
			Completed: goals[i].Status == models.GoalCompleted,
		})
	}
	return out
}

// AllocateIncome 收入入账后调用：分配到所有未过期的 ACTIVE 目标
func (a *GoalAllocator) AllocateIncome(ctx context.Context, userID uint, amount decimal.Decimal) ([]Allocation, error) {
	if !amount.IsPositive() {
		return nil, nil
	}

	var result []Allocation
	err := a.goals.UpdateActiveGoals(ctx, userID, a.now(), func(goals []models.FinancialGoal) error {
		result = SplitIncome(goals, amount)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result) > 0 {
		logger.FromContext(ctx, a.log).Info("收入已自动分配到理财目标",
			logger.FieldUserID, userID,
			"amount", amount.String(),
			"goals", len(result))
	}
	return result, nil
}

// AddAmount 手动向单个目标存入
func (a *GoalAllocator) AddAmount(ctx context.Context, userID, goalID uint, amount decimal.Decimal) (*models.FinancialGoal, error) {
	if !amount.IsPositive() {
		return nil, ValidationError("存入金额必须大于 0")
	}

	goal, err := a.goals.UpdateGoal(ctx, goalID, func(g *models.FinancialGoal) error {
		if g.UserID != userID {
			return ForbiddenError("无权操作该目标")
		}
		if g.Status != models.GoalActive {
			return ValidationError("只有进行中的目标才能存入金额")
		}
		g.Deposit(amount)
		return nil
	})
	return goal, goalError(err)
}

// Complete 手动标记完成，当前金额同步为目标金额
func (a *GoalAllocator) Complete(ctx context.Context, userID, goalID uint) (*models.FinancialGoal, error) {
	goal, err := a.goals.UpdateGoal(ctx, goalID, func(g *models.FinancialGoal) error {
		if g.UserID != userID {
			return ForbiddenError("无权操作该目标")
		}
		if g.Status == models.GoalCancelled {
			return ValidationError("已取消的目标不能标记完成")
		}
		g.Status = models.GoalCompleted
		g.CurrentAmount = g.TargetAmount
		return nil
	})
	return goal, goalError(err)
}

// Update 修改目标的其它字段，修改后当前金额达到目标金额时自动完成
func (a *GoalAllocator) Update(ctx context.Context, userID, goalID uint, fn func(*models.FinancialGoal) error) (*models.FinancialGoal, error) {
	goal, err := a.goals.UpdateGoal(ctx, goalID, func(g *models.FinancialGoal) error {
		if g.UserID != userID {
			return ForbiddenError("无权操作该目标")
		}
		if err := fn(g); err != nil {
			return err
		}
		if !g.TargetAmount.IsPositive() {
			return ValidationError("目标金额必须大于 0")
		}
		if g.CurrentAmount.IsNegative() {
			return ValidationError("当前金额不能为负数")
		}
		if g.Status == models.GoalCompleted {
			g.CurrentAmount = g.TargetAmount
		}
		g.SettleCompletion()
		return nil
	})
	return goal, goalError(err)
}

func goalError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFoundError("目标不存在")
	}
	return err
}
