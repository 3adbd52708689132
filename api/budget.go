package api

import (
	"context"
	"time"

	"budgettracker/database"
	"budgettracker/middleware"
	"budgettracker/models"
	"budgettracker/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// BudgetHandler 预算处理器
type BudgetHandler struct {
	svc *Services
}

// NewBudgetHandler 创建预算处理器
func NewBudgetHandler(svc *Services) *BudgetHandler {
	return &BudgetHandler{svc: svc}
}

// CreateBudgetRequest 创建预算请求
type CreateBudgetRequest struct {
	CategoryID  *uint           `json:"category_id" example:"1"`
	Amount      decimal.Decimal `json:"amount" swaggertype:"string" example:"2000000"`
	Period      string          `json:"period" binding:"required" example:"MONTHLY"`
	PeriodStart string          `json:"period_start" binding:"required" example:"2024-10-01"`
	PeriodEnd   string          `json:"period_end" example:"2024-10-31"`
	Description string          `json:"description" binding:"max=255"`
}

// UpdateBudgetRequest 更新预算请求，未传的字段保持不变
type UpdateBudgetRequest struct {
	CategoryID  *uint            `json:"category_id"`
	Amount      *decimal.Decimal `json:"amount" swaggertype:"string"`
	Period      *string          `json:"period"`
	PeriodStart *string          `json:"period_start"`
	PeriodEnd   *string          `json:"period_end"`
	Description *string          `json:"description" binding:"omitempty,max=255"`
	IsActive    *bool            `json:"is_active"`
}

// BudgetResponse 预算及其使用情况
type BudgetResponse struct {
	models.Budget
	service.BudgetUsage
}

func ownerOfBudget(b *models.Budget) uint { return b.UserID }

func (h *BudgetHandler) withUsage(ctx context.Context, list []models.Budget) ([]BudgetResponse, error) {
	out := make([]BudgetResponse, 0, len(list))
	for i := range list {
		usage, err := h.svc.Budgets.Usage(ctx, &list[i])
		if err != nil {
			return nil, err
		}
		out = append(out, BudgetResponse{Budget: list[i], BudgetUsage: *usage})
	}
	return out, nil
}

func validateBudgetAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return service.ValidationError("预算金额不能为负数")
	}
	return nil
}

func validateBudgetCategory(categoryID *uint) error {
	return checkCategory(categoryID, models.TransactionExpense)
}

// List 获取预算列表
// @Summary 获取预算列表
// @Description 返回当前用户的全部预算及已用金额、剩余金额、使用百分比
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]BudgetResponse} "获取成功"
// @Router /api/v1/budgets [get]
func (h *BudgetHandler) List(c *gin.Context) {
	var list []models.Budget
	if err := database.DB.WithContext(c.Request.Context()).
		Where("user_id = ?", middleware.GetCurrentUserID(c)).
		Order("period_start DESC, id DESC").Find(&list).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	out, err := h.withUsage(c.Request.Context(), list)
	if err != nil {
		RespondError(c, err, "计算预算使用情况失败")
		return
	}
	Success(c, out)
}

// Active 获取当前生效的预算
// @Summary 获取当前生效的预算
// @Description 返回启用中且周期覆盖今天的预算
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]BudgetResponse} "获取成功"
// @Router /api/v1/budgets/active [get]
func (h *BudgetHandler) Active(c *gin.Context) {
	today := models.DateOf(time.Now())
	var list []models.Budget
	if err := database.DB.WithContext(c.Request.Context()).
		Where("user_id = ? AND is_active = ? AND period_start <= ? AND (period_end IS NULL OR period_end >= ?)",
			middleware.GetCurrentUserID(c), true, today, today).
		Order("period_start DESC, id DESC").Find(&list).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	out, err := h.withUsage(c.Request.Context(), list)
	if err != nil {
		RespondError(c, err, "计算预算使用情况失败")
		return
	}
	Success(c, out)
}

// Get 获取单个预算
// @Summary 获取单个预算
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Success 200 {object} Response{data=BudgetResponse} "获取成功"
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/budgets/{id} [get]
func (h *BudgetHandler) Get(c *gin.Context) {
	var b models.Budget
	if !loadOwned(c, &b, ownerOfBudget, "预算不存在") {
		return
	}
	usage, err := h.svc.Budgets.Usage(c.Request.Context(), &b)
	if err != nil {
		RespondError(c, err, "计算预算使用情况失败")
		return
	}
	Success(c, BudgetResponse{Budget: b, BudgetUsage: *usage})
}

// Create 创建预算
// @Summary 创建预算
// @Description 未指定结束日期时按周期推算：MONTHLY 一个月、WEEKLY 一周、YEARLY 一年（均减一天）
// @Tags 预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateBudgetRequest true "预算信息"
// @Success 200 {object} Response{data=BudgetResponse} "创建成功"
// @Failure 400 {object} Response "参数错误"
// @Router /api/v1/budgets [post]
func (h *BudgetHandler) Create(c *gin.Context) {
	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	period, err := models.ParseBudgetPeriod(req.Period)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	start, err := parseDate(req.PeriodStart)
	if err != nil {
		BadRequest(c, "开始日期格式错误，应为: 2006-01-02")
		return
	}

	b := models.Budget{
		UserID:      middleware.GetCurrentUserID(c),
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Period:      period,
		PeriodStart: models.DateOf(start),
		Description: req.Description,
		IsActive:    true,
	}
	if req.PeriodEnd != "" {
		end, err := parseDate(req.PeriodEnd)
		if err != nil {
			BadRequest(c, "结束日期格式错误，应为: 2006-01-02")
			return
		}
		end = models.DateOf(end)
		b.PeriodEnd = &end
	}
	if err := h.validate(&b); err != nil {
		RespondError(c, err, "创建失败")
		return
	}

	if err := database.DB.WithContext(c.Request.Context()).Create(&b).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "创建预算失败"))
		return
	}

	usage := service.ComputeUsage(b.Amount, decimal.Zero)
	SuccessWithMessage(c, "创建成功", BudgetResponse{Budget: b, BudgetUsage: usage})
}

// validate 补全结束日期并校验
func (h *BudgetHandler) validate(b *models.Budget) error {
	if err := validateBudgetAmount(b.Amount); err != nil {
		return err
	}
	if err := validateBudgetCategory(b.CategoryID); err != nil {
		return err
	}
	b.EnsurePeriodEnd()
	if b.PeriodEnd.Before(b.PeriodStart) {
		return service.ValidationError("结束日期不能早于开始日期")
	}
	return nil
}

// Update 更新预算
// @Summary 更新预算
// @Description 修改周期或开始日期且未指定结束日期时，结束日期会重新推算
// @Tags 预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Param request body UpdateBudgetRequest true "更新内容"
// @Success 200 {object} Response{data=BudgetResponse} "更新成功"
// @Failure 400 {object} Response "参数错误"
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/budgets/{id} [put]
func (h *BudgetHandler) Update(c *gin.Context) {
	var b models.Budget
	if !loadOwned(c, &b, ownerOfBudget, "预算不存在") {
		return
	}

	var req UpdateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	recompute := false
	if req.Period != nil {
		period, err := models.ParseBudgetPeriod(*req.Period)
		if err != nil {
			BadRequest(c, err.Error())
			return
		}
		recompute = recompute || period != b.Period
		b.Period = period
	}
	if req.PeriodStart != nil {
		start, err := parseDate(*req.PeriodStart)
		if err != nil {
			BadRequest(c, "开始日期格式错误，应为: 2006-01-02")
			return
		}
		start = models.DateOf(start)
		recompute = recompute || !start.Equal(models.DateOf(b.PeriodStart))
		b.PeriodStart = start
	}
	switch {
	case req.PeriodEnd != nil && *req.PeriodEnd != "":
		end, err := parseDate(*req.PeriodEnd)
		if err != nil {
			BadRequest(c, "结束日期格式错误，应为: 2006-01-02")
			return
		}
		end = models.DateOf(end)
		b.PeriodEnd = &end
	case req.PeriodEnd != nil || recompute:
		b.PeriodEnd = nil
	}
	if req.CategoryID != nil {
		b.CategoryID = req.CategoryID
	}
	if req.Amount != nil {
		b.Amount = *req.Amount
	}
	if req.Description != nil {
		b.Description = *req.Description
	}
	if req.IsActive != nil {
		b.IsActive = *req.IsActive
	}
	if err := h.validate(&b); err != nil {
		RespondError(c, err, "更新失败")
		return
	}

	if err := database.DB.WithContext(c.Request.Context()).Save(&b).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "更新失败"))
		return
	}

	usage, err := h.svc.Budgets.Usage(c.Request.Context(), &b)
	if err != nil {
		RespondError(c, err, "计算预算使用情况失败")
		return
	}
	SuccessWithMessage(c, "更新成功", BudgetResponse{Budget: b, BudgetUsage: *usage})
}

// Delete 删除预算
// @Summary 删除预算
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Success 200 {object} Response "删除成功"
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/budgets/{id} [delete]
func (h *BudgetHandler) Delete(c *gin.Context) {
	var b models.Budget
	if !loadOwned(c, &b, ownerOfBudget, "预算不存在") {
		return
	}
	if err := database.DB.WithContext(c.Request.Context()).Delete(&b).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "删除失败"))
		return
	}
	SuccessWithMessage(c, "删除成功", nil)
}
