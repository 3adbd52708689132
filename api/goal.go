package api

import (
	"strings"
	"time"

	"budgettracker/database"
	"budgettracker/middleware"
	"budgettracker/models"
	"budgettracker/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// GoalHandler 理财目标处理器
type GoalHandler struct {
	svc *Services
}

// NewGoalHandler 创建理财目标处理器
func NewGoalHandler(svc *Services) *GoalHandler {
	return &GoalHandler{svc: svc}
}

// CreateGoalRequest 创建目标请求
type CreateGoalRequest struct {
	Name         string          `json:"name" binding:"required,max=100" example:"应急基金"`
	Description  string          `json:"description" binding:"max=255"`
	TargetAmount decimal.Decimal `json:"target_amount" swaggertype:"string" example:"10000000"`
	Deadline     string          `json:"deadline" example:"2025-12-31"`
	Type         string          `json:"type" example:"SAVINGS"`
	Icon         string          `json:"icon" binding:"max=16"`
}

// UpdateGoalRequest 更新目标请求，未传的字段保持不变
type UpdateGoalRequest struct {
	Name          *string          `json:"name" binding:"omitempty,max=100"`
	Description   *string          `json:"description" binding:"omitempty,max=255"`
	TargetAmount  *decimal.Decimal `json:"target_amount" swaggertype:"string"`
	CurrentAmount *decimal.Decimal `json:"current_amount" swaggertype:"string"`
	Deadline      *string          `json:"deadline"`
	Type          *string          `json:"type"`
	Status        *string          `json:"status"`
	Icon          *string          `json:"icon" binding:"omitempty,max=16"`
}

// AddAmountRequest 存入金额请求
type AddAmountRequest struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"500000"`
}

// GoalResponse 目标及进度
type GoalResponse struct {
	models.FinancialGoal
	Progress        string `json:"progress" example:"45.5"`
	RemainingAmount string `json:"remaining_amount" example:"5450000"`
}

func goalResponse(g *models.FinancialGoal) GoalResponse {
	return GoalResponse{
		FinancialGoal:   *g,
		Progress:        g.Progress().String(),
		RemainingAmount: g.Remaining().String(),
	}
}

func ownerOfGoal(g *models.FinancialGoal) uint { return g.UserID }

// parseDeadline 截止日期不能早于今天
func parseDeadline(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := parseDate(s)
	if err != nil {
		return nil, service.ValidationError("截止日期格式错误，应为: 2006-01-02")
	}
	d = models.DateOf(d)
	if d.Before(models.DateOf(time.Now())) {
		return nil, service.ValidationError("截止日期不能早于今天")
	}
	return &d, nil
}

// List 获取目标列表
// @Summary 获取理财目标列表
// @Tags 理财目标
// @Produce json
// @Security BearerAuth
// @Param status query string false "ACTIVE / COMPLETED / PAUSED / CANCELLED"
// @Success 200 {object} Response{data=[]GoalResponse} "获取成功"
// @Router /api/v1/goals [get]
func (h *GoalHandler) List(c *gin.Context) {
	query := database.DB.WithContext(c.Request.Context()).Where("user_id = ?", middleware.GetCurrentUserID(c))
	if s := c.Query("status"); s != "" {
		status, err := models.ParseGoalStatus(s)
		if err != nil {
			BadRequest(c, err.Error())
			return
		}
		query = query.Where("status = ?", status)
	}

	var list []models.FinancialGoal
	if err := query.Order("created_at DESC, id DESC").Find(&list).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	out := make([]GoalResponse, 0, len(list))
	for i := range list {
		out = append(out, goalResponse(&list[i]))
	}
	Success(c, out)
}

// Get 获取单个目标
// @Summary 获取理财目标
// @Tags 理财目标
// @Produce json
// @Security BearerAuth
// @Param id path int true "目标ID"
// @Success 200 {object} Response{data=GoalResponse} "获取成功"
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "目标不存在"
// @Router /api/v1/goals/{id} [get]
func (h *GoalHandler) Get(c *gin.Context) {
	var g models.FinancialGoal
	if !loadOwned(c, &g, ownerOfGoal, "目标不存在") {
		return
	}
	Success(c, goalResponse(&g))
}

// Create 创建目标
// @Summary 创建理财目标
// @Description 新目标状态为 ACTIVE、当前金额为 0；未指定图标时按类型使用默认图标
// @Tags 理财目标
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateGoalRequest true "目标信息"
// @Success 200 {object} Response{data=GoalResponse} "创建成功"
// @Failure 400 {object} Response "参数错误"
// @Router /api/v1/goals [post]
func (h *GoalHandler) Create(c *gin.Context) {
	var req CreateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		BadRequest(c, "名称不能为空")
		return
	}
	if !req.TargetAmount.IsPositive() {
		BadRequest(c, "目标金额必须大于 0")
		return
	}

	typ := models.GoalSavings
	if req.Type != "" {
		t, err := models.ParseGoalType(req.Type)
		if err != nil {
			BadRequest(c, err.Error())
			return
		}
		typ = t
	}
	deadline, err := parseDeadline(req.Deadline)
	if err != nil {
		RespondError(c, err, "创建失败")
		return
	}

	icon := strings.TrimSpace(req.Icon)
	if icon == "" {
		icon = typ.DefaultIcon()
	}

	g := models.FinancialGoal{
		UserID:        middleware.GetCurrentUserID(c),
		Name:          name,
		Description:   req.Description,
		TargetAmount:  req.TargetAmount,
		CurrentAmount: decimal.Zero,
		Deadline:      deadline,
		Type:          typ,
		Status:        models.GoalActive,
		Icon:          icon,
	}
	if err := database.DB.WithContext(c.Request.Context()).Create(&g).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "创建目标失败"))
		return
	}
	SuccessWithMessage(c, "创建成功", goalResponse(&g))
}

// Update 更新目标
// @Summary 更新理财目标
// @Description 当前金额达到目标金额时自动标记完成；状态改为 COMPLETED 时当前金额同步为目标金额
// @Tags 理财目标
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "目标ID"
// @Param request body UpdateGoalRequest true "更新内容"
// @Success 200 {object} Response{data=GoalResponse} "更新成功"
// @Failure 400 {object} Response "参数错误"
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "目标不存在"
// @Router /api/v1/goals/{id} [put]
func (h *GoalHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req UpdateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	g, err := h.svc.Goals.Update(c.Request.Context(), middleware.GetCurrentUserID(c), id, func(g *models.FinancialGoal) error {
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return service.ValidationError("名称不能为空")
			}
			g.Name = name
		}
		if req.Description != nil {
			g.Description = *req.Description
		}
		if req.TargetAmount != nil {
			g.TargetAmount = *req.TargetAmount
		}
		if req.CurrentAmount != nil {
			g.CurrentAmount = *req.CurrentAmount
		}
		if req.Deadline != nil {
			d, err := parseDeadline(*req.Deadline)
			if err != nil {
				return err
			}
			g.Deadline = d
		}
		if req.Type != nil {
			t, err := models.ParseGoalType(*req.Type)
			if err != nil {
				return service.ValidationError(err.Error())
			}
			g.Type = t
		}
		if req.Status != nil {
			st, err := models.ParseGoalStatus(*req.Status)
			if err != nil {
				return service.ValidationError(err.Error())
			}
			g.Status = st
		}
		if req.Icon != nil {
			g.Icon = strings.TrimSpace(*req.Icon)
			if g.Icon == "" {
				g.Icon = g.Type.DefaultIcon()
			}
		}
		return nil
	})
	if err != nil {
		RespondError(c, err, "更新失败")
		return
	}
	SuccessWithMessage(c, "更新成功", goalResponse(g))
}

// Delete 删除目标
// @Summary 删除理财目标
// @Tags 理财目标
// @Produce json
// @Security BearerAuth
// @Param id path int true "目标ID"
// @Success 200 {object} Response "删除成功"
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "目标不存在"
// @Router /api/v1/goals/{id} [delete]
func (h *GoalHandler) Delete(c *gin.Context) {
	var g models.FinancialGoal
	if !loadOwned(c, &g, ownerOfGoal, "目标不存在") {
		return
	}
	if err := database.DB.WithContext(c.Request.Context()).Delete(&g).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "删除失败"))
		return
	}
	SuccessWithMessage(c, "删除成功", nil)
}

// AddAmount 向目标存入金额
// @Summary 向理财目标存入金额
// @Description 只有进行中的目标可以存入；达到目标金额时封顶并自动完成
// @Tags 理财目标
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "目标ID"
// @Param request body AddAmountRequest true "存入金额"
// @Success 200 {object} Response{data=GoalResponse} "存入成功"
// @Failure 400 {object} Response "金额无效或目标不是进行中"
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "目标不存在"
// @Router /api/v1/goals/{id}/add-amount [post]
func (h *GoalHandler) AddAmount(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req AddAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	g, err := h.svc.Goals.AddAmount(c.Request.Context(), middleware.GetCurrentUserID(c), id, req.Amount)
	if err != nil {
		RespondError(c, err, "存入失败")
		return
	}
	SuccessWithMessage(c, "存入成功", goalResponse(g))
}

// Complete 标记目标完成
// @Summary 标记理财目标完成
// @Tags 理财目标
// @Produce json
// @Security BearerAuth
// @Param id path int true "目标ID"
// @Success 200 {object} Response{data=GoalResponse} "操作成功"
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "目标不存在"
// @Router /api/v1/goals/{id}/complete [post]
func (h *GoalHandler) Complete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	g, err := h.svc.Goals.Complete(c.Request.Context(), middleware.GetCurrentUserID(c), id)
	if err != nil {
		RespondError(c, err, "操作失败")
		return
	}
	SuccessWithMessage(c, "操作成功", goalResponse(g))
}
