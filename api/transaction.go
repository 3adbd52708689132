package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"budgettracker/database"
	"budgettracker/events"
	"budgettracker/logger"
	"budgettracker/middleware"
	"budgettracker/models"
	"budgettracker/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionHandler 收支记录处理器
type TransactionHandler struct {
	svc *Services
}

// NewTransactionHandler 创建收支记录处理器
func NewTransactionHandler(svc *Services) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

// CreateTransactionRequest 创建收支记录请求
type CreateTransactionRequest struct {
	Type       string          `json:"type" binding:"required" example:"EXPENSE"`
	Amount     decimal.Decimal `json:"amount" swaggertype:"string" example:"35000"`
	CategoryID *uint           `json:"category_id" example:"1"`
	Date       string          `json:"date" binding:"required" example:"2024-10-15"`
	Note       string          `json:"note" binding:"max=255" example:"午餐"`
}

// UpdateTransactionRequest 更新收支记录请求，未传的字段保持不变
type UpdateTransactionRequest struct {
	Type       *string          `json:"type" example:"EXPENSE"`
	Amount     *decimal.Decimal `json:"amount" swaggertype:"string" example:"35000"`
	CategoryID *uint            `json:"category_id" example:"1"`
	Date       *string          `json:"date" example:"2024-10-15"`
	Note       *string          `json:"note" binding:"omitempty,max=255" example:"午餐"`
}

// MonthlyStatsResponse 月度统计
type MonthlyStatsResponse struct {
	Year             int    `json:"year" example:"2024"`
	Month            int    `json:"month" example:"10"`
	TotalIncome      string `json:"total_income" example:"8000000"`
	TotalExpense     string `json:"total_expense" example:"3500000"`
	Balance          string `json:"balance" example:"4500000"`
	SuggestedSaving  string `json:"suggested_saving" example:"1750000"`
	TransactionCount int    `json:"transaction_count" example:"42"`
}

// DailyPoint 每日收支
type DailyPoint struct {
	Day     int    `json:"day" example:"15"`
	Date    string `json:"date" example:"2024-10-15"`
	Income  string `json:"income" example:"0"`
	Expense string `json:"expense" example:"35000"`
}

// TodayStatsResponse 今日统计
type TodayStatsResponse struct {
	Date         string `json:"date" example:"2024-10-16"`
	TotalIncome  string `json:"total_income" example:"0"`
	TotalExpense string `json:"total_expense" example:"85000"`
	Count        int    `json:"count" example:"3"`
}

func (h *TransactionHandler) ledger() *database.TransactionStore {
	return database.NewTransactionStore(database.DB)
}

// checkCategory 类别必须存在且与交易类型一致
func checkCategory(categoryID *uint, typ models.TransactionType) error {
	if categoryID == nil {
		return nil
	}
	var cat models.Category
	if err := database.DB.First(&cat, *categoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return service.ValidationError("类别不存在")
		}
		return err
	}
	if cat.Type != typ {
		return service.ValidationError("类别与交易类型不匹配")
	}
	return nil
}

// publishIncome 收入入账后通知目标分配，失败只记录日志
func (h *TransactionHandler) publishIncome(ctx context.Context, tx *models.Transaction) {
	if tx.Type != models.TransactionIncome || h.svc.Events == nil {
		return
	}
	msg := events.NewIncomeRecorded(tx.UserID, tx.ID, tx.Amount)
	if err := h.svc.Events.PublishIncome(ctx, msg); err != nil {
		logger.FromContext(ctx, nil).Warn("发布收入事件失败",
			logger.FieldUserID, tx.UserID,
			"transaction_id", tx.ID,
			logger.FieldError, err)
	}
}

// Create 创建收支记录
// @Summary 创建收支记录
// @Description 创建一条收入或支出记录。支出不能超过本月收入；收入会自动分配到进行中的理财目标
// @Tags 收支记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTransactionRequest true "收支记录"
// @Success 200 {object} Response{data=models.Transaction} "创建成功"
// @Failure 400 {object} Response "参数错误或本月收入不足"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/transactions [post]
func (h *TransactionHandler) Create(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	ctx := c.Request.Context()

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	typ, err := models.ParseTransactionType(req.Type)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := models.ValidateAmount(req.Amount); err != nil {
		BadRequest(c, err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		BadRequest(c, "日期格式错误，应为: 2006-01-02")
		return
	}
	if err := checkCategory(req.CategoryID, typ); err != nil {
		RespondError(c, err, "创建失败")
		return
	}
	if err := h.svc.Validator.Validate(ctx, userID, typ, req.Amount, 0); err != nil {
		RespondError(c, err, "创建失败")
		return
	}

	tx := models.Transaction{
		UserID:     userID,
		CategoryID: req.CategoryID,
		Type:       typ,
		Amount:     req.Amount,
		Date:       date,
		Note:       strings.TrimSpace(req.Note),
	}
	if err := database.DB.WithContext(ctx).Create(&tx).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "创建收支记录失败"))
		return
	}

	h.publishIncome(ctx, &tx)
	SuccessWithMessage(c, "创建成功", tx)
}

// List 获取收支记录列表
// @Summary 获取收支记录列表
// @Description 分页获取当前用户的收支记录，可按类型筛选、按备注搜索
// @Tags 收支记录
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Param type query string false "INCOME 或 EXPENSE"
// @Param search query string false "备注关键字"
// @Success 200 {object} Response{data=PageResponse{list=[]models.Transaction}} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/transactions [get]
func (h *TransactionHandler) List(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	page, size := pageParams(c)

	query := database.DB.WithContext(c.Request.Context()).Model(&models.Transaction{}).Where("user_id = ?", userID)
	if t := c.Query("type"); t != "" {
		typ, err := models.ParseTransactionType(t)
		if err != nil {
			BadRequest(c, err.Error())
			return
		}
		query = query.Where("type = ?", typ)
	}
	if s := strings.TrimSpace(c.Query("search")); s != "" {
		query = query.Where("note LIKE ?", "%"+s+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	var list []models.Transaction
	if err := query.Preload("Category").Order("date DESC, id DESC").
		Offset((page - 1) * size).Limit(size).Find(&list).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	Success(c, PageResponse{Total: total, Page: page, PageSize: size, List: list})
}

func ownerOfTransaction(t *models.Transaction) uint { return t.UserID }

func (h *TransactionHandler) find(c *gin.Context) (*models.Transaction, bool) {
	var tx models.Transaction
	if !loadOwned(c, &tx, ownerOfTransaction, "记录不存在") {
		return nil, false
	}
	return &tx, true
}

// Get 获取单条收支记录
// @Summary 获取单条收支记录
// @Tags 收支记录
// @Produce json
// @Security BearerAuth
// @Param id path int true "记录ID"
// @Success 200 {object} Response{data=models.Transaction} "获取成功"
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/transactions/{id} [get]
func (h *TransactionHandler) Get(c *gin.Context) {
	tx, ok := h.find(c)
	if !ok {
		return
	}
	Success(c, tx)
}

// Update 更新收支记录
// @Summary 更新收支记录
// @Description 修改后的支出同样不能超过本月收入（不计入被修改的这条记录）
// @Tags 收支记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "记录ID"
// @Param request body UpdateTransactionRequest true "更新内容"
// @Success 200 {object} Response{data=models.Transaction} "更新成功"
// @Failure 400 {object} Response "参数错误或本月收入不足"
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/transactions/{id} [put]
func (h *TransactionHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	tx, ok := h.find(c)
	if !ok {
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	if req.Type != nil {
		typ, err := models.ParseTransactionType(*req.Type)
		if err != nil {
			BadRequest(c, err.Error())
			return
		}
		tx.Type = typ
	}
	if req.Amount != nil {
		if err := models.ValidateAmount(*req.Amount); err != nil {
			BadRequest(c, err.Error())
			return
		}
		tx.Amount = *req.Amount
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			BadRequest(c, "日期格式错误，应为: 2006-01-02")
			return
		}
		tx.Date = date
	}
	if req.Note != nil {
		tx.Note = strings.TrimSpace(*req.Note)
	}
	if req.CategoryID != nil {
		tx.CategoryID = req.CategoryID
	}
	tx.Category = nil

	if err := checkCategory(tx.CategoryID, tx.Type); err != nil {
		RespondError(c, err, "更新失败")
		return
	}
	if err := h.svc.Validator.Validate(ctx, tx.UserID, tx.Type, tx.Amount, tx.ID); err != nil {
		RespondError(c, err, "更新失败")
		return
	}

	if err := database.DB.WithContext(ctx).Model(tx).Select("type", "amount", "date", "note", "category_id").Updates(tx).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "更新失败"))
		return
	}

	h.publishIncome(ctx, tx)
	SuccessWithMessage(c, "更新成功", tx)
}

// Delete 删除收支记录
// @Summary 删除收支记录
// @Tags 收支记录
// @Produce json
// @Security BearerAuth
// @Param id path int true "记录ID"
// @Success 200 {object} Response "删除成功"
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/transactions/{id} [delete]
func (h *TransactionHandler) Delete(c *gin.Context) {
	tx, ok := h.find(c)
	if !ok {
		return
	}
	if err := database.DB.WithContext(c.Request.Context()).Delete(tx).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "删除失败"))
		return
	}
	SuccessWithMessage(c, "删除成功", nil)
}

var (
	savingRate = decimal.RequireFromString("0.3")
	incomeRate = decimal.RequireFromString("0.05")
)

// suggestedSaving 建议储蓄 = floor(max(0, 收入-支出) * 30% + 收入 * 5%)
func suggestedSaving(income, expense decimal.Decimal) decimal.Decimal {
	surplus := income.Sub(expense)
	if surplus.IsNegative() {
		surplus = decimal.Zero
	}
	return surplus.Mul(savingRate).Add(income.Mul(incomeRate)).Floor()
}

// MonthlyStats 月度收支统计
// @Summary 月度收支统计
// @Description 统计指定月份的收入、支出、结余和建议储蓄额，默认当前月份
// @Tags 收支记录
// @Produce json
// @Security BearerAuth
// @Param year query int false "年份"
// @Param month query int false "月份 1-12"
// @Success 200 {object} Response{data=MonthlyStatsResponse} "获取成功"
// @Router /api/v1/transactions/monthly-stats [get]
func (h *TransactionHandler) MonthlyStats(c *gin.Context) {
	month, ok := yearMonth(c, time.Now())
	if !ok {
		return
	}
	start, end := models.MonthRange(month)
	list, err := h.ledger().FindTransactions(c.Request.Context(), middleware.GetCurrentUserID(c),
		models.TransactionFilter{Start: start, End: end})
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	totals := service.SumTotals(list)
	Success(c, MonthlyStatsResponse{
		Year:             month.Year(),
		Month:            int(month.Month()),
		TotalIncome:      totals.Income.String(),
		TotalExpense:     totals.Expense.String(),
		Balance:          totals.Income.Sub(totals.Expense).String(),
		SuggestedSaving:  suggestedSaving(totals.Income, totals.Expense).String(),
		TransactionCount: len(list),
	})
}

// MonthlyChart 月度每日收支
// @Summary 月度每日收支
// @Description 返回指定月份每一天的收入和支出，用于绘制图表
// @Tags 收支记录
// @Produce json
// @Security BearerAuth
// @Param year query int false "年份"
// @Param month query int false "月份 1-12"
// @Success 200 {object} Response{data=[]DailyPoint} "获取成功"
// @Router /api/v1/transactions/monthly-chart [get]
func (h *TransactionHandler) MonthlyChart(c *gin.Context) {
	month, ok := yearMonth(c, time.Now())
	if !ok {
		return
	}
	start, end := models.MonthRange(month)
	list, err := h.ledger().FindTransactions(c.Request.Context(), middleware.GetCurrentUserID(c),
		models.TransactionFilter{Start: start, End: end})
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	days := models.DaysIn(month)
	income := make([]decimal.Decimal, days)
	expense := make([]decimal.Decimal, days)
	for _, tx := range list {
		i := tx.Date.In(time.Local).Day() - 1
		if tx.Type == models.TransactionIncome {
			income[i] = income[i].Add(tx.Amount)
		} else {
			expense[i] = expense[i].Add(tx.Amount)
		}
	}

	points := make([]DailyPoint, days)
	for i := range points {
		points[i] = DailyPoint{
			Day:     i + 1,
			Date:    start.AddDate(0, 0, i).Format(dateLayout),
			Income:  income[i].String(),
			Expense: expense[i].String(),
		}
	}
	Success(c, points)
}

func (h *TransactionHandler) today(c *gin.Context) ([]models.Transaction, time.Time, bool) {
	now := time.Now()
	list, err := h.ledger().FindTransactions(c.Request.Context(), middleware.GetCurrentUserID(c),
		models.TransactionFilter{Start: models.DateOf(now), End: models.EndOfDay(now)})
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return nil, now, false
	}
	return list, now, true
}

// Today 今日收支记录
// @Summary 今日收支记录
// @Tags 收支记录
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]models.Transaction} "获取成功"
// @Router /api/v1/transactions/today [get]
func (h *TransactionHandler) Today(c *gin.Context) {
	list, _, ok := h.today(c)
	if !ok {
		return
	}
	if list == nil {
		list = []models.Transaction{}
	}
	Success(c, list)
}

// TodayStats 今日收支统计
// @Summary 今日收支统计
// @Tags 收支记录
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=TodayStatsResponse} "获取成功"
// @Router /api/v1/transactions/today/stats [get]
func (h *TransactionHandler) TodayStats(c *gin.Context) {
	list, now, ok := h.today(c)
	if !ok {
		return
	}
	totals := service.SumTotals(list)
	Success(c, TodayStatsResponse{
		Date:         now.Format(dateLayout),
		TotalIncome:  totals.Income.String(),
		TotalExpense: totals.Expense.String(),
		Count:        len(list),
	})
}
