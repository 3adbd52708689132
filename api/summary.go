package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"budgettracker/database"
	"budgettracker/logger"
	"budgettracker/middleware"
	"budgettracker/models"
	"budgettracker/service"

	"github.com/gin-gonic/gin"
)

// statusClientClosedRequest 客户端在响应前断开连接（nginx 约定的 499）
const statusClientClosedRequest = 499

// SummaryHandler AI 月度总结处理器
type SummaryHandler struct {
	svc *Services
}

// NewSummaryHandler 创建月度总结处理器
func NewSummaryHandler(svc *Services) *SummaryHandler {
	return &SummaryHandler{svc: svc}
}

// SummaryResponse 月度总结，建议按行拆分为数组
type SummaryResponse struct {
	models.MonthlySummary
	Recommendations []string `json:"recommendations"`
}

// UpdateSummaryRequest 修改总结内容
type UpdateSummaryRequest struct {
	AISummary       *string  `json:"ai_summary"`
	Recommendations []string `json:"recommendations"`
	AITrendAnalysis *string  `json:"ai_trend_analysis"`
}

// EmailSummaryRequest 发送总结邮件，未指定邮箱时发往账户邮箱
type EmailSummaryRequest struct {
	Email string `json:"email" binding:"omitempty,email" example:"me@example.com"`
}

func summaryResponse(s *models.MonthlySummary) SummaryResponse {
	recs := s.Recommendations()
	if recs == nil {
		recs = []string{}
	}
	return SummaryResponse{MonthlySummary: *s, Recommendations: recs}
}

func ownerOfSummary(s *models.MonthlySummary) uint { return s.UserID }

// Generate 生成本月财务总结
// @Summary 生成 AI 月度总结
// @Description 汇总本月收支后调用 AI 生成总结、建议和趋势分析。每个用户每天最多生成的次数由配置决定（默认 3 次）
// @Tags 月度总结
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=service.GenerateResult} "生成成功"
// @Failure 404 {object} Response "用户不存在"
// @Failure 422 {object} Response "AI 返回内容不完整"
// @Failure 429 {object} Response "今日次数已用完或 AI 服务限流"
// @Failure 502 {object} Response "AI 服务调用失败"
// @Failure 503 {object} Response "AI 服务未配置"
// @Failure 504 {object} Response "生成超时"
// @Router /api/v1/monthly-summaries/generate [post]
func (h *SummaryHandler) Generate(c *gin.Context) {
	ctx := c.Request.Context()
	if d := h.svc.Config.AI.RequestTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	res, err := h.svc.Summaries.Generate(ctx, middleware.GetCurrentUserID(c))
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			logger.FromContext(ctx, nil).Warn("生成月度总结超时", logger.FieldError, err)
			Error(c, http.StatusGatewayTimeout, "生成超时，请稍后再试")
		case errors.Is(err, context.Canceled):
			// 客户端已断开，状态码仅用于访问日志
			logger.FromContext(ctx, nil).Warn("客户端取消了生成请求", logger.FieldError, err)
			Error(c, statusClientClosedRequest, "请求已取消")
		default:
			RespondError(c, err, "生成月度总结失败")
		}
		return
	}
	SuccessWithMessage(c, "生成成功", res)
}

// Quota 今日剩余生成次数
// @Summary 查询今日生成次数
// @Tags 月度总结
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=service.QuotaStatus} "获取成功"
// @Router /api/v1/monthly-summaries/quota [get]
func (h *SummaryHandler) Quota(c *gin.Context) {
	st, err := h.svc.Summaries.Quota(c.Request.Context(), middleware.GetCurrentUserID(c))
	if err != nil {
		RespondError(c, err, "查询失败")
		return
	}
	Success(c, st)
}

// List 历史总结
// @Summary 获取月度总结列表
// @Tags 月度总结
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} Response{data=PageResponse{list=[]SummaryResponse}} "获取成功"
// @Router /api/v1/monthly-summaries [get]
func (h *SummaryHandler) List(c *gin.Context) {
	page, size := pageParams(c)
	query := database.DB.WithContext(c.Request.Context()).Model(&models.MonthlySummary{}).
		Where("user_id = ?", middleware.GetCurrentUserID(c))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	var list []models.MonthlySummary
	if err := query.Order("created_at DESC, id DESC").Offset((page - 1) * size).Limit(size).Find(&list).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	out := make([]SummaryResponse, 0, len(list))
	for i := range list {
		out = append(out, summaryResponse(&list[i]))
	}
	Success(c, PageResponse{Total: total, Page: page, PageSize: size, List: out})
}

// Get 获取单条总结
// @Summary 获取月度总结
// @Tags 月度总结
// @Produce json
// @Security BearerAuth
// @Param id path int true "总结ID"
// @Success 200 {object} Response{data=SummaryResponse} "获取成功"
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "总结不存在"
// @Router /api/v1/monthly-summaries/{id} [get]
func (h *SummaryHandler) Get(c *gin.Context) {
	var s models.MonthlySummary
	if !loadOwned(c, &s, ownerOfSummary, "总结不存在") {
		return
	}
	Success(c, summaryResponse(&s))
}

// Update 修改总结内容
// @Summary 修改月度总结
// @Description 只能修改 AI 生成的文字内容，收支数据保持不变
// @Tags 月度总结
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "总结ID"
// @Param request body UpdateSummaryRequest true "修改内容"
// @Success 200 {object} Response{data=SummaryResponse} "更新成功"
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "总结不存在"
// @Router /api/v1/monthly-summaries/{id} [put]
func (h *SummaryHandler) Update(c *gin.Context) {
	var s models.MonthlySummary
	if !loadOwned(c, &s, ownerOfSummary, "总结不存在") {
		return
	}

	var req UpdateSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	updates := map[string]interface{}{}
	if req.AISummary != nil {
		updates["ai_summary"] = strings.TrimSpace(*req.AISummary)
	}
	if req.Recommendations != nil {
		var lines []string
		for _, r := range req.Recommendations {
			if r = strings.TrimSpace(r); r != "" {
				lines = append(lines, r)
			}
		}
		updates["ai_recommendation"] = strings.Join(lines, "\n")
	}
	if req.AITrendAnalysis != nil {
		updates["ai_trend_analysis"] = strings.TrimSpace(*req.AITrendAnalysis)
	}
	if len(updates) == 0 {
		SuccessWithMessage(c, "无需更新", summaryResponse(&s))
		return
	}

	if err := database.DB.WithContext(c.Request.Context()).Model(&s).Updates(updates).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "更新失败"))
		return
	}
	if err := database.DB.WithContext(c.Request.Context()).First(&s, s.ID).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "更新后读取失败"))
		return
	}
	SuccessWithMessage(c, "更新成功", summaryResponse(&s))
}

// Delete 删除总结（删除后当天的生成次数随之释放）
// @Summary 删除月度总结
// @Tags 月度总结
// @Produce json
// @Security BearerAuth
// @Param id path int true "总结ID"
// @Success 200 {object} Response "删除成功"
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "总结不存在"
// @Router /api/v1/monthly-summaries/{id} [delete]
func (h *SummaryHandler) Delete(c *gin.Context) {
	var s models.MonthlySummary
	if !loadOwned(c, &s, ownerOfSummary, "总结不存在") {
		return
	}
	if err := database.DB.WithContext(c.Request.Context()).Delete(&s).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "删除失败"))
		return
	}
	SuccessWithMessage(c, "删除成功", nil)
}

func (h *SummaryHandler) render(c *gin.Context, s *models.MonthlySummary) ([]byte, *models.User, bool) {
	user, err := database.NewUserStore(database.DB).FindUser(c.Request.Context(), s.UserID)
	if err != nil {
		RespondError(c, err, "查询用户失败")
		return nil, nil, false
	}
	pdf, err := service.RenderSummaryPDF(s, user.DisplayName(), h.svc.Config.PDF)
	if err != nil {
		logger.FromContext(c.Request.Context(), nil).Error("生成 PDF 失败", logger.FieldError, err)
		InternalError(c, "生成 PDF 失败")
		return nil, nil, false
	}
	return pdf, user, true
}

// PDF 导出 PDF
// @Summary 导出月度总结 PDF
// @Tags 月度总结
// @Produce application/pdf
// @Security BearerAuth
// @Param id path int true "总结ID"
// @Success 200 {file} file "PDF 文件"
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "总结不存在"
// @Router /api/v1/monthly-summaries/{id}/pdf [get]
func (h *SummaryHandler) PDF(c *gin.Context) {
	var s models.MonthlySummary
	if !loadOwned(c, &s, ownerOfSummary, "总结不存在") {
		return
	}
	pdf, _, ok := h.render(c, &s)
	if !ok {
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", service.SummaryFileName(&s)))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// Email 发送总结邮件
// @Summary 通过邮件发送月度总结
// @Description 邮件正文为总结内容，附带 PDF 报告
// @Tags 月度总结
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "总结ID"
// @Param request body EmailSummaryRequest false "收件邮箱"
// @Success 200 {object} Response "发送成功"
// @Failure 400 {object} Response "没有可用的收件邮箱"
// @Failure 403 {object} Response "无权访问"
// @Failure 502 {object} Response "发送失败"
// @Failure 503 {object} Response "邮件服务未启用"
// @Router /api/v1/monthly-summaries/{id}/email [post]
func (h *SummaryHandler) Email(c *gin.Context) {
	var s models.MonthlySummary
	if !loadOwned(c, &s, ownerOfSummary, "总结不存在") {
		return
	}

	var req EmailSummaryRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, SafeErrorMessage(err, "参数错误"))
			return
		}
	}
	if !h.svc.Email.Enabled() {
		RespondError(c, service.ConfigurationError("邮件服务未启用"), "发送失败")
		return
	}

	pdf, user, ok := h.render(c, &s)
	if !ok {
		return
	}
	to := req.Email
	if to == "" {
		to = user.Email
	}

	if err := h.svc.Email.SendSummaryReport(to, user.DisplayName(), &s, pdf); err != nil {
		RespondError(c, err, "发送失败")
		return
	}
	SuccessWithMessage(c, "发送成功", gin.H{"email": to})
}
