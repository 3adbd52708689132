package api

import (
	"strings"

	"budgettracker/database"
	"budgettracker/models"

	"github.com/gin-gonic/gin"
)

// CategoryHandler 收支类别管理
type CategoryHandler struct{}

func NewCategoryHandler() *CategoryHandler {
	return &CategoryHandler{}
}

type CategoryCreateRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=50" example:"餐饮"`
	Type        string `json:"type" binding:"required" example:"EXPENSE"`
	Description string `json:"description" binding:"max=255"`
	Sort        int    `json:"sort"`
	Color       string `json:"color" binding:"omitempty,max=20" example:"#ef4444"`
}

type CategoryUpdateRequest struct {
	Name        string  `json:"name" binding:"omitempty,min=1,max=50"`
	Description *string `json:"description" binding:"omitempty,max=255"`
	Sort        *int    `json:"sort"`
	Color       *string `json:"color" binding:"omitempty,max=20"`
}

const defaultCategoryColor = "#64748b"

// List 列出类别
// @Summary 获取收支类别列表
// @Description 按排序值升序返回类别，可按类型筛选
// @Tags 收支类别
// @Produce json
// @Security BearerAuth
// @Param type query string false "INCOME 或 EXPENSE"
// @Success 200 {object} Response{data=[]models.Category} "获取成功"
// @Router /api/v1/categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	query := database.DB.WithContext(c.Request.Context()).Order("sort ASC, id ASC")
	if t := c.Query("type"); t != "" {
		typ, err := models.ParseTransactionType(t)
		if err != nil {
			BadRequest(c, err.Error())
			return
		}
		query = query.Where("type = ?", typ)
	}

	var list []models.Category
	if err := query.Find(&list).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	Success(c, list)
}

// Create 创建类别
// @Summary 创建收支类别
// @Tags 收支类别
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CategoryCreateRequest true "类别信息"
// @Success 200 {object} Response{data=models.Category} "创建成功"
// @Failure 400 {object} Response "参数错误或类别名称已存在"
// @Router /api/v1/categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	var req CategoryCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		BadRequest(c, "名称不能为空")
		return
	}
	typ, err := models.ParseTransactionType(req.Type)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	// 同一类型下名称唯一
	var count int64
	database.DB.Model(&models.Category{}).Where("name = ? AND type = ?", req.Name, typ).Count(&count)
	if count > 0 {
		BadRequest(c, "类别名称已存在")
		return
	}

	color := req.Color
	if color == "" {
		color = defaultCategoryColor
	}
	cat := models.Category{Name: req.Name, Type: typ, Description: req.Description, Sort: req.Sort, Color: color}
	if err := database.DB.Create(&cat).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "创建失败"))
		return
	}
	SuccessWithMessage(c, "创建成功", cat)
}

// Update 更新类别
// @Summary 更新收支类别
// @Tags 收支类别
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "类别ID"
// @Param request body CategoryUpdateRequest true "更新的类别信息"
// @Success 200 {object} Response{data=models.Category} "更新成功"
// @Failure 400 {object} Response "参数错误或类别名称已存在"
// @Failure 404 {object} Response "类别不存在"
// @Router /api/v1/categories/{id} [put]
func (h *CategoryHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var cat models.Category
	if err := database.DB.First(&cat, id).Error; err != nil {
		NotFound(c, "类别不存在")
		return
	}

	var req CategoryUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	updates := map[string]interface{}{}
	if name := strings.TrimSpace(req.Name); name != "" {
		var count int64
		database.DB.Model(&models.Category{}).Where("name = ? AND type = ? AND id != ?", name, cat.Type, cat.ID).Count(&count)
		if count > 0 {
			BadRequest(c, "类别名称已存在")
			return
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Sort != nil {
		updates["sort"] = *req.Sort
	}
	if req.Color != nil {
		color := *req.Color
		if color == "" {
			color = defaultCategoryColor
		}
		updates["color"] = color
	}
	if len(updates) == 0 {
		SuccessWithMessage(c, "无需更新", cat)
		return
	}

	if err := database.DB.Model(&cat).Updates(updates).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "更新失败"))
		return
	}
	database.DB.First(&cat, cat.ID)
	SuccessWithMessage(c, "更新成功", cat)
}

// Delete 软删除类别，已有交易保留原类别 ID，报告中显示为默认类别
// @Summary 删除收支类别
// @Tags 收支类别
// @Produce json
// @Security BearerAuth
// @Param id path int true "类别ID"
// @Success 200 {object} Response "删除成功"
// @Failure 404 {object} Response "类别不存在"
// @Router /api/v1/categories/{id} [delete]
func (h *CategoryHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var cat models.Category
	if err := database.DB.First(&cat, id).Error; err != nil {
		NotFound(c, "类别不存在")
		return
	}
	if err := database.DB.Delete(&cat).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "删除失败"))
		return
	}
	SuccessWithMessage(c, "删除成功", nil)
}
