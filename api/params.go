package api

import (
	"errors"
	"strconv"
	"time"

	"budgettracker/database"
	"budgettracker/middleware"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// parseID 解析路径参数 id，失败时直接返回 400
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		BadRequest(c, "无效的ID")
		return 0, false
	}
	return uint(id), true
}

// parseDate 支持 2006-01-02 和 2006-01-02 15:04:05 两种格式（服务器本地时区）
func parseDate(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(dateTimeLayout, s, time.Local); err == nil {
		return t, nil
	}
	return time.ParseInLocation(dateLayout, s, time.Local)
}

// pageParams 分页参数，默认第 1 页每页 10 条，最多 100 条
func pageParams(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.Query("page"))
	size, _ = strconv.Atoi(c.Query("page_size"))
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 10
	}
	if size > 100 {
		size = 100
	}
	return page, size
}

// yearMonth 读取 year、month 查询参数，缺省为当前月份
func yearMonth(c *gin.Context, now time.Time) (time.Time, bool) {
	year, month := now.Year(), int(now.Month())
	if v := c.Query("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1970 || y > 9999 {
			BadRequest(c, "无效的年份")
			return time.Time{}, false
		}
		year = y
	}
	if v := c.Query("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			BadRequest(c, "无效的月份")
			return time.Time{}, false
		}
		month = m
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local), true
}

// loadOwned 按 id 读取记录：不存在返回 404，属于其他用户返回 403
func loadOwned[T any](c *gin.Context, dest *T, owner func(*T) uint, notFound string) bool {
	id, ok := parseID(c)
	if !ok {
		return false
	}
	if err := database.DB.WithContext(c.Request.Context()).First(dest, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, notFound)
		} else {
			InternalError(c, SafeErrorMessage(err, "查询失败"))
		}
		return false
	}
	if owner(dest) != middleware.GetCurrentUserID(c) {
		Forbidden(c, "无权访问该资源")
		return false
	}
	return true
}
