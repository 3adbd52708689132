package middleware

import (
	"time"

	"budgettracker/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderRequestID 请求 ID 头
const HeaderRequestID = "X-Request-ID"

// RequestLogger 为每个请求分配 request_id，把带该字段的 logger 放入 context，结束时记录访问日志
func RequestLogger() gin.HandlerFunc {
	base := logger.Component(logger.ComponentHTTP)
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(HeaderRequestID, reqID)

		log := base.With(logger.FieldRequestID, reqID)
		c.Request = c.Request.WithContext(logger.IntoContext(c.Request.Context(), log))

		c.Next()

		args := []any{
			logger.FieldMethod, c.Request.Method,
			logger.FieldPath, c.FullPath(),
			logger.FieldStatus, c.Writer.Status(),
			logger.FieldDuration, time.Since(start).Milliseconds(),
			logger.FieldClientIP, c.ClientIP(),
		}
		if uid := GetCurrentUserID(c); uid != 0 {
			args = append(args, logger.FieldUserID, uid)
		}
		if len(c.Errors) > 0 {
			args = append(args, logger.FieldError, c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("request", args...)
		case status >= 400:
			log.Warn("request", args...)
		default:
			log.Info("request", args...)
		}
	}
}
