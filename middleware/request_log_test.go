package middleware

import (
	"net/http/httptest"
	"testing"

	"budgettracker/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen string
	router := gin.New()
	router.Use(RequestLogger())
	router.GET("/ping", func(c *gin.Context) {
		l := logger.FromContext(c.Request.Context(), nil)
		seen = l.Name()
		c.String(200, "pong")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))
	assert.Equal(t, 200, w.Code)
	assert.Len(t, w.Header().Get(HeaderRequestID), 36)
	assert.Equal(t, logger.ComponentHTTP, seen)

	// 透传客户端提供的 request id
	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
}
