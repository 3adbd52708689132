package router

import (
	"net/http"
	"time"

	"budgettracker/api"
	"budgettracker/config"
	_ "budgettracker/docs"
	"budgettracker/middleware"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// 生成总结的频率限制（每个用户），独立于每日配额
const (
	generateMaxRequests = 5
	generateWindow      = time.Minute
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, svc *api.Services) *gin.Engine {
	// 设置运行模式
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	// CORS 中间件
	r.Use(CORSMiddleware())

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth())
	{
		categoryHandler := api.NewCategoryHandler()
		categories := v1.Group("/categories")
		{
			categories.GET("", categoryHandler.List)
			categories.POST("", categoryHandler.Create)
			categories.PUT("/:id", categoryHandler.Update)
			categories.DELETE("/:id", categoryHandler.Delete)
		}

		txHandler := api.NewTransactionHandler(svc)
		exportHandler := api.NewExportHandler()
		transactions := v1.Group("/transactions")
		{
			transactions.GET("", txHandler.List)
			transactions.POST("", txHandler.Create)
			transactions.GET("/monthly-stats", txHandler.MonthlyStats)
			transactions.GET("/monthly-chart", txHandler.MonthlyChart)
			transactions.GET("/today", txHandler.Today)
			transactions.GET("/today/stats", txHandler.TodayStats)
			transactions.GET("/export", exportHandler.Export)
			transactions.GET("/:id", txHandler.Get)
			transactions.PUT("/:id", txHandler.Update)
			transactions.DELETE("/:id", txHandler.Delete)
		}

		budgetHandler := api.NewBudgetHandler(svc)
		budgets := v1.Group("/budgets")
		{
			budgets.GET("", budgetHandler.List)
			budgets.POST("", budgetHandler.Create)
			budgets.GET("/active", budgetHandler.Active)
			budgets.GET("/:id", budgetHandler.Get)
			budgets.PUT("/:id", budgetHandler.Update)
			budgets.DELETE("/:id", budgetHandler.Delete)
		}

		goalHandler := api.NewGoalHandler(svc)
		goals := v1.Group("/goals")
		{
			goals.GET("", goalHandler.List)
			goals.POST("", goalHandler.Create)
			goals.GET("/:id", goalHandler.Get)
			goals.PUT("/:id", goalHandler.Update)
			goals.DELETE("/:id", goalHandler.Delete)
			goals.POST("/:id/add-amount", goalHandler.AddAmount)
			goals.POST("/:id/complete", goalHandler.Complete)
		}

		summaryHandler := api.NewSummaryHandler(svc)
		summaries := v1.Group("/monthly-summaries")
		{
			summaries.POST("/generate",
				middleware.RateLimit(generateMaxRequests, generateWindow, middleware.ByUserID, "生成请求过于频繁，请稍后再试"),
				summaryHandler.Generate)
			summaries.GET("/quota", summaryHandler.Quota)
			summaries.GET("", summaryHandler.List)
			summaries.GET("/:id", summaryHandler.Get)
			summaries.PUT("/:id", summaryHandler.Update)
			summaries.DELETE("/:id", summaryHandler.Delete)
			summaries.GET("/:id/pdf", summaryHandler.PDF)
			summaries.POST("/:id/email", summaryHandler.Email)
		}
	}

	return r
}

// CORSMiddleware CORS 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Request-ID, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
