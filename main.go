package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"budgettracker/api"
	"budgettracker/config"
	"budgettracker/database"
	"budgettracker/events"
	"budgettracker/logger"
	"budgettracker/middleware"
	"budgettracker/router"
	"budgettracker/service"

	"github.com/joho/godotenv"
)

// @title 记账与理财 API
// @version 1.0
// @description 收支记录、预算、理财目标和 AI 月度总结
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

var (
	configFile  string
	port        string
	showVersion bool
	tokenFor    uint
)

func init() {
	flag.StringVar(&configFile, "config", "", "外部配置文件路径（可选）")
	flag.StringVar(&configFile, "c", "", "外部配置文件路径（简写）")
	flag.StringVar(&port, "port", "", "监听端口，如: 8080 或 :8080")
	flag.StringVar(&port, "p", "", "监听端口（简写）")
	flag.BoolVar(&showVersion, "version", false, "显示版本信息")
	flag.BoolVar(&showVersion, "v", false, "显示版本信息（简写）")
	flag.UintVar(&tokenFor, "token", 0, "为指定用户 ID 签发访问 token 后退出（调试用）")
}

const shutdownTimeout = 15 * time.Second

func main() {
	flag.Parse()

	if showVersion {
		fmt.Println("记账与理财服务 v1.0.0")
		return
	}

	// .env 不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("读取 .env 失败: %v", err)
	}

	// 加载配置（内置配置 + 可选的外部配置覆盖）
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 命令行参数覆盖端口配置
	if port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Server.Port = port
	}

	appLog := logger.Init(cfg.Log, cfg.Server.Mode)
	config.PrintConfig()

	middleware.InitJWT(cfg)
	if tokenFor > 0 {
		token, err := middleware.GenerateToken(tokenFor, "", cfg.JWT.ExpireTime)
		if err != nil {
			log.Fatalf("签发 token 失败: %v", err)
		}
		fmt.Println(token)
		return
	}

	if err := database.Init(cfg); err != nil {
		log.Fatalf("数据库初始化失败: %v", err)
	}

	bus, err := events.New(cfg.Events)
	if err != nil {
		log.Fatalf("事件总线初始化失败: %v", err)
	}

	svc := api.NewServices(cfg, database.DB, bus)

	// 收入事件驱动目标自动分配
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		err := bus.Consume(consumerCtx, func(ctx context.Context, msg *events.IncomeRecorded) error {
			_, err := svc.Goals.AllocateIncome(ctx, msg.UserID, msg.Amount)
			return err
		})
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, events.ErrClosed) {
			appLog.Error("收入事件消费已停止", logger.FieldError, err)
		}
	}()

	var scheduler *service.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = service.NewScheduler(database.NewBudgetStore(database.DB))
		if err := scheduler.Register(cfg.Scheduler.BudgetSweepSpec); err != nil {
			log.Fatalf("定时任务初始化失败: %v", err)
		}
		scheduler.SweepBudgets(context.Background())
		scheduler.Start()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router.SetupRouter(cfg, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.Info("服务已启动",
			"addr", cfg.Server.Port,
			"swagger", fmt.Sprintf("http://localhost%s/swagger/index.html", cfg.Server.Port),
			"api", fmt.Sprintf("http://localhost%s/api/v1/", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务器启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLog.Error("HTTP 服务关闭失败", logger.FieldError, err)
	}
	if scheduler != nil {
		scheduler.Stop(ctx)
	}

	// 关闭总线后等待已入队的事件处理完
	if err := bus.Close(); err != nil {
		appLog.Warn("关闭事件总线失败", logger.FieldError, err)
	}
	select {
	case <-consumerDone:
	case <-ctx.Done():
		stopConsumer()
		appLog.Warn("等待收入事件处理超时")
	}

	if sqlDB, err := database.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	appLog.Info("服务已退出")
}
