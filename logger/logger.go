// Package logger 基于 log/slog 的结构化日志，按组件区分来源
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"budgettracker/config"
)

// 常用字段名
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldUserID    = "user_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldClientIP  = "client_ip"
	FieldError     = "error"
	FieldAttempt   = "attempt"
)

// 组件名
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentDatabase  = "database"
	ComponentSummary   = "summary"
	ComponentAI        = "ai"
	ComponentGoal      = "goal"
	ComponentEvents    = "events"
	ComponentScheduler = "scheduler"
	ComponentEmail     = "email"
)

// Logger 带组件信息的 slog 包装
type Logger struct {
	*slog.Logger
	component string
}

type ctxKey struct{}

// Init 根据配置设置全局默认 logger
func Init(cfg config.LogConfig, mode string) *Logger {
	return initWithWriter(cfg, mode, os.Stdout)
}

func initWithWriter(cfg config.LogConfig, mode string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "json" || (cfg.Format == "" && mode == "release") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	l := &Logger{Logger: slog.New(handler), component: ComponentApp}
	slog.SetDefault(l.Logger)
	return l
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component 基于默认 logger 创建指定组件的 logger
func Component(name string) *Logger {
	return &Logger{
		Logger:    slog.Default().With(FieldComponent, name),
		component: name,
	}
}

// With 追加字段
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), component: l.component}
}

// Name 组件名
func (l *Logger) Name() string {
	return l.component
}

// IntoContext 将 logger 放入 context（请求级别携带 request_id）
func IntoContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext 取出请求 logger，没有时返回 fallback
func FromContext(ctx context.Context, fallback *Logger) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
			if fallback != nil && fallback.component != l.component {
				return l.With(FieldComponent, fallback.component)
			}
			return l
		}
	}
	if fallback != nil {
		return fallback
	}
	return Component(ComponentApp)
}
