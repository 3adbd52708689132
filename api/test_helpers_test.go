package api

import (
	"context"
	"sync"
	"testing"
	"time"

	"budgettracker/config"
	"budgettracker/database"
	"budgettracker/events"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	oldDB := database.DB
	database.DB = gormDB
	return mock, func() {
		database.DB = oldDB
		sqlDB.Close()
	}
}

func setUserIDMiddleware(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	}
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*events.IncomeRecorded
	err  error
}

func (p *recordingPublisher) PublishIncome(_ context.Context, msg *events.IncomeRecorded) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []*events.IncomeRecorded {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*events.IncomeRecorded(nil), p.msgs...)
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Mode: "debug"},
		AI: config.AIConfig{
			BaseURL:        "http://127.0.0.1:1",
			DailyLimit:     3,
			MaxAttempts:    1,
			HTTPTimeout:    time.Second,
			RequestTimeout: 5 * time.Second,
		},
	}
}

// newTestServices 在 setupMockDB 之后调用，业务组件使用 mock 数据库
func newTestServices(t *testing.T) (*Services, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	return NewServices(testConfig(), database.DB, pub), pub
}

var txColumns = []string{"id", "user_id", "category_id", "type", "amount", "date", "note", "created_at", "updated_at", "deleted_at"}
