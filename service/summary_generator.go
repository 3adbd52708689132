package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"budgettracker/logger"
	"budgettracker/models"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Completer 生成式文本服务
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// GenerateResult 生成结果
type GenerateResult struct {
	Summary *models.MonthlySummary `json:"summary"`
	AI      *SummaryPayload        `json:"ai"`
}

// SummaryGenerator 月度总结生成：汇总当月收支、检查每日配额、调用 AI、校验并保存
type SummaryGenerator struct {
	ledger LedgerStore
	users  UserStore
	quota  *DailyQuota
	ai     Completer
	now    func() time.Time
	log    *logger.Logger

	// 合并后的生成调用只在所有调用方都放弃后取消，另受 timeout 限制
	timeout time.Duration
	group   singleflight.Group
	mu      sync.Mutex
	flights map[string]*flight
}

// flight 一次进行中的合并调用
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

const defaultGenerateTimeout = 3 * time.Minute

// NewSummaryGenerator 创建月度总结生成器
func NewSummaryGenerator(ledger LedgerStore, users UserStore, quota *DailyQuota, ai Completer) *SummaryGenerator {
	return &SummaryGenerator{
		ledger:  ledger,
		users:   users,
		quota:   quota,
		ai:      ai,
		now:     time.Now,
		timeout: defaultGenerateTimeout,
		flights: make(map[string]*flight),
		log:     logger.Component(logger.ComponentSummary),
	}
}

// WithTimeout 设置单次生成的最长耗时
func (g *SummaryGenerator) WithTimeout(d time.Duration) *SummaryGenerator {
	if d > 0 {
		g.timeout = d
	}
	return g
}

// Quota 当前用户的配额情况
func (g *SummaryGenerator) Quota(ctx context.Context, userID uint) (*QuotaStatus, error) {
	return g.quota.Status(ctx, userID, g.now())
}

// Generate 同一用户并发的生成请求合并为一次上游调用。
// 每个调用方只等待自己的 ctx；某个调用方离开不影响其它调用方，全部离开后才取消上游调用。
func (g *SummaryGenerator) Generate(ctx context.Context, userID uint) (*GenerateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := strconv.FormatUint(uint64(userID), 10)
	f, ch := g.join(ctx, key, userID)

	select {
	case <-ctx.Done():
		g.leave(f, true)
		logger.FromContext(ctx, g.log).Warn("调用方已放弃等待生成结果", logger.FieldUserID, userID, logger.FieldError, ctx.Err())
		return nil, ctx.Err()
	case r := <-ch:
		g.leave(f, false)
		if r.Shared {
			logger.FromContext(ctx, g.log).Info("合并了并发的生成请求", logger.FieldUserID, userID)
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*GenerateResult), nil
	}
}

// join 加入进行中的调用，没有则发起新调用。持锁调用 DoChan 保证 flights 与 group 一一对应。
func (g *SummaryGenerator) join(ctx context.Context, key string, userID uint) (*flight, <-chan singleflight.Result) {
	g.mu.Lock()
	defer g.mu.Unlock()

	f, ok := g.flights[key]
	if !ok {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		f = &flight{ctx: runCtx, cancel: cancel}
		g.flights[key] = f
	}
	f.waiters++

	ch := g.group.DoChan(key, func() (interface{}, error) {
		defer g.finish(key, f)
		return g.generate(f.ctx, userID)
	})
	return f, ch
}

func (g *SummaryGenerator) finish(key string, f *flight) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.flights[key] == f {
		delete(g.flights, key)
	}
	g.group.Forget(key)
	f.cancel()
}

// leave 调用方离开；最后一个因取消而离开的调用方会取消上游调用
func (g *SummaryGenerator) leave(f *flight, abandoned bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	f.waiters--
	if abandoned && f.waiters == 0 {
		f.cancel()
	}
}

func (g *SummaryGenerator) generate(ctx context.Context, userID uint) (*GenerateResult, error) {
	log := logger.FromContext(ctx, g.log).With(logger.FieldUserID, userID)
	now := g.now()

	used, err := g.quota.Check(ctx, userID, now)
	if err != nil {
		log.Warn("今日生成次数已达上限", "used", used, "limit", g.quota.Limit())
		return nil, err
	}
	log.Info("开始生成月度总结", "nth_today", used+1, "limit", g.quota.Limit())

	user, err := g.users.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("用户不存在")
		}
		return nil, err
	}

	start, end := models.MonthRange(now)
	list, err := g.ledger.FindTransactions(ctx, userID, models.TransactionFilter{Start: start, End: end})
	if err != nil {
		return nil, err
	}

	totals := SumTotals(list)
	income, expense := totals.Income.IntPart(), totals.Expense.IntPart()

	prompt, err := newSummaryRequest(user, now, list, income, expense).userPrompt()
	if err != nil {
		return nil, err
	}

	content, err := g.ai.CompleteJSON(ctx, summarySystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	payload, err := ParseSummaryPayload(content, income, expense)
	if err != nil {
		log.Warn("AI 返回内容校验失败", logger.FieldError, err)
		return nil, err
	}

	summary := &models.MonthlySummary{
		UserID:           userID,
		Month:            models.MonthName(now.Month()),
		Year:             strconv.Itoa(now.Year()),
		TotalIncome:      strconv.FormatInt(income, 10),
		TotalExpense:     strconv.FormatInt(expense, 10),
		Balance:          strconv.FormatInt(income-expense, 10),
		AISummary:        payload.Summary,
		AIRecommendation: strings.Join(payload.Recommendations, "\n"),
		AITrendAnalysis:  payload.TrendAnalysis,
	}
	if err := g.quota.Commit(ctx, summary, now); err != nil {
		return nil, err
	}

	log.Info("月度总结生成成功", "summary_id", summary.ID, "transactions", len(list))
	return &GenerateResult{Summary: summary, AI: payload}, nil
}
