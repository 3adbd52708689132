package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"budgettracker/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	calls   atomic.Int32
	content string
	err     error
	gate    chan struct{}
	prompts []string
	mu      sync.Mutex
}

func (s *stubCompleter) CompleteJSON(_ context.Context, _, userPrompt string) (string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.prompts = append(s.prompts, userPrompt)
	s.mu.Unlock()
	if s.gate != nil {
		<-s.gate
	}
	return s.content, s.err
}

type generatorFixture struct {
	gen       *SummaryGenerator
	ledger    *fakeLedger
	summaries *fakeSummaryStore
	now       time.Time
}

func newGeneratorFixture(ai Completer) *generatorFixture {
	now := time.Date(2024, 10, 16, 14, 30, 0, 0, time.Local)
	ledger := &fakeLedger{}
	ledger.add(1, models.TransactionIncome, 8000, time.Date(2024, 10, 1, 9, 0, 0, 0, time.Local))
	ledger.add(1, models.TransactionExpense, 2500, time.Date(2024, 10, 3, 12, 0, 0, 0, time.Local))
	ledger.add(1, models.TransactionExpense, 500, time.Date(2024, 10, 15, 19, 0, 0, 0, time.Local))
	ledger.add(1, models.TransactionExpense, 9999, time.Date(2024, 9, 30, 19, 0, 0, 0, time.Local))

	summaries := &fakeSummaryStore{}
	users := fakeUsers{1: {ID: 1, Name: "小王"}}
	gen := NewSummaryGenerator(ledger, users, NewDailyQuota(summaries, 3), ai)
	gen.now = fixedClock(now)
	return &generatorFixture{gen: gen, ledger: ledger, summaries: summaries, now: now}
}

func TestSummaryGenerator_Generate(t *testing.T) {
	ai := &stubCompleter{content: "```json\n" + validSummaryJSON + "\n```"}
	f := newGeneratorFixture(ai)

	res, err := f.gen.Generate(context.Background(), 1)
	require.NoError(t, err)

	s := res.Summary
	assert.Equal(t, "十月", s.Month)
	assert.Equal(t, "2024", s.Year)
	assert.Equal(t, "8000", s.TotalIncome)
	assert.Equal(t, "3000", s.TotalExpense)
	assert.Equal(t, "5000", s.Balance)
	assert.Equal(t, "本月收支平衡", s.AISummary)
	assert.Equal(t, "减少外卖\n坚持记账", s.AIRecommendation)
	assert.Equal(t, "支出集中在月初", s.AITrendAnalysis)
	assert.Equal(t, []string{"减少外卖", "坚持记账"}, res.AI.Recommendations)
	assert.Len(t, f.summaries.rows, 1)

	// 提示词中包含用户、月份和当月交易
	require.Len(t, ai.prompts, 1)
	prompt := ai.prompts[0]
	assert.Contains(t, prompt, "2024年十月")
	var req summaryRequest
	require.NoError(t, json.Unmarshal([]byte(prompt[strings.Index(prompt, "{"):]), &req))
	assert.Equal(t, "小王", req.User)
	assert.Len(t, req.Transactions, 3)
	assert.Equal(t, models.DefaultCategoryName, req.Transactions[0].Category)
	assert.Equal(t, int64(8000), req.TotalIncome)
	assert.Equal(t, int64(3000), req.TotalExpense)
}

func TestSummaryGenerator_QuotaExceededSkipsAI(t *testing.T) {
	ai := &stubCompleter{content: validSummaryJSON}
	f := newGeneratorFixture(ai)
	f.summaries.seed(1, f.now.Add(-2*time.Hour), 3)

	_, err := f.gen.Generate(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindRateLimited))
	assert.Equal(t, int32(0), ai.calls.Load())
	assert.Len(t, f.summaries.rows, 3)
}

func TestSummaryGenerator_ThirdOfDayAllowed(t *testing.T) {
	ai := &stubCompleter{content: validSummaryJSON}
	f := newGeneratorFixture(ai)
	f.summaries.seed(1, f.now.Add(-2*time.Hour), 2)

	_, err := f.gen.Generate(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, f.summaries.rows, 3)
}

func TestSummaryGenerator_MalformedNotPersisted(t *testing.T) {
	ai := &stubCompleter{content: `{"summary":"s","trend_analysis":"t"}`}
	f := newGeneratorFixture(ai)

	_, err := f.gen.Generate(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindMalformedAI))
	assert.Empty(t, f.summaries.rows)
}

func TestSummaryGenerator_RetryThroughHTTP(t *testing.T) {
	srv := newAIServer(t,
		aiReply{500, "internal"},
		aiReply{200, chatBody(validSummaryJSON)},
	)
	client, rec := newTestChatClient(srv.URL)
	f := newGeneratorFixture(client)

	res, err := f.gen.Generate(context.Background(), 1)
	require.NoError(t, err)
	assert.NotZero(t, res.Summary.ID)
	assert.Len(t, f.summaries.rows, 1)
	assert.Equal(t, int32(2), srv.hits.Load())
	assert.Len(t, rec.delays, 1)
}

func TestSummaryGenerator_UpstreamRateLimitNotPersisted(t *testing.T) {
	srv := newAIServer(t, aiReply{429, "slow down"})
	client, rec := newTestChatClient(srv.URL)
	f := newGeneratorFixture(client)

	_, err := f.gen.Generate(context.Background(), 1)
	assert.True(t, IsKind(err, KindRateLimited))
	assert.Equal(t, int32(1), srv.hits.Load())
	assert.Empty(t, rec.delays)
	assert.Empty(t, f.summaries.rows)
}

func TestSummaryGenerator_UnknownUser(t *testing.T) {
	ai := &stubCompleter{content: validSummaryJSON}
	f := newGeneratorFixture(ai)

	_, err := f.gen.Generate(context.Background(), 42)
	assert.True(t, IsKind(err, KindNotFound))
	assert.Equal(t, int32(0), ai.calls.Load())
}

func TestSummaryGenerator_ConcurrentCallsCollapse(t *testing.T) {
	ai := &stubCompleter{content: validSummaryJSON, gate: make(chan struct{})}
	f := newGeneratorFixture(ai)

	const n = 5
	var wg sync.WaitGroup
	results := make([]*GenerateResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.gen.Generate(context.Background(), 1)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	require.Eventually(t, func() bool { return ai.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(ai.gate)
	wg.Wait()

	assert.Equal(t, int32(1), ai.calls.Load())
	assert.Len(t, f.summaries.rows, 1)
}

func TestSummaryGenerator_CancelledCallerDoesNotFailOthers(t *testing.T) {
	ai := &stubCompleter{content: validSummaryJSON, gate: make(chan struct{})}
	f := newGeneratorFixture(ai)

	first, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.gen.Generate(first, 1)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return ai.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type outcome struct {
		res *GenerateResult
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := f.gen.Generate(context.Background(), 1)
		second <- outcome{res, err}
	}()
	time.Sleep(20 * time.Millisecond)

	// 第一个调用方放弃后立即返回，上游调用继续进行
	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(ai.gate)
	got := <-second
	require.NoError(t, got.err)
	require.NotNil(t, got.res)
	assert.Equal(t, "8000", got.res.Summary.TotalIncome)
	assert.Equal(t, int32(1), ai.calls.Load())
	assert.Len(t, f.summaries.rows, 1)
}

func TestSummaryGenerator_AlreadyCancelled(t *testing.T) {
	ai := &stubCompleter{content: validSummaryJSON}
	f := newGeneratorFixture(ai)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.gen.Generate(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), ai.calls.Load())
	assert.Empty(t, f.summaries.rows)
}

// blockingCompleter 阻塞到 ctx 结束，并报告上游调用的结束原因
type blockingCompleter struct {
	started chan struct{}
	stopped chan error
}

func newBlockingCompleter() *blockingCompleter {
	return &blockingCompleter{started: make(chan struct{}, 1), stopped: make(chan error, 1)}
}

func (b *blockingCompleter) CompleteJSON(ctx context.Context, _, _ string) (string, error) {
	b.started <- struct{}{}
	<-ctx.Done()
	b.stopped <- ctx.Err()
	return "", ctx.Err()
}

func TestSummaryGenerator_LastCallerLeavingCancelsUpstream(t *testing.T) {
	ai := newBlockingCompleter()
	f := newGeneratorFixture(ai)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.gen.Generate(ctx, 1)
		done <- err
	}()

	<-ai.started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	select {
	case err := <-ai.stopped:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("upstream call was not cancelled")
	}
	assert.Empty(t, f.summaries.rows)
}

func TestSummaryGenerator_SharedCallHasOwnDeadline(t *testing.T) {
	f := newGeneratorFixture(newBlockingCompleter())
	f.gen.WithTimeout(30 * time.Millisecond)

	_, err := f.gen.Generate(context.Background(), 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, f.summaries.rows)
}

func TestSummaryGenerator_Quota(t *testing.T) {
	f := newGeneratorFixture(&stubCompleter{})
	f.summaries.seed(1, f.now, 1)

	st, err := f.gen.Quota(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Used)
	assert.Equal(t, int64(2), st.Remaining)
}
