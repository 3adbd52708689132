package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"budgettracker/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSummaryJSON = `{"summary":"本月收支平衡","recommendations":["减少外卖","坚持记账"],"trend_analysis":"支出集中在月初"}`

func chatBody(content string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

// aiServer 按顺序返回预设的状态码和响应体，超出部分重复最后一个
type aiServer struct {
	*httptest.Server
	hits      atomic.Int32
	lastBody  atomic.Value
	lastAuth  atomic.Value
	lastTitle atomic.Value
}

type aiReply struct {
	status int
	body   string
}

func newAIServer(t *testing.T, replies ...aiReply) *aiServer {
	s := &aiServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(s.hits.Add(1))
		body, _ := io.ReadAll(r.Body)
		s.lastBody.Store(string(body))
		s.lastAuth.Store(r.Header.Get("Authorization"))
		s.lastTitle.Store(r.Header.Get("X-Title"))
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		reply := replies[len(replies)-1]
		if n <= len(replies) {
			reply = replies[n-1]
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(reply.status)
		_, _ = io.WriteString(w, reply.body)
	}))
	t.Cleanup(s.Close)
	return s
}

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func newTestChatClient(baseURL string) (*ChatClient, *sleepRecorder) {
	c := NewChatClient(config.AIConfig{
		BaseURL:     baseURL + "/v1",
		APIKey:      "sk-test",
		Model:       "test-model",
		Title:       "Budget Tracker",
		Referer:     "http://localhost",
		MaxAttempts: 2,
		BackoffBase: 5 * time.Second,
		HTTPTimeout: 5 * time.Second,
	})
	rec := &sleepRecorder{}
	c.sleep = rec.sleep
	return c, rec
}

func TestChatClient_Success(t *testing.T) {
	srv := newAIServer(t, aiReply{200, chatBody(validSummaryJSON)})
	c, rec := newTestChatClient(srv.URL)

	content, err := c.CompleteJSON(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, validSummaryJSON, content)
	assert.Equal(t, int32(1), srv.hits.Load())
	assert.Empty(t, rec.delays)

	assert.Equal(t, "Bearer sk-test", srv.lastAuth.Load())
	assert.Equal(t, "Budget Tracker", srv.lastTitle.Load())

	var sent chatRequest
	require.NoError(t, json.Unmarshal([]byte(srv.lastBody.Load().(string)), &sent))
	assert.Equal(t, "test-model", sent.Model)
	require.Len(t, sent.Messages, 2)
	assert.Equal(t, "system", sent.Messages[0].Role)
	assert.Equal(t, "user", sent.Messages[1].Role)
	require.NotNil(t, sent.ResponseFormat)
	assert.Equal(t, "json_object", sent.ResponseFormat.Type)
}

func TestChatClient_RetriesServerError(t *testing.T) {
	srv := newAIServer(t,
		aiReply{500, `{"error":"boom"}`},
		aiReply{200, chatBody(validSummaryJSON)},
	)
	c, rec := newTestChatClient(srv.URL)

	content, err := c.CompleteJSON(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, validSummaryJSON, content)
	assert.Equal(t, int32(2), srv.hits.Load())
	assert.Equal(t, []time.Duration{5 * time.Second}, rec.delays)
}

func TestChatClient_RateLimitedNotRetried(t *testing.T) {
	srv := newAIServer(t, aiReply{429, `{"error":{"message":"rate limited"}}`})
	c, rec := newTestChatClient(srv.URL)

	_, err := c.CompleteJSON(context.Background(), "sys", "user")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindRateLimited))
	assert.Equal(t, int32(1), srv.hits.Load())
	assert.Empty(t, rec.delays)
}

func TestChatClient_ClientErrorsNotRetried(t *testing.T) {
	for _, code := range []int{400, 401, 403} {
		t.Run(fmt.Sprint(code), func(t *testing.T) {
			srv := newAIServer(t, aiReply{code, `{"error":"denied"}`})
			c, rec := newTestChatClient(srv.URL)

			_, err := c.CompleteJSON(context.Background(), "sys", "user")
			require.Error(t, err)
			assert.True(t, IsKind(err, KindUpstream))
			assert.Equal(t, int32(1), srv.hits.Load())
			assert.Empty(t, rec.delays)
		})
	}
}

func TestChatClient_ExhaustsAttempts(t *testing.T) {
	srv := newAIServer(t, aiReply{503, "unavailable"})
	c, rec := newTestChatClient(srv.URL)
	c.cfg.MaxAttempts = 3

	_, err := c.CompleteJSON(context.Background(), "sys", "user")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindUpstream))
	assert.Contains(t, err.Error(), "已尝试 3 次")
	assert.Contains(t, err.Error(), "HTTP 503")
	assert.Equal(t, int32(3), srv.hits.Load())
	// 最后一次失败后不再等待
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, rec.delays)
}

func TestChatClient_MissingAPIKey(t *testing.T) {
	srv := newAIServer(t, aiReply{200, chatBody(validSummaryJSON)})
	c, _ := newTestChatClient(srv.URL)
	c.cfg.APIKey = "  "

	_, err := c.CompleteJSON(context.Background(), "sys", "user")
	assert.True(t, IsKind(err, KindConfiguration))
	assert.Equal(t, int32(0), srv.hits.Load())
}

func TestChatClient_MalformedEnvelope(t *testing.T) {
	tests := map[string]string{
		"error 字段":   `{"error":{"message":"model not found"}}`,
		"没有 choices": `{"choices":[]}`,
		"空内容":        chatBody("   "),
		"非 JSON":     `<html>oops</html>`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			srv := newAIServer(t, aiReply{200, body})
			c, rec := newTestChatClient(srv.URL)

			_, err := c.CompleteJSON(context.Background(), "sys", "user")
			assert.True(t, IsKind(err, KindMalformedAI), "got %v", err)
			assert.Equal(t, int32(1), srv.hits.Load())
			assert.Empty(t, rec.delays)
		})
	}
}

func TestChatClient_CancelDuringBackoff(t *testing.T) {
	srv := newAIServer(t, aiReply{500, "boom"})
	c := NewChatClient(config.AIConfig{
		BaseURL:     srv.URL + "/v1",
		APIKey:      "sk-test",
		MaxAttempts: 2,
		BackoffBase: time.Hour,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.CompleteJSON(ctx, "sys", "user")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, int32(1), srv.hits.Load())
}
