package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"budgettracker/config"
	"budgettracker/logger"
)

const maxAIResponseBytes = 4 << 20

// ChatMessage OpenAI 兼容的消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error json.RawMessage `json:"error"`
}

// statusError 可重试的 HTTP 状态错误
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// ChatClient 调用 OpenAI 兼容的 chat/completions 接口，带重试和指数退避
type ChatClient struct {
	cfg        config.AIConfig
	httpClient *http.Client
	sleep      func(ctx context.Context, d time.Duration) error
	log        *logger.Logger
}

// NewChatClient 创建 AI 客户端
func NewChatClient(cfg config.AIConfig) *ChatClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		sleep:      sleepContext,
		log:        logger.Component(logger.ComponentAI),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CompleteJSON 发送 system + user 消息并要求返回 JSON 对象，返回 choices[0].message.content
//
// 400/401/403 和 429 不重试；网络错误和其它状态码按 backoff_base * 2^i 退避后重试
func (c *ChatClient) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", ConfigurationError("AI 服务未配置 API Key")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("构建请求失败: %w", err)
	}

	attempts := c.cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	log := logger.FromContext(ctx, c.log)

	var lastErr error
	for i := 0; i < attempts; i++ {
		content, err := c.post(ctx, body)
		if err == nil {
			if i > 0 {
				log.Info("AI 请求重试成功", logger.FieldAttempt, i+1)
			}
			return content, nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("AI 请求已取消: %w", ctx.Err())
		}
		if _, terminal := AsError(err); terminal {
			return "", err
		}

		lastErr = err
		log.Warn("AI 请求失败", logger.FieldAttempt, i+1, "max_attempts", attempts, logger.FieldError, err)

		if i < attempts-1 {
			delay := c.cfg.BackoffBase << i
			if err := c.sleep(ctx, delay); err != nil {
				return "", fmt.Errorf("AI 请求已取消: %w", err)
			}
		}
	}

	return "", UpstreamError(fmt.Sprintf("AI 服务调用失败，已尝试 %d 次", attempts), lastErr)
}

// post 单次请求；返回 *Error 表示不可重试
func (c *ChatClient) post(ctx context.Context, body []byte) (string, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", ConfigurationError("AI 服务地址无效")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求 AI 服务失败: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAIResponseBytes))
	if err != nil {
		return "", fmt.Errorf("读取 AI 响应失败: %w", err)
	}

	switch code := resp.StatusCode; {
	case code == http.StatusTooManyRequests:
		return "", RateLimitError("AI 服务请求过于频繁，请稍后再试", &statusError{Code: code, Body: snippet(raw)})
	case code == http.StatusBadRequest || code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "", UpstreamError(fmt.Sprintf("AI 服务拒绝了请求（HTTP %d）", code), &statusError{Code: code, Body: snippet(raw)})
	case code < 200 || code >= 300:
		return "", &statusError{Code: code, Body: snippet(raw)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", MalformedAIError("AI 服务返回的响应无法解析", err)
	}
	if len(parsed.Error) > 0 && string(parsed.Error) != "null" {
		return "", MalformedAIError("AI 服务返回错误", fmt.Errorf("%s", snippet(parsed.Error)))
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", MalformedAIError("AI 服务返回的内容为空", nil)
	}
	return parsed.Choices[0].Message.Content, nil
}

func snippet(b []byte) string {
	const max = 512
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
