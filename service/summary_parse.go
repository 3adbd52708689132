package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// SummaryPayload AI 返回的结构化总结
type SummaryPayload struct {
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
	TrendAnalysis   string   `json:"trend_analysis"`
}

var fencePattern = regexp.MustCompile("(?s)^```(?:json|JSON)?\\s*(.*?)\\s*```$")

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// ParseSummaryPayload 解析并校验 AI 返回内容
//
// summary 和 recommendations 缺失或类型不对直接报错；trend_analysis 缺失报错，为空时按收支情况生成兜底文案
func ParseSummaryPayload(content string, totalIncome, totalExpense int64) (*SummaryPayload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFence(content)), &fields); err != nil {
		return nil, MalformedAIError("AI 返回的内容不是有效的 JSON", err)
	}

	for _, key := range []string{"summary", "recommendations", "trend_analysis"} {
		if _, ok := fields[key]; !ok {
			return nil, MalformedAIError(fmt.Sprintf("AI 返回的 JSON 缺少字段 %s", key), nil)
		}
	}

	var p SummaryPayload
	if isNull(fields["summary"]) {
		return nil, MalformedAIError("AI 返回的 summary 为空", nil)
	}
	if err := json.Unmarshal(fields["summary"], &p.Summary); err != nil {
		return nil, MalformedAIError("AI 返回的 summary 不是字符串", err)
	}

	if isNull(fields["recommendations"]) {
		return nil, MalformedAIError("AI 返回的 recommendations 为空", nil)
	}
	if err := json.Unmarshal(fields["recommendations"], &p.Recommendations); err != nil {
		return nil, MalformedAIError("AI 返回的 recommendations 不是字符串数组", err)
	}

	if !isNull(fields["trend_analysis"]) {
		if err := json.Unmarshal(fields["trend_analysis"], &p.TrendAnalysis); err != nil {
			return nil, MalformedAIError("AI 返回的 trend_analysis 不是字符串", err)
		}
	}
	if strings.TrimSpace(p.TrendAnalysis) == "" {
		p.TrendAnalysis = fallbackTrend(totalIncome, totalExpense)
	}

	return &p, nil
}

func fallbackTrend(income, expense int64) string {
	state := "需要更多关注，支出已经持平或超过收入"
	if income > expense {
		state = "呈现良好的结余"
	}
	return fmt.Sprintf("根据现有的财务数据，本月收入 %d 元、支出 %d 元，整体财务状况%s。"+
		"收支结构仍需进一步分析，建议定期复盘消费习惯，并结合长期理财目标调整预算策略。",
		income, expense, state)
}
