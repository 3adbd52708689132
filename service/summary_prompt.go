package service

import (
	"encoding/json"
	"fmt"
	"time"

	"budgettracker/models"
)

const summarySystemPrompt = `你是一名专业的个人理财顾问。用户会提供其本月的收支数据（JSON 格式），请据此撰写月度财务总结。

你必须只返回一个 JSON 对象，且只包含以下 3 个字段：
{
  "summary": "本月财务状况总结（字符串）",
  "recommendations": ["具体可执行的建议 1", "建议 2", "建议 3"],
  "trend_analysis": "收支趋势分析（字符串，详细说明，不得为空）"
}

要求：
- 必须返回全部 3 个字段：summary、recommendations、trend_analysis
- recommendations 必须是字符串数组
- 不要修改字段名，不要添加其它字段
- 不要使用 markdown 代码块，不要在 JSON 之外输出任何文字
- 使用简体中文`

type promptTransaction struct {
	Type     string `json:"type"`
	Category string `json:"category"`
	Amount   int64  `json:"amount"`
	Date     string `json:"date"`
}

type summaryRequest struct {
	User         string              `json:"user"`
	Month        string              `json:"month"`
	Transactions []promptTransaction `json:"transactions"`
	TotalIncome  int64               `json:"total_income"`
	TotalExpense int64               `json:"total_expense"`
}

func newSummaryRequest(user *models.User, month time.Time, list []models.Transaction, income, expense int64) summaryRequest {
	req := summaryRequest{
		User:         user.DisplayName(),
		Month:        models.MonthLabel(month),
		Transactions: make([]promptTransaction, 0, len(list)),
		TotalIncome:  income,
		TotalExpense: expense,
	}
	for i := range list {
		tx := &list[i]
		req.Transactions = append(req.Transactions, promptTransaction{
			Type:     string(tx.Type),
			Category: tx.CategoryName(),
			Amount:   tx.Amount.IntPart(),
			Date:     tx.Date.Format("2006-01-02"),
		})
	}
	return req
}

func (r summaryRequest) userPrompt() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("请根据以下 %s 的财务数据生成月度总结：\n%s", r.Month, data), nil
}
