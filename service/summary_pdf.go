package service

import (
	"bytes"
	"fmt"
	"os"

	"budgettracker/config"
	"budgettracker/models"

	"github.com/phpdave11/gofpdf"
)

// RenderSummaryPDF 将月度总结渲染为 PDF
// 配置了 UTF-8 字体时使用该字体，否则退回 Helvetica（中文无法正常显示）
func RenderSummaryPDF(summary *models.MonthlySummary, username string, opts config.PDFConfig) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("%s %s 月度总结", summary.Year, summary.Month), true)
	pdf.SetAuthor("Budget Tracker", true)

	family := "Helvetica"
	text := func(s string) string { return s }
	if opts.FontPath != "" {
		family = opts.FontFamily
		if family == "" {
			family = "CJK"
		}
		if _, err := os.Stat(opts.FontPath); err != nil {
			return nil, fmt.Errorf("加载 PDF 字体失败: %w", err)
		}
		pdf.AddUTF8Font(family, "", opts.FontPath)
		pdf.AddUTF8Font(family, "B", opts.FontPath)
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("加载 PDF 字体失败: %w", err)
		}
	} else {
		text = pdf.UnicodeTranslatorFromDescriptor("")
	}

	pdf.AddPage()

	pdf.SetFont(family, "B", 18)
	pdf.Cell(0, 10, text(fmt.Sprintf("%s年%s 财务总结", summary.Year, summary.Month)))
	pdf.Ln(12)

	pdf.SetFont(family, "", 12)
	pdf.Cell(0, 8, text("用户: "+username))
	pdf.Ln(6)
	pdf.Cell(0, 8, text("生成时间: "+summary.CreatedAt.Format("2006-01-02 15:04")))
	pdf.Ln(10)

	pdf.SetFont(family, "B", 13)
	for _, row := range [][2]string{
		{"总收入", summary.TotalIncome},
		{"总支出", summary.TotalExpense},
		{"结余", summary.Balance},
	} {
		pdf.Cell(40, 8, text(row[0]))
		pdf.Cell(60, 8, text(row[1]))
		pdf.Ln(8)
	}
	pdf.Ln(4)

	section := func(title, body string) {
		pdf.SetFont(family, "B", 13)
		pdf.Cell(0, 8, text(title))
		pdf.Ln(9)
		pdf.SetFont(family, "", 11)
		pdf.MultiCell(0, 7, text(body), "", "L", false)
		pdf.Ln(4)
	}

	section("总结", summary.AISummary)
	section("趋势分析", summary.AITrendAnalysis)

	pdf.SetFont(family, "B", 13)
	pdf.Cell(0, 8, text("建议"))
	pdf.Ln(9)
	pdf.SetFont(family, "", 11)
	for i, rec := range summary.Recommendations() {
		pdf.MultiCell(0, 7, text(fmt.Sprintf("%d. %s", i+1, rec)), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
