package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"budgettracker/database"
	"budgettracker/middleware"
	"budgettracker/models"
	"budgettracker/service"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ExportHandler 导出处理器
type ExportHandler struct{}

// NewExportHandler 创建导出处理器
func NewExportHandler() *ExportHandler {
	return &ExportHandler{}
}

var exportHeaders = []string{"ID", "类型", "金额", "类别", "备注", "日期", "创建时间"}

func typeLabel(t models.TransactionType) string {
	if t == models.TransactionIncome {
		return "收入"
	}
	return "支出"
}

func exportRow(tx *models.Transaction) []string {
	return []string{
		strconv.FormatUint(uint64(tx.ID), 10),
		typeLabel(tx.Type),
		tx.Amount.String(),
		tx.CategoryName(),
		tx.Note,
		tx.Date.Format(dateLayout),
		tx.CreatedAt.Format(dateTimeLayout),
	}
}

// Export 导出收支记录
// @Summary 导出收支记录
// @Description 根据时间范围导出收支记录为 CSV 或 Excel 文件
// @Tags 导出
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string false "csv 或 excel" default(csv)
// @Param start_time query string true "开始时间 (2024-01-01)"
// @Param end_time query string true "结束时间 (2024-12-31)"
// @Success 200 {file} file "导出文件"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/transactions/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	startStr, endStr := c.Query("start_time"), c.Query("end_time")
	if startStr == "" || endStr == "" {
		BadRequest(c, "请提供开始时间和结束时间")
		return
	}
	start, err := parseDate(startStr)
	if err != nil {
		BadRequest(c, "开始时间格式错误，应为: 2006-01-02")
		return
	}
	end, err := parseDate(endStr)
	if err != nil {
		BadRequest(c, "结束时间格式错误，应为: 2006-01-02")
		return
	}
	if end.Before(start) {
		BadRequest(c, "结束时间不能早于开始时间")
		return
	}

	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "excel" {
		BadRequest(c, "不支持的导出格式，可选值: csv, excel")
		return
	}

	list, err := database.NewTransactionStore(database.DB).FindTransactions(c.Request.Context(), userID,
		models.TransactionFilter{Start: models.DateOf(start), End: models.EndOfDay(end)})
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询数据失败"))
		return
	}

	base := fmt.Sprintf("transactions_%s_%s", startStr, endStr)
	if format == "excel" {
		h.writeExcel(c, base+".xlsx", list)
		return
	}
	h.writeCSV(c, base+".csv", list)
}

func (h *ExportHandler) writeCSV(c *gin.Context, filename string, list []models.Transaction) {
	buf := new(bytes.Buffer)
	// 添加 BOM 以支持 Excel 中文显示
	buf.WriteString("\xEF\xBB\xBF")

	w := csv.NewWriter(buf)
	_ = w.Write(exportHeaders)
	for i := range list {
		_ = w.Write(exportRow(&list[i]))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		InternalError(c, "生成 CSV 失败")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *ExportHandler) writeExcel(c *gin.Context, filename string, list []models.Transaction) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "收支记录"
	f.SetSheetName("Sheet1", sheet)

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	dataStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})

	f.SetColWidth(sheet, "A", "D", 12)
	f.SetColWidth(sheet, "E", "E", 30)
	f.SetColWidth(sheet, "F", "G", 20)

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}
	f.SetCellStyle(sheet, "A1", "G1", headerStyle)

	for i := range list {
		row := i + 2
		for col, v := range exportRow(&list[i]) {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if col == 2 {
				// 金额按数值写入，方便在表格中求和
				f.SetCellValue(sheet, cell, list[i].Amount.InexactFloat64())
				continue
			}
			f.SetCellValue(sheet, cell, v)
		}
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("G%d", row), dataStyle)
	}

	totals := service.SumTotals(list)
	summaryRow := len(list) + 2
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), "合计")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", summaryRow), fmt.Sprintf("收入 %s / 支出 %s", totals.Income, totals.Expense))
	f.MergeCell(sheet, fmt.Sprintf("B%d", summaryRow), fmt.Sprintf("D%d", summaryRow))
	f.SetCellValue(sheet, fmt.Sprintf("E%d", summaryRow), fmt.Sprintf("共 %d 条记录", len(list)))

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(filename)))
	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "生成 Excel 失败")
		return
	}
}
