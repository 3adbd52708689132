package service

import (
	"fmt"
	"html"
	"io"
	"strings"

	"budgettracker/config"
	"budgettracker/models"

	"gopkg.in/gomail.v2"
)

// mailSender 发送已组装好的邮件，*gomail.Dialer 满足该接口
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailService 邮件服务
type EmailService struct {
	cfg    *config.EmailConfig
	sender mailSender
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{
		cfg:    cfg,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Enabled 是否启用
func (s *EmailService) Enabled() bool {
	return s.cfg.Enabled
}

// SendSummaryReport 发送月度总结邮件，附带 PDF 报告
func (s *EmailService) SendSummaryReport(toEmail, username string, summary *models.MonthlySummary, pdf []byte) error {
	if !s.cfg.Enabled {
		return ConfigurationError("邮件服务未启用，请配置 email.enabled=true")
	}
	if strings.TrimSpace(toEmail) == "" {
		return ValidationError("收件邮箱不能为空")
	}

	label := summary.Year + "年" + summary.Month
	m := s.newMessage(toEmail, fmt.Sprintf("【记账助手】%s 月度财务总结", label), s.generateSummaryEmailBody(username, label, summary))
	m.Attach(SummaryFileName(summary), gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := w.Write(pdf)
		return err
	}), gomail.SetHeader(map[string][]string{"Content-Type": {"application/pdf"}}))

	return s.send(m)
}

// SummaryFileName 报告文件名，如 summary-2024-10-9.pdf
func SummaryFileName(summary *models.MonthlySummary) string {
	return fmt.Sprintf("summary-%s-%02d-%d.pdf", summary.Year, models.MonthNumber(summary.Month), summary.ID)
}

// generateSummaryEmailBody 生成总结邮件内容
func (s *EmailService) generateSummaryEmailBody(username, label string, summary *models.MonthlySummary) string {
	var recs strings.Builder
	for _, r := range summary.Recommendations() {
		recs.WriteString("<li>" + html.EscapeString(r) + "</li>")
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: 'Microsoft YaHei', Arial, sans-serif; background: #f5f5f5; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background: #fff; border-radius: 12px; overflow: hidden; box-shadow: 0 4px 20px rgba(0,0,0,0.1); }
        .header { background: linear-gradient(135deg, #10b981, #059669); color: white; padding: 30px; text-align: center; }
        .header h1 { margin: 0; font-size: 24px; }
        .content { padding: 30px; }
        .content p { color: #333; line-height: 1.8; margin: 0 0 16px; }
        .totals td { padding: 4px 16px 4px 0; color: #333; }
        .footer { background: #f8f9fa; padding: 20px 30px; text-align: center; color: #6c757d; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>💰 %s 财务总结</h1>
        </div>
        <div class="content">
            <p>尊敬的 <strong>%s</strong>，您好！以下是您的月度财务总结，完整报告见附件 PDF。</p>
            <table class="totals">
                <tr><td>总收入</td><td>%s</td></tr>
                <tr><td>总支出</td><td>%s</td></tr>
                <tr><td>结余</td><td>%s</td></tr>
            </table>
            <p>%s</p>
            <p><strong>趋势分析：</strong>%s</p>
            <ul>%s</ul>
        </div>
        <div class="footer">
            <p>此邮件由系统自动发送，请勿回复</p>
            <p>© 记账助手 - 您的个人财务管理助手</p>
        </div>
    </div>
</body>
</html>
`, html.EscapeString(label), html.EscapeString(username),
		summary.TotalIncome, summary.TotalExpense, summary.Balance,
		html.EscapeString(summary.AISummary), html.EscapeString(summary.AITrendAnalysis), recs.String())
}

func (s *EmailService) newMessage(to, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.Username, s.cfg.From))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return m
}

// send 发送邮件
func (s *EmailService) send(m *gomail.Message) error {
	if err := s.sender.DialAndSend(m); err != nil {
		return UpstreamError("发送邮件失败", err)
	}
	return nil
}

// SendTestEmail 发送测试邮件
func (s *EmailService) SendTestEmail(toEmail string) error {
	if !s.cfg.Enabled {
		return ConfigurationError("邮件服务未启用")
	}

	body := `
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; padding: 20px;">
    <h2>✅ 邮件配置成功</h2>
    <p>如果您收到这封邮件，说明邮件服务配置正确。</p>
    <p style="color: #666;">记账助手</p>
</body>
</html>
`
	return s.send(s.newMessage(toEmail, "【记账助手】邮件配置测试", body))
}
