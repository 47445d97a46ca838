package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// DefaultCurrency prefixes amounts in messages.
const DefaultCurrency = "₹"

func money(currency string, d decimal.Decimal) string {
	return currency + humanize.FormatFloat("#,###.##", d.InexactFloat64())
}

func percent(p *decimal.Decimal) string {
	if p == nil {
		return "over the limit"
	}
	return p.StringFixed(1) + "%"
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func subject(msg Message) string {
	switch msg.Kind {
	case KindBudgetCritical:
		return "🚨 Budget Limit Reached!"
	case KindBudgetWarning:
		return "⚠️ Budget Warning Alert"
	case KindSubscriptionReminder:
		return "🔔 Subscription Renewal Reminder: " + msg.Subscription.ServiceName
	}
	return string(msg.Kind)
}

// renderText returns a one-line title and body for chat channels and logs.
func renderText(msg Message, currency string) (string, string) {
	switch msg.Kind {
	case KindBudgetWarning, KindBudgetCritical:
		b := msg.Budget
		verb := "used"
		if msg.Kind == KindBudgetCritical {
			verb = "reached"
		}
		return subject(msg), fmt.Sprintf("%s, you have %s %s of your %s budget: %s spent of %s, %s remaining.",
			msg.User.DisplayName(), verb, percent(msg.Percentage), strings.ToLower(string(b.Period)),
			money(currency, b.CurrentSpending), money(currency, b.TotalLimit),
			money(currency, b.TotalLimit.Sub(b.CurrentSpending)))
	case KindSubscriptionReminder:
		s := msg.Subscription
		return subject(msg), fmt.Sprintf("%s, %s renews in %d day%s on %s: %s (%s).",
			msg.User.DisplayName(), s.ServiceName, msg.DaysUntilRenewal, plural(msg.DaysUntilRenewal),
			s.NextBillingDate.Format("Jan 2, 2006"), money(currency, s.Cost), s.BillingCycle)
	}
	return subject(msg), ""
}

var emailTemplate = template.Must(template.New("email").Funcs(template.FuncMap{
	"money":   func(cur string, d decimal.Decimal) string { return money(cur, d) },
	"percent": percent,
	"plural":  plural,
	"bar": func(p *decimal.Decimal) string {
		if p == nil || p.GreaterThan(decimal.NewFromInt(100)) {
			return "100"
		}
		return p.StringFixed(0)
	},
}).Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: {{.Color}}; color: white; padding: 20px; border-radius: 8px 8px 0 0;">
    <h1>{{.Subject}}</h1>
  </div>
  <div style="background: #f9fafb; padding: 20px; border-radius: 0 0 8px 8px;">
    <p>Hi {{.Msg.User.DisplayName}},</p>
{{- if .Msg.Budget}}
{{- with .Msg.Budget}}
    <p>You have {{if eq $.Msg.Kind "budget_critical"}}reached{{else}}used{{end}} {{percent $.Msg.Percentage}} of your {{.Period}} budget limit of {{money $.Currency .TotalLimit}}.</p>
    <table style="background: white; padding: 15px; border-radius: 8px; width: 100%;">
      <tr><td>Budget Limit:</td><td><strong>{{money $.Currency .TotalLimit}}</strong></td></tr>
      <tr><td>Current Spending:</td><td><strong>{{money $.Currency .CurrentSpending}}</strong></td></tr>
      <tr><td>Remaining:</td><td><strong>{{money $.Currency (.TotalLimit.Sub .CurrentSpending)}}</strong></td></tr>
    </table>
    <div style="background: #e5e7eb; height: 20px; border-radius: 10px; overflow: hidden; margin: 15px 0;">
      <div style="background: {{$.Color}}; height: 100%; width: {{bar $.Msg.Percentage}}%;"></div>
    </div>
    <p>{{if eq $.Msg.Kind "budget_critical"}}Consider reviewing your expenses to avoid overspending.{{else}}Keep track of your spending to stay within budget.{{end}}</p>
{{- end}}
{{- else}}
{{- with .Msg.Subscription}}
    <p>Your subscription to <strong>{{.ServiceName}}</strong> will renew in <strong>{{$.Msg.DaysUntilRenewal}} day{{plural $.Msg.DaysUntilRenewal}}</strong>.</p>
    <table style="background: white; padding: 15px; border-radius: 8px; width: 100%; border-left: 4px solid #3b82f6;">
      <tr><td>Cost:</td><td><strong>{{money $.Currency .Cost}}</strong></td></tr>
      <tr><td>Billing Cycle:</td><td><strong>{{.BillingCycle}}</strong></td></tr>
      <tr><td>Renewal Date:</td><td><strong>{{.NextBillingDate.Format "Jan 2, 2006"}}</strong></td></tr>
    </table>
{{- end}}
{{- end}}
  </div>
  <p style="text-align: center; color: #6b7280; font-size: 14px;">This is an automated message from your finance tracker.</p>
</div>
</body>
</html>
`))

func renderHTML(msg Message, currency string) (string, error) {
	color := "#3b82f6"
	switch msg.Kind {
	case KindBudgetCritical:
		color = "#dc2626"
	case KindBudgetWarning:
		color = "#f59e0b"
	}
	var buf bytes.Buffer
	err := emailTemplate.Execute(&buf, struct {
		Msg      Message
		Subject  string
		Color    string
		Currency string
	}{msg, subject(msg), color, currency})
	if err != nil {
		return "", fmt.Errorf("rendering %s email: %w", msg.Kind, err)
	}
	return buf.String(), nil
}
