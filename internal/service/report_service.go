package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"house-expenses/internal/model"
)

// ReportService renders ledger aggregates as HTML messages.
type ReportService struct {
	ledger *LedgerService
}

func NewReportService(ledger *LedgerService) *ReportService {
	return &ReportService{ledger: ledger}
}

// SpendingReport builds the /report text: per-category totals, the grand
// total and the foreman balance from one snapshot.
func (s *ReportService) SpendingReport(ctx context.Context, user *model.User) (string, error) {
	report, err := s.ledger.Report(ctx, user)
	if err != nil {
		return "", err
	}

	if len(report.ByCategory) == 0 {
		return "📊 Расходов пока не записано.", nil
	}

	var builder strings.Builder
	builder.WriteString("📊 <b>Отчёт по расходам</b>\n\n")
	for _, row := range report.ByCategory {
		builder.WriteString(fmt.Sprintf("• <b>%s</b>: %s\n", html.EscapeString(row.Name), FormatAmount(row.Total)))
	}
	builder.WriteString(fmt.Sprintf("\n💰 <b>Итого расходов:</b> %s\n", FormatAmount(report.Total)))
	builder.WriteString(fmt.Sprintf("\n👷 <b>Прорабу выдано:</b> %s\n", FormatAmount(report.Balance.TotalGiven)))
	builder.WriteString(fmt.Sprintf("👷 <b>Потрачено:</b> %s\n", FormatAmount(report.Balance.TotalSpent)))
	builder.WriteString(fmt.Sprintf("👷 <b>Остаток у прораба:</b> %s", FormatAmount(report.Balance.Outstanding)))

	return builder.String(), nil
}

// ForemanSummary builds the /foreman text.
func (s *ReportService) ForemanSummary(ctx context.Context, user *model.User) (string, error) {
	balance, err := s.ledger.ForemanBalance(ctx, user)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString("👷 <b>Баланс прораба</b>\n\n")
	builder.WriteString(fmt.Sprintf("Выдано всего: %s\n", FormatAmount(balance.TotalGiven)))
	builder.WriteString(fmt.Sprintf("Потрачено: %s\n", FormatAmount(balance.TotalSpent)))
	builder.WriteString(fmt.Sprintf("Остаток: %s\n", FormatAmount(balance.Outstanding)))
	if balance.Outstanding.IsPositive() {
		builder.WriteString("\n⚠️ Прораб ещё не отчитался за все деньги.")
	} else {
		builder.WriteString("\n✅ Прораб отчитался за всё.")
	}
	return builder.String(), nil
}

// FormatAmount renders money with two decimals and space-grouped thousands:
// 1234567.5 → "1 234 567.50".
func FormatAmount(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)

	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	parts := strings.SplitN(fixed, ".", 2)
	integer := parts[0]

	var grouped strings.Builder
	for i, digit := range integer {
		if i > 0 && (len(integer)-i)%3 == 0 {
			grouped.WriteByte(' ')
		}
		grouped.WriteRune(digit)
	}

	result := grouped.String() + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}
