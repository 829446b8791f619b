package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/tollkeeper/internal/model"
	"github.com/Veraticus/tollkeeper/internal/validation"
)

var (
	labelStyle = BoldStyle.
			Width(20).
			Align(lipgloss.Right)
	valueStyle = lipgloss.NewStyle()
)

func field(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		labelStyle.Render(label+": "),
		valueStyle.Render(value),
	)
}

// VerdictStatus renders a short colored status for a verdict.
func VerdictStatus(v *model.Verdict) string {
	if v.Reconciled {
		return SuccessStyle.Render(SuccessIcon + " reconciled")
	}
	return ErrorStyle.Render(ErrorIcon + " discrepancy")
}

// RenderRunSummary renders the counters of a finished validation run.
func RenderRunSummary(run *model.ValidationRun) string {
	lines := []string{
		field("Run", run.ID),
		field("Since", run.Since.Format(model.DateLayout)),
		field("Validated", fmt.Sprintf("%d", run.Processed)),
		field("Reconciled", SuccessStyle.Render(fmt.Sprintf("%d", run.Reconciled))),
		field("Discrepancies", WarningStyle.Render(fmt.Sprintf("%d", run.Processed-run.Reconciled))),
		field("Already current", SubtleStyle.Render(fmt.Sprintf("%d", run.Skipped))),
	}
	if run.Failed > 0 {
		lines = append(lines, field("Failed", ErrorStyle.Render(fmt.Sprintf("%d", run.Failed))))
	}
	if !run.FinishedAt.IsZero() {
		lines = append(lines, field("Duration", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()))
	}
	return RenderBox("Validation run", strings.Join(lines, "\n"))
}

// RenderVerdicts renders verdicts as a table.
func RenderVerdicts(verdicts []model.Verdict) string {
	if len(verdicts) == 0 {
		return FormatInfo("No verdicts found")
	}

	headers := []string{"Transaction", "Version", "Status", "Actual", "Expected", "Difference", "Notes"}
	rows := make([][]string, 0, len(verdicts))
	for i := range verdicts {
		v := &verdicts[i]
		rows = append(rows, []string{
			v.TransactionID,
			fmt.Sprintf("%d", v.TransactionVersion),
			VerdictStatus(v),
			fmt.Sprintf("%.2f", v.ActualVendorAmount),
			fmt.Sprintf("%.2f", v.ExpectedVendorAmount),
			fmt.Sprintf("%+.2f", v.ActualVendorAmount-v.ExpectedVendorAmount),
			strings.Join(v.Notes, "; "),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = TableHeaderStyle.Width(widths[i] + 2).Render(h)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	b.WriteString("\n")
	for _, row := range rows {
		for i, cell := range row {
			cells[i] = TableCellStyle.Width(widths[i] + 2).Render(cell)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderExplanation renders how a transaction's expected price was derived.
func RenderExplanation(txn *model.Transaction, outcome *validation.Outcome) string {
	var sections []string

	sections = append(sections, FormatTitle("Transaction "+txn.ID))

	info := []string{
		field("Entitlement", txn.EntitlementID),
		field("Product", fmt.Sprintf("%s (%s)", txn.AddonKey, txn.Hosting)),
		field("Sale", fmt.Sprintf("%s on %s", txn.SaleType, txn.SaleDate.Format(model.DateLayout))),
		field("Maintenance", fmt.Sprintf("%s to %s (%d days)",
			txn.MaintenanceStart.Format(model.DateLayout),
			txn.MaintenanceEnd.Format(model.DateLayout),
			txn.DurationDays())),
		field("Tier", fmt.Sprintf("%s, %s, %s", txn.Tier, txn.LicenseType, txn.BillingPeriod)),
		field("Version", fmt.Sprintf("%d", txn.Version)),
	}
	if txn.PartnerName != "" {
		info = append(info, field("Partner", txn.PartnerName))
	}
	if txn.Country != "" {
		info = append(info, field("Country", txn.Country))
	}
	sections = append(sections, BoxStyle.Render(strings.Join(info, "\n")))

	if outcome.Previous != nil {
		prev := outcome.Previous
		lines := []string{
			field("Transaction", prev.Transaction.ID),
			field("Effective end", prev.EffectiveEnd.Format(model.DateLayout)),
		}
		if outcome.PreviousResult != nil {
			lines = append(lines, field("Expected price", fmt.Sprintf("%.2f", outcome.PreviousResult.PurchasePrice)))
		}
		sections = append(sections, RenderBox("Previous purchase", strings.Join(lines, "\n")))
	}

	steps := make([]string, 0, len(outcome.Result.Descriptors))
	for _, d := range outcome.Result.Descriptors {
		steps = append(steps, lipgloss.JoinHorizontal(lipgloss.Top,
			SubtleStyle.Width(10).Render(d.Step),
			TableCellStyle.Width(14).Align(lipgloss.Right).Render(fmt.Sprintf("%.2f", d.Subtotal)),
			valueStyle.Render(d.Description),
		))
	}
	title := fmt.Sprintf("Pricing (%s, %d hypotheses tried)", outcome.Hypothesis, outcome.Attempts)
	sections = append(sections, RenderBox(title, strings.Join(steps, "\n")))

	v := &outcome.Verdict
	result := []string{
		field("Status", VerdictStatus(v)),
		field("Actual", fmt.Sprintf("%.2f", v.ActualVendorAmount)),
		field("Expected", fmt.Sprintf("%.2f", v.ExpectedVendorAmount)),
	}
	if outcome.Discount.Amount != 0 {
		result = append(result, field("Expected discount",
			fmt.Sprintf("%.2f (%s)", outcome.Discount.Amount, outcome.Discount.Source)))
	}
	for _, note := range v.Notes {
		result = append(result, field("Note", note))
	}
	sections = append(sections, RenderBox("Verdict", strings.Join(result, "\n")))

	return strings.Join(sections, "\n")
}
