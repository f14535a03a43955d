package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/Veraticus/cardwise/internal/importer"
	"github.com/Veraticus/cardwise/internal/jobs"
	"github.com/Veraticus/cardwise/internal/model"
)

// Money formats an amount with thousands separators and no decimals.
func Money(v float64) string {
	if v < 0 {
		return "-" + humanize.FormatFloat("#,###.", -v)
	}
	return humanize.FormatFloat("#,###.", v)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(SubtleStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		})
}

// RenderRecommendations renders a ranked recommendation set.
func RenderRecommendations(recs []model.Recommendation) string {
	if len(recs) == 0 {
		return FormatInfo("No recommendations yet. Run a job for this session first.")
	}

	t := newTable("#", "Card", "Score", "Earnings/yr", "Net/yr", "Why")
	for _, rec := range recs {
		name := rec.CardName
		if rec.IsFallback {
			name += " *"
		}
		t.Row(
			strconv.Itoa(rec.Rank),
			name,
			fmt.Sprintf("%.1f", rec.Score),
			Money(rec.EstimatedEarnings),
			Money(rec.NetSavings),
			rec.PrimaryReason,
		)
	}

	out := FormatTitle("Recommended cards") + "\n" + t.Render()
	if recs[0].IsFallback {
		out += "\n" + SubtleStyle.Render("* suggested without enough spending data to compare rewards")
	}
	return out
}

// RenderRecommendationDetail renders one recommendation's pros, cons and breakdown.
func RenderRecommendationDetail(rec model.Recommendation) string {
	var b strings.Builder
	b.WriteString(rec.PrimaryReason + "\n")
	for _, pro := range rec.Pros {
		b.WriteString(SuccessStyle.Render("  + "+pro) + "\n")
	}
	for _, con := range rec.Cons {
		b.WriteString(WarningStyle.Render("  - "+con) + "\n")
	}

	if len(rec.CategoryBreakdown) > 0 {
		t := newTable("Category", "Spend", "Rate", "Earnings", "Cap")
		for _, line := range rec.CategoryBreakdown {
			capped := ""
			if line.CapReached {
				capped = "reached"
			}
			t.Row(line.Category, Money(line.Spend), fmt.Sprintf("%g%%", line.Rate), Money(line.Earnings), capped)
		}
		b.WriteString(t.Render())
	}
	return RenderBox(fmt.Sprintf("#%d %s", rec.Rank, rec.CardName), strings.TrimRight(b.String(), "\n"))
}

// RenderJobStatus renders a job status summary.
func RenderJobStatus(view jobs.JobStatusView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session:  %s\n", view.SessionID)
	fmt.Fprintf(&b, "Kind:     %s\n", view.Kind)
	fmt.Fprintf(&b, "Status:   %s\n", statusStyle(view.Status).Render(string(view.Status)))
	fmt.Fprintf(&b, "Progress: %d%%", view.Progress)
	if view.CurrentStep != "" {
		fmt.Fprintf(&b, " (%s)", view.CurrentStep)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Queued:   %s", humanize.Time(view.QueuedAt))
	if view.StartedAt != nil && view.CompletedAt != nil {
		fmt.Fprintf(&b, "\nTook:     %s", view.CompletedAt.Sub(*view.StartedAt).Round(time.Millisecond))
	}
	if view.Error != "" {
		b.WriteString("\n" + FormatError(view.Error))
	}
	if out := view.Output; out != nil {
		fmt.Fprintf(&b, "\n\n%s %s transactions, %s resolved, %s need review, %s spend across %d categories",
			ChartIcon,
			humanize.Comma(int64(out.Transactions)),
			humanize.Comma(int64(out.Resolved)),
			humanize.Comma(int64(out.NeedsReview)),
			Money(out.TotalSpend),
			out.Patterns)
		fmt.Fprintf(&b, "\n%s %d recommendations", CardIcon, out.Recommendations)
		if out.FallbackUsed {
			b.WriteString(" (fallback)")
		}
	}
	return RenderBox("Job "+view.ID, b.String())
}

func statusStyle(status model.JobStatus) lipgloss.Style {
	switch status {
	case model.JobCompleted:
		return SuccessStyle
	case model.JobFailed:
		return ErrorStyle
	case model.JobProcessing:
		return InfoStyle
	}
	return SubtleStyle
}

// RenderOffers renders the card catalog.
func RenderOffers(offers []model.Offer) string {
	if len(offers) == 0 {
		return FormatInfo("The offer catalog is empty. Load one with: cardwise offers load <file>")
	}

	t := newTable("ID", "Card", "Issuer", "Network", "Base", "Annual fee", "Rewards", "Active")
	for _, o := range offers {
		fee := Money(o.Fees.AnnualFee)
		if o.IsLifetimeFree {
			fee = "lifetime free"
		}
		active := SuccessIcon
		if !o.IsActive {
			active = ErrorIcon
		}
		t.Row(o.ID, o.Name, o.Issuer, o.Network, fmt.Sprintf("%g%%", o.BaseRewardRate), fee,
			strconv.Itoa(len(o.AcceleratedRewards)), active)
	}
	return t.Render()
}

// RenderImportResult summarizes a statement import.
func RenderImportResult(res importer.Result) string {
	msg := fmt.Sprintf("Imported %s transactions into session %s",
		humanize.Comma(int64(res.Transactions)), res.SessionID)
	out := FormatSuccess(msg)
	if res.Duplicates > 0 {
		out += "\n" + FormatInfo(fmt.Sprintf("Skipped %d duplicate lines", res.Duplicates))
	}
	if res.JobID != "" {
		out += "\n" + FormatInfo("Queued job "+res.JobID+". Follow it with: cardwise status --watch "+res.JobID)
	}
	return out
}

// RenderResolution renders a single merchant resolution.
func RenderResolution(merchant string, res model.Resolution, category string) string {
	if !res.Resolved() {
		return FormatWarning(fmt.Sprintf("%q could not be resolved", merchant))
	}
	return FormatSuccess(fmt.Sprintf("%q → MCC %s (%s) via %s, confidence %.2f",
		merchant, res.MCCCode, category, res.Source, res.Confidence))
}
