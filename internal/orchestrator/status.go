package orchestrator

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/recruitpipe/recruitpipe/internal/models"
)

// StatusReport aggregates all active conversations by stage and channel and
// collects the threads awaiting escalation.
func (e *Engine) StatusReport() (*models.StatusReport, error) {
	active, err := e.st.ListActiveConversations()
	if err != nil {
		return nil, fmt.Errorf("failed to list active conversations: %w", err)
	}

	report := &models.StatusReport{
		TotalConversations: len(active),
		ByStage:            make(map[models.Stage]int),
		ByChannel:          make(map[models.Channel]int),
	}
	for _, conv := range active {
		report.ByStage[conv.Stage]++
		report.ByChannel[conv.Channel]++
		if conv.RequiresEscalation {
			report.RequiringEscalation = append(report.RequiringEscalation, models.EscalationSummary{
				ThreadID: conv.ThreadID,
				Company:  conv.Company,
				Position: conv.Position,
				Reason:   conv.EscalationReason,
			})
		}
	}
	return report, nil
}

// FormatStatusReport renders a report for the operator log.
func FormatStatusReport(report *models.StatusReport) string {
	var b strings.Builder
	rule := strings.Repeat("=", 60)
	b.WriteString(rule + "\n")
	b.WriteString("RECRUITPIPE - STATUS REPORT\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Active Conversations: %d\n", report.TotalConversations)

	if len(report.ByStage) > 0 {
		b.WriteString("\nBy Stage:\n")
		for stage, count := range report.ByStage {
			fmt.Fprintf(&b, "  %s: %d\n", stage, count)
		}
	}
	if len(report.ByChannel) > 0 {
		b.WriteString("\nBy Channel:\n")
		for channel, count := range report.ByChannel {
			fmt.Fprintf(&b, "  %s: %d\n", channel, count)
		}
	}
	if len(report.RequiringEscalation) > 0 {
		fmt.Fprintf(&b, "\n%d conversation(s) require escalation:\n", len(report.RequiringEscalation))
		for _, item := range report.RequiringEscalation {
			fmt.Fprintf(&b, "  - %s - %s: %s\n", item.Company, item.Position, item.Reason)
		}
	}
	b.WriteString(rule)
	return b.String()
}

// LogStatus builds and logs the current status report.
func (e *Engine) LogStatus() {
	report, err := e.StatusReport()
	if err != nil {
		slog.Error("Engine: status report failed", "error", err)
		return
	}
	fmt.Println(FormatStatusReport(report))
	slog.Info("Engine: status report",
		"active", report.TotalConversations,
		"escalations", len(report.RequiringEscalation))
}
