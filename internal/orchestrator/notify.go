package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/recruitpipe/recruitpipe/internal/channels"
	"github.com/recruitpipe/recruitpipe/internal/models"
)

// EmailNotifier sends escalation alerts to an operator mailbox.
type EmailNotifier struct {
	client channels.EmailClient
	to     string
}

// NewEmailNotifier creates a notifier that emails the operator address.
func NewEmailNotifier(client channels.EmailClient, to string) *EmailNotifier {
	return &EmailNotifier{client: client, to: to}
}

func (n *EmailNotifier) NotifyEscalation(ctx context.Context, summary models.EscalationSummary) error {
	subject := fmt.Sprintf("[RecruitPipe] Escalation required: %s", summary.ThreadID)

	var b strings.Builder
	fmt.Fprintf(&b, "A conversation needs your attention.\n\n")
	fmt.Fprintf(&b, "Thread:   %s\n", summary.ThreadID)
	if summary.Company != "" {
		fmt.Fprintf(&b, "Company:  %s\n", summary.Company)
	}
	if summary.Position != "" {
		fmt.Fprintf(&b, "Position: %s\n", summary.Position)
	}
	fmt.Fprintf(&b, "Reason:   %s\n", summary.Reason)

	if err := n.client.SendReply(ctx, summary.ThreadID, n.to, subject, b.String()); err != nil {
		slog.Error("EmailNotifier.NotifyEscalation: send failed", "error", err, "threadID", summary.ThreadID)
		return fmt.Errorf("failed to send escalation email: %w", err)
	}
	slog.Info("EmailNotifier.NotifyEscalation: alert sent", "threadID", summary.ThreadID, "to", n.to)
	return nil
}
