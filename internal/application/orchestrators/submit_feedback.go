package orchestrators

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"crewportal/internal/adapters/email"
	feedbackStore "crewportal/internal/adapters/storage/feedback"
	domain "crewportal/internal/domain/feedback"
)

// SubmitFeedbackCommand holds a "report a problem" note.
// INVARIANT: never carries cookies, tokens, passwords or raw session data
type SubmitFeedbackCommand struct {
	PSN       string
	Mode      string
	Summary   string
	Message   string
	Route     string
	UserAgent string
}

// SubmitFeedbackDeps are the external dependencies for this orchestrator.
type SubmitFeedbackDeps struct {
	Store      feedbackStore.Store
	Sender     email.Sender
	To         string
	GenerateID func() string
	Now        func() time.Time
}

// ExecuteSubmitFeedback validates and persists the note, then mails it to
// the support inbox.
// PRE: cmd.Summary and cmd.Message are non-empty
// POST: the submission is saved; a delivery failure is logged and the
// submission stays without a message id
func ExecuteSubmitFeedback(ctx context.Context, cmd SubmitFeedbackCommand, deps SubmitFeedbackDeps) (domain.Submission, error) {
	sub := domain.Submission{
		ID:          deps.GenerateID(),
		PSN:         cmd.PSN,
		Mode:        cmd.Mode,
		Summary:     strings.TrimSpace(cmd.Summary),
		Message:     strings.TrimSpace(cmd.Message),
		Route:       cmd.Route,
		UserAgent:   cmd.UserAgent,
		SubmittedAt: deps.Now().UTC(),
	}
	if err := sub.Validate(); err != nil {
		return domain.Submission{}, err
	}

	if err := deps.Store.Save(ctx, sub); err != nil {
		slog.Error("feedback_save_failed", "submission_id", sub.ID, "error", err)
		return domain.Submission{}, fmt.Errorf("failed to save feedback: %w", err)
	}

	if deps.Sender == nil || deps.To == "" {
		slog.Info("feedback_submitted", "submission_id", sub.ID, "delivered", false)
		return sub, nil
	}

	res, err := deps.Sender.Send(ctx, email.SendRequest{
		To:      []string{deps.To},
		Subject: "[Crew portal] " + sub.Summary,
		HTML:    feedbackHTML(sub),
		Text:    feedbackText(sub),
	})
	if err != nil {
		slog.Error("feedback_send_failed", "submission_id", sub.ID, "error", err)
		return sub, nil
	}
	sub.MessageID = res.MessageID
	if err := deps.Store.SetMessageID(ctx, sub.ID, res.MessageID); err != nil {
		slog.Warn("feedback_message_id_failed", "submission_id", sub.ID, "error", err)
	}

	slog.Info("feedback_submitted", "submission_id", sub.ID, "delivered", true)
	return sub, nil
}

func feedbackText(s domain.Submission) string {
	var sb strings.Builder
	sb.WriteString(s.Message)
	sb.WriteString("\n\n---\n")
	fmt.Fprintf(&sb, "PSN: %s\nMode: %s\nRoute: %s\nUser-Agent: %s\nSubmitted: %s\n",
		orDash(s.PSN), s.Mode, s.Route, s.UserAgent, s.SubmittedAt.Format(time.RFC3339))
	return sb.String()
}

func feedbackHTML(s domain.Submission) string {
	var sb strings.Builder
	sb.WriteString("<p>")
	sb.WriteString(strings.ReplaceAll(html.EscapeString(s.Message), "\n", "<br>"))
	sb.WriteString("</p><hr><table>")
	for _, row := range [][2]string{
		{"PSN", orDash(s.PSN)},
		{"Mode", s.Mode},
		{"Route", s.Route},
		{"User-Agent", s.UserAgent},
		{"Submitted", s.SubmittedAt.Format(time.RFC3339)},
	} {
		fmt.Fprintf(&sb, "<tr><th>%s</th><td><code>%s</code></td></tr>", row[0], html.EscapeString(row[1]))
	}
	sb.WriteString("</table>")
	return sb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
