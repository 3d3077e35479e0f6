package slack

import (
	"fmt"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/ufflow/oats/pkg/models"
)

// Slack caps section text at 3000 characters; stay under it with room
// for the truncation hint.
const maxBlockTextLength = 2900

var statusEmoji = map[models.InvestigationState]string{
	models.StateSucceeded: ":white_check_mark:",
	models.StateFailed:    ":x:",
	models.StateTimedOut:  ":hourglass:",
	models.StateCancelled: ":no_entry_sign:",
}

var statusLabel = map[models.InvestigationState]string{
	models.StateSucceeded: "Investigation Succeeded",
	models.StateFailed:    "Investigation Failed",
	models.StateTimedOut:  "Investigation Timed Out",
	models.StateCancelled: "Investigation Cancelled",
}

func investigationURL(id, dashboardURL string) string {
	return fmt.Sprintf("%s/investigations/%s", dashboardURL, id)
}

// BuildStartedMessage creates Block Kit blocks for an investigation
// submission notice.
func BuildStartedMessage(inv *models.Investigation, dashboardURL string) []goslack.Block {
	text := fmt.Sprintf(":mag: *Investigation started*\n> %s\nJob `%s` in `%s`, budget %d turns.",
		truncateForSlack(inv.Goal), inv.JobName, inv.Namespace, inv.TurnBudget)
	if dashboardURL != "" {
		text += fmt.Sprintf("\n<%s|View live stream>", investigationURL(inv.ID, dashboardURL))
	}

	return []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
			nil, nil,
		),
	}
}

// BuildTerminalMessage creates Block Kit blocks for a terminal
// investigation notice. The record must already be terminal.
func BuildTerminalMessage(inv *models.Investigation, dashboardURL string) []goslack.Block {
	emoji := statusEmoji[inv.State]
	if emoji == "" {
		emoji = ":question:"
	}
	label := statusLabel[inv.State]
	if label == "" {
		label = "Investigation " + string(inv.State)
	}

	header := fmt.Sprintf("%s *%s*\n> %s", emoji, label, truncateForSlack(inv.Goal))
	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, header, false, false),
			nil, nil,
		),
	}

	var body string
	if inv.TerminalAt != nil {
		body = fmt.Sprintf("Job `%s` ran %s.", inv.JobName,
			inv.TerminalAt.Sub(inv.CreatedAt).Round(time.Second))
	}
	if inv.State != models.StateSucceeded && inv.Error != "" {
		body += fmt.Sprintf("\n\n*Detail:*\n%s", truncateForSlack(inv.Error))
	}
	if body != "" {
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, body, false, false),
			nil, nil,
		))
	}

	if dashboardURL != "" {
		buttonText := "View Event Log"
		if inv.State != models.StateSucceeded {
			buttonText = "View Details"
		}
		btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, buttonText, false, false))
		btn.URL = investigationURL(inv.ID, dashboardURL)
		blocks = append(blocks, goslack.NewActionBlock("", btn))
	}

	return blocks
}

// truncateForSlack bounds text by character count, which is how Slack
// measures block length, without splitting a multi-byte rune.
func truncateForSlack(text string) string {
	runes := []rune(text)
	if len(runes) <= maxBlockTextLength {
		return text
	}
	return string(runes[:maxBlockTextLength]) + "\n\n_... (truncated; replay the full event log via the API)_"
}
