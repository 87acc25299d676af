package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// TeamsNotifier sends notifications to Microsoft Teams via webhook
type TeamsNotifier struct {
	webhookURL string
	client     *http.Client
}

// TeamsOption is a functional option for TeamsNotifier
type TeamsOption func(*TeamsNotifier)

// WithTeamsClient replaces the HTTP client.
func WithTeamsClient(c *http.Client) TeamsOption {
	return func(t *TeamsNotifier) {
		t.client = c
	}
}

// NewTeamsNotifier creates a new Teams notifier
func NewTeamsNotifier(webhookURL string, opts ...TeamsOption) *TeamsNotifier {
	t := &TeamsNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: DefaultTimeout},
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *TeamsNotifier) Name() string {
	return "teams"
}

// teamsMessage wraps one Adaptive Card.
type teamsMessage struct {
	Type        string      `json:"type"`
	Attachments []teamsCard `json:"attachments"`
}

type teamsCard struct {
	ContentType string           `json:"contentType"`
	Content     teamsCardContent `json:"content"`
}

type teamsCardContent struct {
	Schema  string       `json:"$schema"`
	Type    string       `json:"type"`
	Version string       `json:"version"`
	Body    []teamsBlock `json:"body"`
}

type teamsBlock struct {
	Type      string      `json:"type"`
	Size      string      `json:"size,omitempty"`
	Weight    string      `json:"weight,omitempty"`
	Text      string      `json:"text,omitempty"`
	Color     string      `json:"color,omitempty"`
	Wrap      bool        `json:"wrap,omitempty"`
	Facts     []teamsFact `json:"facts,omitempty"`
	Spacing   string      `json:"spacing,omitempty"`
	Separator bool        `json:"separator,omitempty"`
}

type teamsFact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// Notify sends a notification to Microsoft Teams
func (t *TeamsNotifier) Notify(ctx context.Context, summary *RunSummary) error {
	color := "good"
	if !summary.Success() {
		color = "attention"
	}

	body := []teamsBlock{
		{
			Type:   "TextBlock",
			Size:   "Large",
			Weight: "Bolder",
			Text:   summary.title(),
			Color:  color,
		},
		{
			Type:      "FactSet",
			Separator: true,
			Spacing:   "Medium",
			Facts: []teamsFact{
				{Title: "Total", Value: fmt.Sprint(summary.Total)},
				{Title: "Passed", Value: fmt.Sprint(summary.Passed)},
				{Title: "Failed", Value: fmt.Sprint(summary.Failed + summary.Errored)},
				{Title: "Blocked", Value: fmt.Sprint(summary.Blocked)},
				{Title: "Skipped", Value: fmt.Sprint(summary.Skipped)},
				{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String()},
			},
		},
	}

	if len(summary.Failures) > 0 {
		body = append(body, teamsBlock{
			Type:      "TextBlock",
			Text:      "**Did not pass:**",
			Separator: true,
			Spacing:   "Medium",
		})
		for _, f := range summary.Failures {
			body = append(body, teamsBlock{Type: "TextBlock", Text: "- " + f.line(), Wrap: true})
		}
	}

	footer := "_depspec"
	if summary.RunID != "" {
		footer += " run " + summary.RunID
	}
	body = append(body, teamsBlock{
		Type:      "TextBlock",
		Text:      footer + "_",
		Separator: true,
		Spacing:   "Medium",
	})

	msg := teamsMessage{
		Type: "message",
		Attachments: []teamsCard{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content: teamsCardContent{
				Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
				Type:    "AdaptiveCard",
				Version: "1.2",
				Body:    body,
			},
		}},
	}

	return postJSON(ctx, t.client, t.webhookURL, msg, http.StatusOK, http.StatusAccepted)
}
