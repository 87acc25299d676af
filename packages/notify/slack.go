package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SlackNotifier sends notifications to Slack via webhook
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	client     *http.Client
}

// SlackOption is a functional option for SlackNotifier
type SlackOption func(*SlackNotifier)

// WithSlackChannel sets the Slack channel
func WithSlackChannel(channel string) SlackOption {
	return func(s *SlackNotifier) {
		s.channel = channel
	}
}

// WithSlackUsername sets the Slack bot username
func WithSlackUsername(username string) SlackOption {
	return func(s *SlackNotifier) {
		s.username = username
	}
}

// WithSlackClient replaces the HTTP client.
func WithSlackClient(c *http.Client) SlackOption {
	return func(s *SlackNotifier) {
		s.client = c
	}
}

// NewSlackNotifier creates a new Slack notifier
func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		username:   "depspec",
		iconEmoji:  ":link:",
		client:     &http.Client{Timeout: DefaultTimeout},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *SlackNotifier) Name() string {
	return "slack"
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	TS     int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Notify sends a notification to Slack
func (s *SlackNotifier) Notify(ctx context.Context, summary *RunSummary) error {
	color := "good"
	emoji := ":white_check_mark:"
	switch {
	case !summary.Success():
		color = "danger"
		emoji = ":x:"
	case summary.IsRecovery:
		emoji = ":tada:"
	}

	fields := []slackField{
		{Title: "Total", Value: strconv.Itoa(summary.Total), Short: true},
		{Title: "Passed", Value: strconv.Itoa(summary.Passed), Short: true},
		{Title: "Failed", Value: strconv.Itoa(summary.Failed + summary.Errored), Short: true},
		{Title: "Blocked", Value: strconv.Itoa(summary.Blocked), Short: true},
		{Title: "Skipped", Value: strconv.Itoa(summary.Skipped), Short: true},
		{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String(), Short: true},
	}

	var text strings.Builder
	if len(summary.Failures) > 0 {
		text.WriteString("*Did not pass:*\n")
		for _, f := range summary.Failures {
			fmt.Fprintf(&text, "• `%s`\n", f.line())
		}
	}

	footer := "depspec"
	if summary.RunID != "" {
		footer += " run " + summary.RunID
	}

	msg := slackMessage{
		Channel:   s.channel,
		Username:  s.username,
		IconEmoji: s.iconEmoji,
		Attachments: []slackAttachment{{
			Color:  color,
			Title:  emoji + " " + summary.title(),
			Text:   text.String(),
			Fields: fields,
			Footer: footer,
			TS:     time.Now().Unix(),
		}},
	}

	return postJSON(ctx, s.client, s.webhookURL, msg, http.StatusOK)
}
