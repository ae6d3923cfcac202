package slacknotifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"

	"autoCoinBot/internal/ports"
)

// Client posts notifications to Slack. Rate-limited rejections from the API
// are surfaced in the PostResult so the dispatcher can queue the message
// instead of treating the send as a hard failure.
type Client struct {
	api    *slack.Client
	logger ports.Logger
}

// Config holds the configuration for the Slack transport.
type Config struct {
	Token  string
	Logger ports.Logger
}

// NewClient creates a Slack transport.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("slack token is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for slack client")
	}
	return &Client{
		api:    slack.New(cfg.Token),
		logger: cfg.Logger,
	}, nil
}

// Post sends text to a Slack channel.
func (c *Client) Post(ctx context.Context, channel, text string) (ports.PostResult, error) {
	op := "SlackClient.Post"
	_, _, err := c.api.PostMessageContext(ctx, channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionAsUser(true),
	)
	if err == nil {
		return ports.PostResult{OK: true}, nil
	}

	var rle *slack.RateLimitedError
	if errors.As(err, &rle) {
		c.logger.Warn(ctx, "Slack rate limited", map[string]interface{}{
			"op": op, "channel": channel, "retryAfter": rle.RetryAfter.String(),
		})
		return ports.PostResult{RateLimited: true}, nil
	}

	c.logger.Error(ctx, err, "Slack post failed", map[string]interface{}{
		"op": op, "channel": channel,
	})
	return ports.PostResult{}, fmt.Errorf("%s: %w", op, err)
}
