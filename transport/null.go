package transport

import (
	"context"
	"log/slog"
	"time"
)

// NullClient logs directives instead of delivering them. Used for dry runs
// and in tests; it also records what it saw so tests can assert on it.
type NullClient struct {
	logger *slog.Logger

	Deleted  []string
	Timeouts []TimeoutCall
	Bans     []string
	Said     []string
}

type TimeoutCall struct {
	UserID   string
	Duration time.Duration
	Reason   string
}

func NewNullClient(logger *slog.Logger) *NullClient {
	if logger == nil {
		logger = slog.Default().With("system", "transport")
	}
	return &NullClient{logger: logger}
}

var _ Client = (*NullClient)(nil)

func (c *NullClient) DeleteMessage(ctx context.Context, channel, messageID string) error {
	c.logger.Info("dry-run delete", "channel", channel, "messageID", messageID)
	c.Deleted = append(c.Deleted, messageID)
	return nil
}

func (c *NullClient) TimeoutUser(ctx context.Context, channel, userID string, duration time.Duration, reason string) error {
	c.logger.Info("dry-run timeout", "channel", channel, "userID", userID, "duration", duration, "reason", reason)
	c.Timeouts = append(c.Timeouts, TimeoutCall{UserID: userID, Duration: duration, Reason: reason})
	return nil
}

func (c *NullClient) BanUser(ctx context.Context, channel, userID, reason string) error {
	c.logger.Info("dry-run ban", "channel", channel, "userID", userID, "reason", reason)
	c.Bans = append(c.Bans, userID)
	return nil
}

func (c *NullClient) Say(ctx context.Context, channel, text string) error {
	c.logger.Info("dry-run say", "channel", channel, "text", text)
	c.Said = append(c.Said, text)
	return nil
}
