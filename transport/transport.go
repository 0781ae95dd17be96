// Package transport delivers enforcement directives to the chat platform.
// The engine decides; a Client carries the decision out. The relay client
// speaks to a bot relay over HTTP, the null client just logs (dry runs and
// tests).
package transport

import (
	"context"
	"time"
)

// Client executes enforcement against a channel. Implementations apply
// their own request timeout; callers do not retry, a failed directive is
// logged and dropped.
type Client interface {
	DeleteMessage(ctx context.Context, channel, messageID string) error
	TimeoutUser(ctx context.Context, channel, userID string, duration time.Duration, reason string) error
	BanUser(ctx context.Context, channel, userID, reason string) error
	Say(ctx context.Context, channel, text string) error
}
