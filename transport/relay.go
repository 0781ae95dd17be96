package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultRequestTimeout = 5 * time.Second

// directive is the wire form posted to the relay.
type directive struct {
	Type            string `json:"type"`
	Channel         string `json:"channel"`
	UserID          string `json:"user_id,omitempty"`
	MessageID       string `json:"message_id,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Reason          string `json:"reason,omitempty"`
	Text            string `json:"text,omitempty"`
}

// RelayClient posts directives to the process that owns the chat connection.
// Requests carry a bounded timeout and pass through a shared rate limiter so
// a misbehaving channel cannot flood the relay.
type RelayClient struct {
	// Host should have method and hostname, no path or trailing slash.
	Host       string
	AuthToken  string
	Limiter    *rate.Limiter
	HTTPClient *http.Client
	// Timeout bounds each request; zero means the 5s default.
	Timeout time.Duration
}

func NewRelayClient(host, authToken string, limiter *rate.Limiter) *RelayClient {
	return &RelayClient{
		Host:      host,
		AuthToken: authToken,
		Limiter:   limiter,
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				ForceAttemptHTTP2:   true,
				MaxIdleConns:        20,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

var _ Client = (*RelayClient)(nil)

func (c *RelayClient) DeleteMessage(ctx context.Context, channel, messageID string) error {
	return c.send(ctx, directive{
		Type:      "delete",
		Channel:   channel,
		MessageID: messageID,
	})
}

func (c *RelayClient) TimeoutUser(ctx context.Context, channel, userID string, duration time.Duration, reason string) error {
	return c.send(ctx, directive{
		Type:            "timeout",
		Channel:         channel,
		UserID:          userID,
		DurationSeconds: int(duration.Seconds()),
		Reason:          reason,
	})
}

func (c *RelayClient) BanUser(ctx context.Context, channel, userID, reason string) error {
	return c.send(ctx, directive{
		Type:    "ban",
		Channel: channel,
		UserID:  userID,
		Reason:  reason,
	})
}

func (c *RelayClient) Say(ctx context.Context, channel, text string) error {
	return c.send(ctx, directive{
		Type:    "say",
		Channel: channel,
		Text:    text,
	})
}

func (c *RelayClient) send(ctx context.Context, d directive) error {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("directive rate limit: %w", err)
		}
	}

	body, err := json.Marshal(d)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Host+"/moderation/enforce", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending %s directive: %w", d.Type, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s directive failed: relay status %d: %s", d.Type, resp.StatusCode, string(msg))
	}
	return nil
}
