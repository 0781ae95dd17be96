package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/streamguard/streamguard/automod/engine"
)

var chatCursorKey = "broom/seq"

// ChatEvent is the wire format of a single chat relay event. One JSON object
// per websocket frame.
type ChatEvent struct {
	Seq       int64  `json:"seq"`
	Type      string `json:"type"`
	Channel   string `json:"channel"`
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Text      string `json:"text"`

	Subscriber  bool `json:"subscriber"`
	VIP         bool `json:"vip"`
	Moderator   bool `json:"moderator"`
	Broadcaster bool `json:"broadcaster"`
	Echo        bool `json:"echo"`
}

// ChatConsumer subscribes to a chat relay websocket and feeds each message
// event through the moderation engine. All events from one connection are
// handled sequentially on the consumer goroutine; the engine relies on that
// for its cooldown and config state.
type ChatConsumer struct {
	Logger      *slog.Logger
	RedisClient *redis.Client
	Engine      *engine.Engine
	Host        string
	AuthToken   string
	Channels    []string

	// lastSeq is the most recent event sequence number we've handled.
	// Periodically persisted to redis if redis is present. Read and updated
	// with atomics: the persist loop runs on its own goroutine.
	lastSeq int64
}

// Run dials the relay and consumes events until the context is canceled,
// reconnecting with backoff on connection failures.
func (cc *ChatConsumer) Run(ctx context.Context) error {
	if cc.Engine == nil {
		return fmt.Errorf("nil engine")
	}

	cur, err := cc.ReadLastCursor(ctx)
	if err != nil {
		return err
	}

	u, err := url.Parse(cc.Host)
	if err != nil {
		return fmt.Errorf("invalid Host URI: %w", err)
	}
	u.Path = "/chat/subscribe"
	query := url.Values{}
	if cur != 0 {
		query.Set("cursor", fmt.Sprintf("%d", cur))
	}
	for _, channel := range cc.Channels {
		query.Add("channel", channel)
	}
	u.RawQuery = query.Encode()

	header := http.Header{
		"User-Agent": []string{fmt.Sprintf("broom/%s", versioninfo.Short())},
	}
	if cc.AuthToken != "" {
		header.Set("Authorization", "Bearer "+cc.AuthToken)
	}

	var backoff int
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		cc.Logger.Info("subscribing to chat event stream", "upstream", cc.Host, "cursor", atomic.LoadInt64(&cc.lastSeq))
		con, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
		if err != nil {
			cc.Logger.Warn("dialing chat relay failed", "err", err)
			time.Sleep(sleepForBackoff(backoff))
			backoff++
			continue
		}
		backoff = 0

		if err := cc.handleConnection(ctx, con); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			cc.Logger.Warn("chat relay connection failed", "err", err)
		}
		// resume from the last handled seq on reconnect
		if seq := atomic.LoadInt64(&cc.lastSeq); seq > 0 {
			query.Set("cursor", fmt.Sprintf("%d", seq))
			u.RawQuery = query.Encode()
		}
	}
}

func (cc *ChatConsumer) handleConnection(ctx context.Context, con *websocket.Conn) error {
	defer con.Close()

	go func() {
		<-ctx.Done()
		con.Close()
	}()

	for {
		_, data, err := con.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading chat event: %w", err)
		}
		var evt ChatEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			cc.Logger.Error("invalid chat event frame", "err", err)
			continue
		}
		if evt.Seq > 0 {
			atomic.StoreInt64(&cc.lastSeq, evt.Seq)
		}
		cc.HandleChatEvent(ctx, &evt)
	}
}

// HandleChatEvent routes one event: admin commands get a reply posted back to
// the channel, everything else goes through the moderation pipeline. Errors
// are logged, never fatal to the stream.
func (cc *ChatConsumer) HandleChatEvent(ctx context.Context, evt *ChatEvent) {
	if evt.Type != "message" {
		return
	}
	msg := &engine.ChatMessage{
		ID:            evt.MessageID,
		Channel:       evt.Channel,
		UserID:        evt.UserID,
		Username:      evt.Username,
		Text:          evt.Text,
		IsSubscriber:  evt.Subscriber,
		IsVIP:         evt.VIP,
		IsMod:         evt.Moderator,
		IsBroadcaster: evt.Broadcaster,
		Echo:          evt.Echo,
	}

	if strings.HasPrefix(msg.Text, "!") {
		if reply, handled := cc.Engine.HandleCommand(ctx, msg); handled {
			if err := cc.Engine.Client.Say(ctx, msg.Channel, reply); err != nil {
				cc.Logger.Error("posting command reply failed", "err", err, "channel", msg.Channel)
			}
			return
		}
	}

	if err := cc.Engine.ProcessMessage(ctx, msg); err != nil {
		cc.Logger.Error("processing chat message failed", "err", err, "channel", msg.Channel, "user", msg.UserID)
	}
}

func (cc *ChatConsumer) ReadLastCursor(ctx context.Context) (int64, error) {
	// if redis isn't configured, just skip
	if cc.RedisClient == nil {
		cc.Logger.Info("redis not configured, skipping cursor read")
		return 0, nil
	}

	val, err := cc.RedisClient.Get(ctx, chatCursorKey).Int64()
	if err == redis.Nil {
		cc.Logger.Info("no pre-existing cursor in redis")
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	atomic.StoreInt64(&cc.lastSeq, val)
	cc.Logger.Info("found prior subscription cursor seq in redis", "seq", val)
	return val, nil
}

func (cc *ChatConsumer) PersistCursor(ctx context.Context) error {
	// if redis isn't configured, just skip
	if cc.RedisClient == nil {
		return nil
	}
	lastSeq := atomic.LoadInt64(&cc.lastSeq)
	if lastSeq <= 0 {
		return nil
	}
	return cc.RedisClient.Set(ctx, chatCursorKey, lastSeq, 14*24*time.Hour).Err()
}

// RunPersistCursor persists the current cursor every 5 seconds until the
// context is canceled, then writes a final value.
func (cc *ChatConsumer) RunPersistCursor(ctx context.Context) error {
	if cc.RedisClient == nil {
		return nil
	}
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if lastSeq := atomic.LoadInt64(&cc.lastSeq); lastSeq >= 1 {
				cc.Logger.Info("persisting final cursor seq value", "seq", lastSeq)
				if err := cc.PersistCursor(context.Background()); err != nil {
					cc.Logger.Error("failed to persist cursor", "err", err, "seq", lastSeq)
				}
			}
			return nil
		case <-ticker.C:
			if err := cc.PersistCursor(ctx); err != nil {
				cc.Logger.Error("failed to persist cursor", "err", err)
			}
		}
	}
}

func sleepForBackoff(b int) time.Duration {
	if b == 0 {
		return 0
	}
	if b < 10 {
		return (time.Second * time.Duration(b) * 2) + (time.Millisecond * time.Duration(rand.Intn(1000)))
	}
	return time.Second * 30
}
