package consumer

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamguard/streamguard/automod/engine"
	"github.com/streamguard/streamguard/transport"
)

func testConsumer() (*ChatConsumer, *transport.NullClient) {
	eng := engine.EngineTestFixture()
	return &ChatConsumer{
		Logger: slog.Default(),
		Engine: eng,
		Host:   "ws://relay.example",
	}, eng.Client.(*transport.NullClient)
}

func TestHandleChatEventRouting(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	cc, client := testConsumer()

	// non-message events are ignored
	cc.HandleChatEvent(ctx, &ChatEvent{Type: "join", Channel: "chan", UserID: "u1"})

	cc.HandleChatEvent(ctx, &ChatEvent{
		Type:     "message",
		Channel:  "chan",
		UserID:   "u1",
		Username: "alice",
		Text:     "hello everyone",
	})
	assert.Empty(client.Said)

	user, err := cc.Engine.Store.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(1, user.MessageCount)
}

func TestHandleChatEventCommandReply(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	cc, client := testConsumer()

	cc.HandleChatEvent(ctx, &ChatEvent{
		Type:      "message",
		Channel:   "chan",
		UserID:    "mod1",
		Username:  "mod1",
		Text:      "!strikes @bob",
		Moderator: true,
	})

	require.Len(t, client.Said, 1)
	assert.Contains(client.Said[0], "@bob has no strikes.")

	// commands the engine does not own fall through to the pipeline
	cc.HandleChatEvent(ctx, &ChatEvent{
		Type:      "message",
		Channel:   "chan",
		UserID:    "mod1",
		Username:  "mod1",
		Text:      "!uptime",
		Moderator: true,
	})
	assert.Len(client.Said, 1)
}

func TestConsumeWebsocketStream(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	cc, _ := testConsumer()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		con, err := upgrader.Upgrade(w, r, nil)
		require.NoError(err)
		defer con.Close()
		frames := []string{
			`{"seq": 41, "type": "message", "channel": "chan", "user_id": "u1", "username": "alice", "text": "hello"}`,
			`not json`,
			`{"seq": 42, "type": "message", "channel": "chan", "user_id": "u1", "username": "alice", "text": "hello again"}`,
		}
		for _, frame := range frames {
			require.NoError(con.WriteMessage(websocket.TextMessage, []byte(frame)))
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	con, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(err)

	err = cc.handleConnection(ctx, con)
	assert.Error(err, "stream ends when the server hangs up")

	user, err := cc.Engine.Store.GetUser(ctx, "u1")
	require.NoError(err)
	require.NotNil(user)
	assert.Equal(2, user.MessageCount, "malformed frames are skipped, valid ones processed")
	assert.EqualValues(42, cc.lastSeq)
}
