package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRelayClientDirectives(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	var got []directive
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/moderation/enforce", r.URL.Path)
		assert.Equal("Bearer secret", r.Header.Get("Authorization"))
		var d directive
		require.NoError(json.NewDecoder(r.Body).Decode(&d))
		got = append(got, d)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewRelayClient(srv.URL, "secret", rate.NewLimiter(rate.Inf, 1))

	require.NoError(client.DeleteMessage(ctx, "chan", "msg-1"))
	require.NoError(client.TimeoutUser(ctx, "chan", "u1", 10*time.Minute, "spam"))
	require.NoError(client.BanUser(ctx, "chan", "u1", "strike 5"))
	require.NoError(client.Say(ctx, "chan", "@bob Warning: spam"))

	require.Len(got, 4)
	assert.Equal(directive{Type: "delete", Channel: "chan", MessageID: "msg-1"}, got[0])
	assert.Equal(600, got[1].DurationSeconds)
	assert.Equal("timeout", got[1].Type)
	assert.Equal("ban", got[2].Type)
	assert.Equal("@bob Warning: spam", got[3].Text)
}

func TestRelayClientErrorStatus(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewRelayClient(srv.URL, "", nil)
	err := client.BanUser(ctx, "chan", "u1", "spam")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestNullClientRecords(t *testing.T) {
	ctx := context.Background()
	client := NewNullClient(nil)

	require.NoError(t, client.DeleteMessage(ctx, "chan", "m1"))
	require.NoError(t, client.TimeoutUser(ctx, "chan", "u1", time.Minute, "spam"))
	require.NoError(t, client.Say(ctx, "chan", "hello"))

	assert.Equal(t, []string{"m1"}, client.Deleted)
	require.Len(t, client.Timeouts, 1)
	assert.Equal(t, time.Minute, client.Timeouts[0].Duration)
	assert.Equal(t, []string{"hello"}, client.Said)
}
