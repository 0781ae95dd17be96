package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamguard/streamguard/storage"
)

func modCommand(text string) *ChatMessage {
	return &ChatMessage{
		Channel:  "chan",
		UserID:   "mod1",
		Username: "mod1",
		Text:     text,
		IsMod:    true,
	}
}

func ownerCommand(text string) *ChatMessage {
	msg := modCommand(text)
	msg.UserID = "streamer"
	msg.Username = "streamer"
	msg.IsBroadcaster = true
	return msg
}

func TestCommandsRequireModerator(t *testing.T) {
	ctx := context.Background()
	eng := EngineTestFixture()

	_, handled := eng.HandleCommand(ctx, &ChatMessage{Username: "pleb", Text: "!automod off"})
	assert.False(t, handled)

	_, handled = eng.HandleCommand(ctx, modCommand("just chatting"))
	assert.False(t, handled, "non-commands pass through")

	_, handled = eng.HandleCommand(ctx, modCommand("!uptime"))
	assert.False(t, handled, "unowned commands pass through")
}

func TestAutomodToggleOwnerOnly(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	reply, handled := eng.HandleCommand(ctx, modCommand("!automod off"))
	assert.True(handled)
	assert.Contains(reply, "Only the owner")
	assert.True(eng.Config.Enabled)

	reply, handled = eng.HandleCommand(ctx, ownerCommand("!automod off"))
	assert.True(handled)
	assert.Contains(reply, "AutoMod is now DISABLED.")
	assert.False(eng.Config.Enabled)

	reply, _ = eng.HandleCommand(ctx, ownerCommand("!automod on"))
	assert.Contains(reply, "AutoMod is now ENABLED.")
	assert.True(eng.Config.Enabled)
}

func TestAutomodSensitivity(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	reply, _ := eng.HandleCommand(ctx, ownerCommand("!automod sensitivity high"))
	assert.Contains(reply, "sensitivity set to HIGH")
	assert.Equal("high", eng.Detector.Sensitivity())

	reply, _ = eng.HandleCommand(ctx, ownerCommand("!automod sensitivity bogus"))
	assert.Contains(reply, "Valid options: low, medium, high")
	assert.Equal("high", eng.Detector.Sensitivity(), "bad value keeps the current profile")
}

func TestAutomodStatus(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	require.NoError(eng.Store.LogAction(ctx, &storage.ModAction{UserID: "u1", Action: "delete"}))
	require.NoError(eng.Store.LogAction(ctx, &storage.ModAction{UserID: "u2", Action: "delete"}))
	require.NoError(eng.Store.LogAction(ctx, &storage.ModAction{UserID: "u3", Action: "timeout"}))

	reply, handled := eng.HandleCommand(ctx, modCommand("!automod status"))
	assert.True(handled)
	assert.Contains(reply, "AutoMod: ENABLED | Sensitivity: MEDIUM | Strikes: ON | 24h actions: 3 (delete: 2, timeout: 1)")
}

func TestStrikeCommands(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	reply, _ := eng.HandleCommand(ctx, modCommand("!strikes @bob"))
	assert.Contains(reply, "@bob has no strikes.")

	reply, _ = eng.HandleCommand(ctx, modCommand("!addstrike @bob posting spam links"))
	assert.Contains(reply, "@bob Warning: posting spam links")

	reply, _ = eng.HandleCommand(ctx, modCommand("!strikes @bob"))
	assert.Contains(reply, "@bob: 1/5 strikes")

	reply, _ = eng.HandleCommand(ctx, modCommand("!clearstrikes @bob"))
	assert.Contains(reply, "Cleared strikes for bob")
	reply, _ = eng.HandleCommand(ctx, modCommand("!clearstrikes @bob"))
	assert.Contains(reply, "No strikes found for bob")
}

func TestWhitelistCommands(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	reply, _ := eng.HandleCommand(ctx, modCommand("!whitelist @Bob"))
	assert.Contains(reply, "bob has been added to the whitelist.")

	in, err := eng.Store.IsWhitelisted(ctx, "bob")
	require.NoError(err)
	assert.True(in)
	in, err = eng.Sets.InSet(ctx, userWhitelistSet, "bob")
	require.NoError(err)
	assert.True(in)

	reply, _ = eng.HandleCommand(ctx, modCommand("!unwhitelist @bob"))
	assert.Contains(reply, "bob has been removed from the whitelist.")
	in, err = eng.Store.IsWhitelisted(ctx, "bob")
	require.NoError(err)
	assert.False(in)
}

func TestPermitCommand(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	reply, _ := eng.HandleCommand(ctx, modCommand("!permit @bob"))
	assert.Contains(reply, "bob can post links for 60 seconds.")

	ok, err := eng.Store.HasValidPermit(ctx, "bob")
	require.NoError(err)
	assert.True(ok)
}

func TestModlogCommand(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	reply, _ := eng.HandleCommand(ctx, modCommand("!modlog"))
	assert.Contains(reply, "No recent moderation actions.")

	for i := 0; i < 5; i++ {
		require.NoError(eng.Store.LogAction(ctx, &storage.ModAction{
			UserID: "u1", Username: "bob", Action: "delete", SpamScore: 55,
		}))
	}
	reply, _ = eng.HandleCommand(ctx, modCommand("!modlog"))
	assert.Contains(reply, "Recent actions: bob: delete (score: 55)")
	assert.Contains(reply, "and 2 more.")
}

func TestCheckUserCommand(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	reply, _ := eng.HandleCommand(ctx, modCommand("!checkuser @ghost"))
	assert.Contains(reply, "No data for ghost.")

	_, err := eng.Store.GetOrCreateUser(ctx, "bob", "bob")
	require.NoError(err)
	require.NoError(eng.Store.RecordUserMessage(ctx, "bob"))

	reply, _ = eng.HandleCommand(ctx, modCommand("!checkuser @bob"))
	assert.Contains(reply, "bob: Trust: 50/100 | Messages: 1 | Warnings: 0 | Strikes: 0/5 | Whitelisted: No")
}
