package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/streamguard/streamguard/automod/strikes"
)

func strikesHistoryEntry(userID, action string, at time.Time) strikes.HistoryEntry {
	return strikes.HistoryEntry{
		UserID:      userID,
		Username:    "bob",
		Reason:      "spam",
		ActionTaken: action,
		Moderator:   "AutoMod",
		Channel:     "chan",
		CreatedAt:   at,
	}
}

func testGormStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	store, err := NewGormStore(db)
	require.NoError(t, err)
	return store
}

func TestGormStoreUsers(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	store := testGormStore(t)

	u, err := store.GetOrCreateUser(ctx, "u1", "bob")
	require.NoError(err)
	assert.Equal(50, u.TrustScore)

	// rename propagates on the next lookup
	u, err = store.GetOrCreateUser(ctx, "u1", "bobby")
	require.NoError(err)
	assert.Equal("bobby", u.Username)

	require.NoError(store.RecordUserMessage(ctx, "u1"))
	u, err = store.GetOrCreateUser(ctx, "u1", "bobby")
	require.NoError(err)
	assert.Equal(1, u.MessageCount)
	require.NotNil(u.LastMessage)

	score, err := store.AdjustTrust(ctx, "u1", -5)
	require.NoError(err)
	assert.Equal(45, score)
	score, err = store.AdjustTrust(ctx, "u1", 999)
	require.NoError(err)
	assert.Equal(100, score)

	score, err = store.AdjustTrust(ctx, "nobody", -5)
	require.NoError(err)
	assert.Equal(50, score, "unknown user reads neutral")
}

func TestGormStoreStrikes(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	store := testGormStore(t)

	rec, err := store.Get(ctx, "u1")
	require.NoError(err)
	assert.Equal(0, rec.Count)

	rec, err = store.Increment(ctx, "u1", "spam", time.Now().Add(time.Hour))
	require.NoError(err)
	assert.Equal(1, rec.Count)
	rec, err = store.Increment(ctx, "u1", "more spam", time.Now().Add(time.Hour))
	require.NoError(err)
	assert.Equal(2, rec.Count)
	assert.Equal("more spam", rec.LastReason)

	// lapsed window resets on the next increment
	_, err = store.Increment(ctx, "u2", "old", time.Now().Add(-time.Minute))
	require.NoError(err)
	rec, err = store.Get(ctx, "u2")
	require.NoError(err)
	assert.Equal(0, rec.Count)
	rec, err = store.Increment(ctx, "u2", "new", time.Now().Add(time.Hour))
	require.NoError(err)
	assert.Equal(1, rec.Count)

	cleared, err := store.Clear(ctx, "u1")
	require.NoError(err)
	assert.True(cleared)
	cleared, err = store.Clear(ctx, "u1")
	require.NoError(err)
	assert.False(cleared)
}

func TestGormStoreStrikeHistory(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	store := testGormStore(t)

	base := time.Now().Add(-time.Hour)
	for i, action := range []string{"warn", "timeout:60", "timeout:600"} {
		require.NoError(store.AppendHistory(ctx, strikesHistoryEntry("u1", action, base.Add(time.Duration(i)*time.Minute))))
	}

	hist, err := store.History(ctx, "u1", 2)
	require.NoError(err)
	require.Len(hist, 2)
	assert.Equal("timeout:600", hist[0].ActionTaken)
	assert.Equal("timeout:60", hist[1].ActionTaken)
}

func TestGormStorePermitsAndSettings(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	store := testGormStore(t)

	require.NoError(store.GrantPermit(ctx, "u1", "mod", time.Minute))
	// re-grant replaces instead of failing on the primary key
	require.NoError(store.GrantPermit(ctx, "u1", "othermod", time.Minute))
	ok, err := store.HasValidPermit(ctx, "u1")
	require.NoError(err)
	assert.True(ok)

	settings, err := store.GetFilterSettings(ctx, "chan")
	require.NoError(err)
	assert.Equal(15, settings.EmoteMaxCount)

	settings.EmoteMaxCount = 5
	require.NoError(store.UpdateFilterSettings(ctx, settings))
	require.NoError(store.UpdateFilterSettings(ctx, settings))
	settings, err = store.GetFilterSettings(ctx, "chan")
	require.NoError(err)
	assert.Equal(5, settings.EmoteMaxCount)
}
