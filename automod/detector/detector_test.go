package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDetector(t *testing.T, sensitivity string) *Detector {
	t.Helper()
	d, err := NewDetector(nil, sensitivity)
	require.NoError(t, err)
	return d
}

func TestAnalyzePrivilegedShortCircuit(t *testing.T) {
	assert := assert.New(t)
	d := testDetector(t, "medium")
	cfg := DefaultFilterConfig()

	spam := "FREE FOLLOWERS bit.ly/abc123 discord.gg/evil"

	for _, user := range []UserContext{
		{IsMod: true},
		{IsBroadcaster: true},
		{IsMod: true, IsBroadcaster: true},
	} {
		res := d.Analyze(spam, user, cfg)
		assert.Equal(0, res.Score)
		assert.Equal(ActionAllow, res.Action)
		assert.Equal([]string{"moderator_or_broadcaster"}, res.Reasons)
	}

	res := d.Analyze(spam, UserContext{IsWhitelisted: true}, cfg)
	assert.Equal(0, res.Score)
	assert.Equal(ActionAllow, res.Action)
	assert.Equal([]string{"whitelisted"}, res.Reasons)
}

func TestAnalyzeScenarioNewFollowerSpam(t *testing.T) {
	assert := assert.New(t)
	d := testDetector(t, "medium")

	// pattern +35, shortener on new account +25, excessive caps +20, new follower +5
	res := d.Analyze("FREE FOLLOWERS bit.ly/abc123", UserContext{
		FollowAgeDays: 2,
		MessageCount:  5,
	}, DefaultFilterConfig())

	assert.Equal(85, res.Score)
	assert.Equal(ActionTimeout, res.Action)
	assert.False(res.SubscriberProtected)
	assert.Contains(res.Reasons, "url_shortener_new_user:bit.ly")
	assert.Contains(res.Reasons, "new_follower")
	assert.NotEmpty(res.MatchedPatterns)
}

func TestAnalyzeScenarioSubscriberReduction(t *testing.T) {
	assert := assert.New(t)
	d := testDetector(t, "medium")

	// same message as above, minus the subscriber trust signal: 85 - 30 = 55
	res := d.Analyze("FREE FOLLOWERS bit.ly/abc123", UserContext{
		FollowAgeDays: 2,
		MessageCount:  5,
		IsSubscriber:  true,
	}, DefaultFilterConfig())

	assert.Equal(55, res.Score)
	assert.Equal(ActionDelete, res.Action)
	assert.Contains(res.Reasons, "subscriber_reduction")
}

func TestAnalyzeCleanMessage(t *testing.T) {
	assert := assert.New(t)
	d := testDetector(t, "medium")

	res := d.Analyze("good game everyone", UserContext{
		FollowAgeDays: 90,
		MessageCount:  50,
	}, DefaultFilterConfig())

	assert.Equal(0, res.Score)
	assert.Equal(ActionAllow, res.Action)
}

func TestAnalyzeObfuscatedPattern(t *testing.T) {
	assert := assert.New(t)
	d := testDetector(t, "medium")

	// one regex and two exact terms fire, two of them only on the folded text
	res := d.Analyze("fr33 f0ll0w3rs here", UserContext{FollowAgeDays: 100, MessageCount: 50}, DefaultFilterConfig())
	assert.GreaterOrEqual(res.Score, 10)
	assert.Contains(res.Reasons, "spam_pattern_match (3 patterns)")
}

func TestAnalyzeLookalikeDisabled(t *testing.T) {
	assert := assert.New(t)
	d := testDetector(t, "medium")
	cfg := DefaultFilterConfig()
	cfg.LookalikeEnabled = false

	// this phrasing only hits patterns after homoglyph folding; the raw-term list
	// still catches the canonical obfuscations, so pick one it doesn't carry
	res := d.Analyze("che4p f0ll0wers here", UserContext{FollowAgeDays: 100, MessageCount: 50}, cfg)
	for _, r := range res.Reasons {
		assert.NotContains(r, "spam_pattern_match")
	}
}

func TestAnalyzeHeuristicGatingMonotonic(t *testing.T) {
	assert := assert.New(t)

	// no trust reductions in play, so the caps contribution is visible directly
	capsMsg := "STOP SPAMMING THIS CHAT RIGHT NOW EVERYONE"
	user := UserContext{FollowAgeDays: 10, MessageCount: 5}

	enabled := DefaultFilterConfig()
	disabled := DefaultFilterConfig()
	disabled.CapsEnabled = false

	dOn := testDetector(t, "medium")
	dOff := testDetector(t, "medium")
	on := dOn.Analyze(capsMsg, user, enabled)
	off := dOff.Analyze(capsMsg, user, disabled)
	assert.Greater(on.Score, off.Score)
	assert.NotContains(off.Reasons, "excessive_caps:100%")
}

func TestAnalyzeBanDowngradeForSubscriber(t *testing.T) {
	assert := assert.New(t)

	// stack enough signals to clear the high-profile ban threshold (75)
	msg := "FREE FOLLOWERS AND FREE BITCOIN discord.gg/evil bit.ly/scam CLICK NOW!!!!!!"
	user := UserContext{FollowAgeDays: 1}

	d := testDetector(t, "high")
	res := d.Analyze(msg, user, DefaultFilterConfig())
	assert.Equal(ActionBan, res.Action)
	assert.False(res.SubscriberProtected)

	d2 := testDetector(t, "high")
	user.IsSubscriber = true
	user.IsVIP = true
	res2 := d2.Analyze(msg, user, DefaultFilterConfig())
	if res2.Score >= 75 {
		assert.Equal(ActionTimeout, res2.Action)
		assert.True(res2.SubscriberProtected)
	}
}

func TestAnalyzeSimilarToRecentSpam(t *testing.T) {
	assert := assert.New(t)
	d := testDetector(t, "medium")
	user := UserContext{FollowAgeDays: 2}
	cfg := DefaultFilterConfig()

	first := d.Analyze("FREE FOLLOWERS bit.ly/abc123", user, cfg)
	assert.True(first.Action.Punitive())

	second := d.Analyze("FREE FOLLOWERS bit.ly/xyz789", user, cfg)
	assert.Contains(second.Reasons, "similar_to_recent_spam")
}

func TestAnalyzePermitReduction(t *testing.T) {
	assert := assert.New(t)

	user := UserContext{FollowAgeDays: 100, MessageCount: 50}
	msg := "check out example.com"

	d := testDetector(t, "medium")
	base := d.Analyze(msg, user, DefaultFilterConfig())

	user.HasPermit = true
	d2 := testDetector(t, "medium")
	permitted := d2.Analyze(msg, user, DefaultFilterConfig())
	assert.Less(permitted.Score, base.Score+1)
	assert.Contains(permitted.Reasons, "has_permit")
}

func TestSetSensitivity(t *testing.T) {
	assert := assert.New(t)
	d := testDetector(t, "medium")

	assert.NoError(d.SetSensitivity("high"))
	assert.Equal("high", d.Sensitivity())

	// unknown names keep the previous profile
	assert.Error(d.SetSensitivity("paranoid"))
	assert.Equal("high", d.Sensitivity())
}

func TestProfileThresholds(t *testing.T) {
	assert := assert.New(t)

	for _, name := range []string{"low", "medium", "high"} {
		p, err := ProfileByName(name)
		assert.NoError(err)
		assert.True(p.Valid(), "profile %s thresholds must be strictly ascending", name)
	}

	p, _ := ProfileByName("medium")
	fixtures := []struct {
		score  int
		action Action
	}{
		{0, ActionAllow},
		{30, ActionAllow},
		{31, ActionFlag},
		{50, ActionFlag},
		{51, ActionDelete},
		{70, ActionDelete},
		{71, ActionTimeout},
		{85, ActionTimeout},
		{86, ActionBan},
		{100, ActionBan},
	}
	for _, fix := range fixtures {
		action, protected := p.Resolve(fix.score, false, false)
		assert.Equal(fix.action, action, "score %d", fix.score)
		assert.False(protected)
	}

	// ban downgrades for subscribers and VIPs, and only bans
	action, protected := p.Resolve(90, true, false)
	assert.Equal(ActionTimeout, action)
	assert.True(protected)
	action, protected = p.Resolve(90, false, true)
	assert.Equal(ActionTimeout, action)
	assert.True(protected)
	action, protected = p.Resolve(80, true, false)
	assert.Equal(ActionTimeout, action)
	assert.False(protected)
}
