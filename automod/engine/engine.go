// Package engine is the moderation orchestrator: it takes inbound chat
// messages, runs the spam detector, and carries the resolved action out
// through the strike ledger, the durable store, and the transport client.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/streamguard/streamguard/automod/cachestore"
	"github.com/streamguard/streamguard/automod/countstore"
	"github.com/streamguard/streamguard/automod/detector"
	"github.com/streamguard/streamguard/automod/setstore"
	"github.com/streamguard/streamguard/automod/strikes"
	"github.com/streamguard/streamguard/storage"
	"github.com/streamguard/streamguard/transport"
)

const (
	filterSettingsCacheName = "filter-settings"
	userWhitelistSet        = "user-whitelist"
)

// Config carries the engine's runtime toggles. Enabled, UseStrikes, and the
// detector sensitivity are mutated by owner commands; like the cooldown map,
// they are owned by the consumer goroutine and not synchronized.
type Config struct {
	OwnerUsername  string
	Enabled        bool
	UseStrikes     bool
	ActionCooldown time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		UseStrikes:     true,
		ActionCooldown: 30 * time.Second,
	}
}

// Engine ties the moderation pipeline together. All fields must be set
// before calling NewEngine, except Config, which gets defaults filled in.
type Engine struct {
	Logger   *slog.Logger
	Detector *detector.Detector
	Strikes  *strikes.Ledger
	Counters countstore.CountStore
	Cache    cachestore.CacheStore
	Sets     setstore.SetStore
	Store    storage.Store
	Client   transport.Client
	Config   Config

	// optional; bans and spam waves get posted here when set
	SlackWebhookURL string

	// per-user timestamp of the last enforcement, for the action cooldown
	cooldowns map[string]time.Time
}

func NewEngine(eng Engine) *Engine {
	if eng.Logger == nil {
		eng.Logger = slog.Default().With("system", "engine")
	}
	if eng.Config.ActionCooldown == 0 {
		eng.Config.ActionCooldown = 30 * time.Second
	}
	eng.cooldowns = make(map[string]time.Time)
	return &eng
}

// ProcessMessage runs the full per-message pipeline. Persistence failures
// inside are logged without aborting: once an action is decided, it is
// carried out on a best-effort basis.
func (eng *Engine) ProcessMessage(ctx context.Context, msg *ChatMessage) error {
	// similar to an HTTP server, recover any panics from scoring or enforcement
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("message processing exception", "err", r, "userID", msg.UserID, "channel", msg.Channel)
			messageErrorCount.WithLabelValues(msg.Channel).Inc()
		}
	}()
	start := time.Now()
	defer func() {
		messageProcessDuration.Observe(time.Since(start).Seconds())
	}()

	if !eng.Config.Enabled || msg.Echo || msg.Text == "" || msg.UserID == "" {
		return nil
	}
	messagesProcessed.WithLabelValues(msg.Channel).Inc()

	uctx, err := eng.buildUserContext(ctx, msg)
	if err != nil {
		messageErrorCount.WithLabelValues(msg.Channel).Inc()
		return fmt.Errorf("building user context: %w", err)
	}

	// mods and the broadcaster are never scored, but their messages still count
	if uctx.IsMod || uctx.IsBroadcaster {
		eng.recordMessage(ctx, msg)
		return nil
	}

	cfg, err := eng.filterConfig(ctx, msg.Channel)
	if err != nil {
		eng.Logger.Error("failed to load filter settings, using defaults", "err", err, "channel", msg.Channel)
		cfg = detector.DefaultFilterConfig()
	}

	result := eng.Detector.Analyze(msg.Text, uctx, cfg)
	eng.recordMessage(ctx, msg)

	if result.ShouldAct() {
		eng.takeAction(ctx, msg, result, buildReason(result))
	}
	return nil
}

func (eng *Engine) buildUserContext(ctx context.Context, msg *ChatMessage) (detector.UserContext, error) {
	user, err := eng.Store.GetOrCreateUser(ctx, msg.UserID, msg.Username)
	if err != nil {
		return detector.UserContext{}, err
	}

	hasPermit, err := eng.Store.HasValidPermit(ctx, msg.UserID)
	if err != nil {
		eng.Logger.Error("failed to check permit", "err", err, "userID", msg.UserID)
		hasPermit = false
	}

	whitelisted := user.Whitelisted
	if !whitelisted {
		in, err := eng.Sets.InSet(ctx, userWhitelistSet, strings.ToLower(msg.Username))
		if err != nil {
			eng.Logger.Error("failed to check whitelist set", "err", err, "username", msg.Username)
		}
		whitelisted = in
	}

	return detector.UserContext{
		UserID:        msg.UserID,
		Username:      msg.Username,
		IsSubscriber:  msg.IsSubscriber,
		IsVIP:         msg.IsVIP,
		IsMod:         msg.IsMod,
		IsBroadcaster: msg.IsBroadcaster,
		FollowAgeDays: int(time.Since(user.FirstSeen).Hours() / 24),
		MessageCount:  user.MessageCount,
		IsWhitelisted: whitelisted,
		HasPermit:     hasPermit,
	}, nil
}

// filterConfig reads the channel's filter settings through the cache; a miss
// refills from the store.
func (eng *Engine) filterConfig(ctx context.Context, channel string) (detector.FilterConfig, error) {
	cached, err := eng.Cache.Get(ctx, filterSettingsCacheName, channel)
	if err == nil && cached != "" {
		var settings storage.FilterSettings
		if err := json.Unmarshal([]byte(cached), &settings); err == nil {
			return settings.Config(), nil
		}
	}

	settings, err := eng.Store.GetFilterSettings(ctx, channel)
	if err != nil {
		return detector.FilterConfig{}, err
	}
	if blob, err := json.Marshal(settings); err == nil {
		if err := eng.Cache.Set(ctx, filterSettingsCacheName, channel, string(blob)); err != nil {
			eng.Logger.Error("failed to cache filter settings", "err", err, "channel", channel)
		}
	}
	return settings.Config(), nil
}

// PurgeFilterSettings drops the cached settings for a channel, so admin
// updates take effect on the next message instead of after the TTL.
func (eng *Engine) PurgeFilterSettings(ctx context.Context, channel string) {
	if err := eng.Cache.Purge(ctx, filterSettingsCacheName, channel); err != nil {
		eng.Logger.Error("failed to purge filter settings cache", "err", err, "channel", channel)
	}
}

func (eng *Engine) recordMessage(ctx context.Context, msg *ChatMessage) {
	if err := eng.Store.RecordUserMessage(ctx, msg.UserID); err != nil {
		eng.Logger.Error("failed to record user message", "err", err, "userID", msg.UserID)
	}
	if err := eng.Counters.Increment(ctx, "msgs", msg.UserID); err != nil {
		eng.Logger.Error("failed to increment message counter", "err", err, "userID", msg.UserID)
	}
}

func (eng *Engine) takeAction(ctx context.Context, msg *ChatMessage, result detector.Result, reason string) {
	if eng.onActionCooldown(msg.UserID) {
		eng.Logger.Debug("skipping action, user on cooldown", "userID", msg.UserID, "username", msg.Username)
		return
	}

	switch result.Action {
	case detector.ActionFlag:
		// audit row only, no enforcement
		eng.Logger.Info("message flagged", "username", msg.Username, "score", result.Score, "reason", reason)

	case detector.ActionDelete:
		if err := eng.Client.DeleteMessage(ctx, msg.Channel, msg.ID); err != nil {
			eng.Logger.Warn("failed to delete message", "err", err, "messageID", msg.ID)
		}
		if eng.Config.UseStrikes {
			dir, err := eng.Strikes.AddStrike(ctx, eng.strikeMeta(msg, reason))
			if err != nil {
				eng.Logger.Error("failed to add strike", "err", err, "userID", msg.UserID)
			} else {
				// the ladder may escalate past a warning here
				eng.enforceDirective(ctx, msg, dir)
			}
		} else {
			eng.say(ctx, msg.Channel, fmt.Sprintf("@%s Your message was removed. Please follow chat rules.", msg.Username))
		}
		eng.adjustTrust(ctx, msg.UserID, -5)

	case detector.ActionTimeout:
		if eng.Config.UseStrikes {
			dir, err := eng.Strikes.AddStrike(ctx, eng.strikeMeta(msg, reason))
			if err != nil {
				eng.Logger.Error("failed to add strike", "err", err, "userID", msg.UserID)
			} else {
				eng.enforceDirective(ctx, msg, dir)
			}
		} else {
			if err := eng.Client.TimeoutUser(ctx, msg.Channel, msg.UserID, 600*time.Second, "AutoMod: "+truncate(reason, 100)); err != nil {
				eng.Logger.Warn("failed to timeout user", "err", err, "userID", msg.UserID)
			}
			if result.SubscriberProtected {
				eng.say(ctx, msg.Channel, fmt.Sprintf("@%s Timed out for 10 minutes. As a subscriber, you won't be banned.", msg.Username))
			}
		}
		eng.adjustTrust(ctx, msg.UserID, -15)

	case detector.ActionBan:
		if eng.Config.UseStrikes {
			dir, err := eng.Strikes.AddStrike(ctx, eng.strikeMeta(msg, reason))
			if err != nil {
				eng.Logger.Error("failed to add strike", "err", err, "userID", msg.UserID)
			} else {
				eng.enforceDirective(ctx, msg, dir)
			}
		} else {
			if err := eng.Client.BanUser(ctx, msg.Channel, msg.UserID, "AutoMod: "+truncate(reason, 100)); err != nil {
				eng.Logger.Warn("failed to ban user", "err", err, "userID", msg.UserID)
			}
		}
	}

	eng.Logger.Info("action taken",
		"action", result.Action,
		"username", msg.Username,
		"score", result.Score,
		"reason", reason,
	)
	eng.logAudit(ctx, msg, result, reason)
	eng.trackSpamWave(ctx, msg)
	if err := eng.Counters.Increment(ctx, "actions", string(result.Action)); err != nil {
		eng.Logger.Error("failed to increment action counter", "err", err)
	}
	actionsTaken.WithLabelValues(string(result.Action)).Inc()
	eng.bumpCooldown(msg.UserID)
}

// enforceDirective carries out what the strike ledger decided.
func (eng *Engine) enforceDirective(ctx context.Context, msg *ChatMessage, dir strikes.Directive) {
	switch {
	case dir.ShouldBan:
		if err := eng.Client.BanUser(ctx, msg.Channel, msg.UserID, truncate(dir.Message, 100)); err != nil {
			eng.Logger.Warn("failed to ban user", "err", err, "userID", msg.UserID)
		}
		eng.notifySlack(ctx, fmt.Sprintf("banned `%s` in `%s` (strike %d)", msg.Username, msg.Channel, dir.StrikeNumber))
	case dir.Action == strikes.ActionTimeout:
		if err := eng.Client.TimeoutUser(ctx, msg.Channel, msg.UserID, dir.Duration, truncate(dir.Message, 100)); err != nil {
			eng.Logger.Warn("failed to timeout user", "err", err, "userID", msg.UserID)
		}
	default:
		eng.say(ctx, msg.Channel, dir.Message)
	}
}

func (eng *Engine) strikeMeta(msg *ChatMessage, reason string) strikes.Meta {
	return strikes.Meta{
		UserID:       msg.UserID,
		Username:     msg.Username,
		Reason:       truncate(reason, 100),
		Moderator:    "AutoMod",
		Channel:      msg.Channel,
		IsSubscriber: msg.IsSubscriber,
		IsVIP:        msg.IsVIP,
	}
}

func (eng *Engine) logAudit(ctx context.Context, msg *ChatMessage, result detector.Result, reason string) {
	err := eng.Store.LogAction(ctx, &storage.ModAction{
		UserID:    msg.UserID,
		Username:  msg.Username,
		Action:    string(result.Action),
		Reason:    reason,
		SpamScore: result.Score,
		Message:   truncate(msg.Text, 500),
		Channel:   msg.Channel,
	})
	if err != nil {
		eng.Logger.Error("failed to persist mod action", "err", err, "userID", msg.UserID)
	}
}

// trackSpamWave fingerprints the offending text and counts distinct users
// sending it; several users posting the same spam within the hour usually
// means a bot wave.
func (eng *Engine) trackSpamWave(ctx context.Context, msg *ChatMessage) {
	fp := fmt.Sprintf("%08x", murmur3.Sum32([]byte(msg.Text)))
	if err := eng.Counters.IncrementDistinct(ctx, "spam-text", fp, msg.UserID); err != nil {
		eng.Logger.Error("failed to track spam fingerprint", "err", err)
		return
	}
	n, err := eng.Counters.GetCountDistinct(ctx, "spam-text", fp, countstore.PeriodHour)
	if err == nil && n >= 3 {
		eng.Logger.Warn("coordinated spam wave", "fingerprint", fp, "users", n, "channel", msg.Channel)
		eng.notifySlack(ctx, fmt.Sprintf("possible spam wave in `%s`: %d distinct users posting the same text this hour", msg.Channel, n))
	}
}

func (eng *Engine) adjustTrust(ctx context.Context, userID string, delta int) {
	if _, err := eng.Store.AdjustTrust(ctx, userID, delta); err != nil {
		eng.Logger.Error("failed to adjust trust score", "err", err, "userID", userID)
	}
}

func (eng *Engine) say(ctx context.Context, channel, text string) {
	if err := eng.Client.Say(ctx, channel, text); err != nil {
		eng.Logger.Warn("failed to send chat line", "err", err, "channel", channel)
	}
}

func (eng *Engine) onActionCooldown(userID string) bool {
	t, ok := eng.cooldowns[userID]
	return ok && time.Since(t) < eng.Config.ActionCooldown
}

func (eng *Engine) bumpCooldown(userID string) {
	now := time.Now()
	eng.cooldowns[userID] = now
	// opportunistic sweep of entries older than five minutes
	cutoff := now.Add(-5 * time.Minute)
	for id, ts := range eng.cooldowns {
		if ts.Before(cutoff) {
			delete(eng.cooldowns, id)
		}
	}
}

func buildReason(result detector.Result) string {
	reasons := result.Reasons
	if len(reasons) > 3 {
		reasons = reasons[:3]
	}
	reason := strings.Join(reasons, "; ")
	if len(result.MatchedPatterns) > 0 {
		pats := result.MatchedPatterns
		if len(pats) > 2 {
			pats = pats[:2]
		}
		reason += " | Patterns: " + strings.Join(pats, ", ")
	}
	return reason
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
