package engine

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/streamguard/streamguard/automod/strikes"
	"github.com/streamguard/streamguard/storage"
)

// HandleCommand parses and executes an admin chat command, returning the
// reply line to post. Returns handled=false for non-commands, commands from
// non-moderators, and commands this engine does not own.
//
// Moderators get the read-side commands; enable/disable, sensitivity, and
// the strike-system toggle are owner-only.
func (eng *Engine) HandleCommand(ctx context.Context, msg *ChatMessage) (string, bool) {
	if !strings.HasPrefix(msg.Text, "!") {
		return "", false
	}
	if !msg.IsMod && !msg.IsBroadcaster {
		return "", false
	}

	fields := strings.Fields(msg.Text)
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "!"))
	args := fields[1:]

	var reply string
	switch cmd {
	case "automod":
		reply = eng.cmdAutomod(ctx, msg, args)
	case "strikes":
		reply = eng.cmdStrikes(ctx, msg, args)
	case "clearstrikes":
		reply = eng.cmdClearStrikes(ctx, msg, args)
	case "addstrike":
		reply = eng.cmdAddStrike(ctx, msg, args)
	case "whitelist":
		reply = eng.cmdWhitelist(ctx, msg, args, true)
	case "unwhitelist":
		reply = eng.cmdWhitelist(ctx, msg, args, false)
	case "permit":
		reply = eng.cmdPermit(ctx, msg, args)
	case "modlog":
		reply = eng.cmdModlog(ctx, msg, args)
	case "checkuser":
		reply = eng.cmdCheckUser(ctx, msg, args)
	default:
		return "", false
	}

	commandsHandled.WithLabelValues(cmd).Inc()
	return reply, true
}

// targetUser normalizes an "@username" argument. Chat commands address users
// by name, so the name doubles as the lookup key.
func targetUser(arg string) string {
	return strings.ToLower(strings.TrimPrefix(arg, "@"))
}

func (eng *Engine) isOwner(msg *ChatMessage) bool {
	return strings.EqualFold(msg.Username, eng.Config.OwnerUsername)
}

func (eng *Engine) cmdAutomod(ctx context.Context, msg *ChatMessage, args []string) string {
	action := "status"
	if len(args) > 0 {
		action = strings.ToLower(args[0])
	}
	value := ""
	if len(args) > 1 {
		value = strings.ToLower(args[1])
	}

	switch action {
	case "on", "off":
		if !eng.isOwner(msg) {
			return fmt.Sprintf("@%s Only the owner can enable/disable automod.", msg.Username)
		}
		eng.Config.Enabled = action == "on"
		state := "ENABLED"
		if !eng.Config.Enabled {
			state = "DISABLED"
		}
		eng.Logger.Info("automod toggled", "enabled", eng.Config.Enabled, "by", msg.Username)
		return fmt.Sprintf("@%s AutoMod is now %s.", msg.Username, state)

	case "sensitivity":
		if !eng.isOwner(msg) {
			return fmt.Sprintf("@%s Only the owner can change sensitivity.", msg.Username)
		}
		if err := eng.Detector.SetSensitivity(value); err != nil {
			return fmt.Sprintf("@%s Valid options: low, medium, high", msg.Username)
		}
		eng.Logger.Info("sensitivity changed", "sensitivity", value, "by", msg.Username)
		return fmt.Sprintf("@%s AutoMod sensitivity set to %s.", msg.Username, strings.ToUpper(value))

	case "strikes":
		if !eng.isOwner(msg) {
			return fmt.Sprintf("@%s Only the owner can toggle strike system.", msg.Username)
		}
		switch value {
		case "on":
			eng.Config.UseStrikes = true
			return fmt.Sprintf("@%s Strike system ENABLED.", msg.Username)
		case "off":
			eng.Config.UseStrikes = false
			return fmt.Sprintf("@%s Strike system DISABLED.", msg.Username)
		default:
			return fmt.Sprintf("@%s Strike system: %s. Use !automod strikes on/off", msg.Username, onOff(eng.Config.UseStrikes))
		}

	case "status":
		stats, err := eng.Store.GetActionStats(ctx, 24*time.Hour)
		if err != nil {
			eng.Logger.Error("failed to read action stats", "err", err)
		}
		state := "ENABLED"
		if !eng.Config.Enabled {
			state = "DISABLED"
		}
		return fmt.Sprintf("@%s AutoMod: %s | Sensitivity: %s | Strikes: %s | 24h actions: %d (%s)",
			msg.Username, state, strings.ToUpper(eng.Detector.Sensitivity()), onOff(eng.Config.UseStrikes),
			stats.Total, formatStats(stats))

	default:
		return fmt.Sprintf("@%s Usage: !automod <on/off/status/sensitivity/strikes>", msg.Username)
	}
}

func (eng *Engine) cmdStrikes(ctx context.Context, msg *ChatMessage, args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("@%s Usage: !strikes @username", msg.Username)
	}
	username := targetUser(args[0])
	info, err := eng.Strikes.Info(ctx, username, username)
	if err != nil {
		eng.Logger.Error("failed to read strikes", "err", err, "username", username)
		return fmt.Sprintf("@%s Could not read strikes for %s.", msg.Username, username)
	}
	return fmt.Sprintf("@%s %s", msg.Username, info)
}

func (eng *Engine) cmdClearStrikes(ctx context.Context, msg *ChatMessage, args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("@%s Usage: !clearstrikes @username", msg.Username)
	}
	username := targetUser(args[0])
	cleared, err := eng.Strikes.Clear(ctx, username, msg.Username)
	if err != nil {
		eng.Logger.Error("failed to clear strikes", "err", err, "username", username)
		return fmt.Sprintf("@%s Could not clear strikes for %s.", msg.Username, username)
	}
	if cleared {
		return fmt.Sprintf("@%s Cleared strikes for %s", msg.Username, username)
	}
	return fmt.Sprintf("@%s No strikes found for %s", msg.Username, username)
}

func (eng *Engine) cmdAddStrike(ctx context.Context, msg *ChatMessage, args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("@%s Usage: !addstrike @username [reason]", msg.Username)
	}
	username := targetUser(args[0])
	reason := "Manual strike"
	if len(args) > 1 {
		reason = strings.Join(args[1:], " ")
	}
	dir, err := eng.Strikes.AddStrike(ctx, strikes.Meta{
		UserID:    username,
		Username:  username,
		Reason:    reason,
		Moderator: msg.Username,
		Channel:   msg.Channel,
		Manual:    true,
	})
	if err != nil {
		eng.Logger.Error("failed to add manual strike", "err", err, "username", username)
		return fmt.Sprintf("@%s Could not add strike for %s.", msg.Username, username)
	}
	eng.Logger.Info("manual strike added", "username", username, "by", msg.Username, "reason", reason)
	return fmt.Sprintf("@%s %s", msg.Username, dir.Message)
}

func (eng *Engine) cmdWhitelist(ctx context.Context, msg *ChatMessage, args []string, add bool) string {
	usage := "!whitelist @username"
	if !add {
		usage = "!unwhitelist @username"
	}
	if len(args) == 0 {
		return fmt.Sprintf("@%s Usage: %s", msg.Username, usage)
	}
	username := targetUser(args[0])
	if err := eng.Store.SetWhitelisted(ctx, username, username, add); err != nil {
		eng.Logger.Error("failed to update whitelist", "err", err, "username", username)
		return fmt.Sprintf("@%s Could not update whitelist for %s.", msg.Username, username)
	}
	// keep the runtime set in step so the change is immediate
	if add {
		if err := eng.Sets.Add(ctx, userWhitelistSet, username); err != nil {
			eng.Logger.Error("failed to update whitelist set", "err", err, "username", username)
		}
		eng.Logger.Info("user whitelisted", "username", username, "by", msg.Username)
		return fmt.Sprintf("@%s %s has been added to the whitelist.", msg.Username, username)
	}
	if _, err := eng.Sets.Remove(ctx, userWhitelistSet, username); err != nil {
		eng.Logger.Error("failed to update whitelist set", "err", err, "username", username)
	}
	eng.Logger.Info("user unwhitelisted", "username", username, "by", msg.Username)
	return fmt.Sprintf("@%s %s has been removed from the whitelist.", msg.Username, username)
}

func (eng *Engine) cmdPermit(ctx context.Context, msg *ChatMessage, args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("@%s Usage: !permit @username", msg.Username)
	}
	username := targetUser(args[0])
	if err := eng.Store.GrantPermit(ctx, username, msg.Username, 60*time.Second); err != nil {
		eng.Logger.Error("failed to grant permit", "err", err, "username", username)
		return fmt.Sprintf("@%s Could not grant permit for %s.", msg.Username, username)
	}
	eng.Logger.Info("permit granted", "username", username, "by", msg.Username)
	return fmt.Sprintf("@%s granted a permit: %s can post links for 60 seconds.", msg.Username, username)
}

func (eng *Engine) cmdModlog(ctx context.Context, msg *ChatMessage, args []string) string {
	limit := 10
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			limit = n
		}
	}
	if limit > 25 {
		limit = 25
	}
	actions, err := eng.Store.RecentActions(ctx, limit)
	if err != nil {
		eng.Logger.Error("failed to read mod log", "err", err)
		return fmt.Sprintf("@%s Could not read the mod log.", msg.Username)
	}
	if len(actions) == 0 {
		return fmt.Sprintf("@%s No recent moderation actions.", msg.Username)
	}
	var lines []string
	for _, action := range actions {
		if len(lines) == 3 {
			break
		}
		lines = append(lines, fmt.Sprintf("%s: %s (score: %d)", action.Username, action.Action, action.SpamScore))
	}
	reply := fmt.Sprintf("@%s Recent actions: %s", msg.Username, strings.Join(lines, " | "))
	if len(actions) > 3 {
		reply += fmt.Sprintf(" ... and %d more.", len(actions)-3)
	}
	return reply
}

func (eng *Engine) cmdCheckUser(ctx context.Context, msg *ChatMessage, args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("@%s Usage: !checkuser @username", msg.Username)
	}
	username := targetUser(args[0])
	user, err := eng.Store.GetUser(ctx, username)
	if err != nil {
		eng.Logger.Error("failed to read user", "err", err, "username", username)
		return fmt.Sprintf("@%s Could not read data for %s.", msg.Username, username)
	}
	if user == nil {
		return fmt.Sprintf("@%s No data for %s.", msg.Username, username)
	}
	rec, err := eng.Store.Get(ctx, username)
	if err != nil {
		eng.Logger.Error("failed to read strikes", "err", err, "username", username)
	}
	return fmt.Sprintf("@%s %s: Trust: %d/100 | Messages: %d | Warnings: %d | Strikes: %d/%d | Whitelisted: %s",
		msg.Username, username, user.TrustScore, user.MessageCount, user.WarningCount,
		rec.Count, eng.Strikes.MaxStrikes, yesNo(user.Whitelisted))
}

func formatStats(stats storage.ActionStats) string {
	if len(stats.ByKind) == 0 {
		return "none"
	}
	kinds := make([]string, 0, len(stats.ByKind))
	for kind := range stats.ByKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		parts = append(parts, fmt.Sprintf("%s: %d", kind, stats.ByKind[kind]))
	}
	return strings.Join(parts, ", ")
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
