package strikes

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Directive is what the caller should do after recording a strike. Duration
// is zero for warn and ban. Message is the chat line to post.
type Directive struct {
	StrikeNumber int
	Action       Action
	Duration     time.Duration
	Message      string
	ShouldBan    bool
}

// Meta describes the strike being added. Manual marks strikes issued by a
// moderator command rather than the automatic pipeline.
type Meta struct {
	UserID       string
	Username     string
	Reason       string
	Moderator    string
	Channel      string
	IsSubscriber bool
	IsVIP        bool
	Manual       bool
}

type tier struct {
	action   Action
	duration time.Duration
}

// escalation ladder below the ban tier; strike counts between the top
// timeout step and MaxStrikes reuse the top timeout step.
var escalation = map[int]tier{
	1: {ActionWarn, 0},
	2: {ActionTimeout, 60 * time.Second},
	3: {ActionTimeout, 10 * time.Minute},
	4: {ActionTimeout, time.Hour},
}

const topTimeoutTier = 4

// Ledger applies the escalation ladder over a Store.
type Ledger struct {
	logger *slog.Logger
	store  Store

	// ExpireDays is the rolling window: each new strike pushes expiry out
	// this far. MaxStrikes is the ban tier.
	ExpireDays int
	MaxStrikes int

	// ExemptManualBans lets a moderator-issued strike on the ban tier ban a
	// subscriber outright instead of taking the protection downgrade.
	ExemptManualBans bool
}

func NewLedger(store Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default().With("system", "strikes")
	}
	return &Ledger{
		logger:     logger,
		store:      store,
		ExpireDays: 30,
		MaxStrikes: 5,
	}
}

// AddStrike records one strike and returns the resulting directive. The
// count bump is atomic in the store; the history row is appended afterwards
// and a failure there is logged without withholding the directive.
func (l *Ledger) AddStrike(ctx context.Context, meta Meta) (Directive, error) {
	expiresAt := time.Now().Add(time.Duration(l.ExpireDays) * 24 * time.Hour)
	rec, err := l.store.Increment(ctx, meta.UserID, meta.Reason, expiresAt)
	if err != nil {
		return Directive{}, fmt.Errorf("incrementing strikes: %w", err)
	}

	effective := rec.Count
	if effective > l.MaxStrikes {
		effective = l.MaxStrikes
	}
	step := l.tierFor(effective)
	action := step.action
	duration := step.duration
	message := tierMessage(effective, step, meta.Username, meta.Reason)

	shouldBan := false
	if action == ActionBan {
		protected := (meta.IsSubscriber || meta.IsVIP) && !(meta.Manual && l.ExemptManualBans)
		if protected {
			action = ActionTimeout
			duration = time.Hour
			message = fmt.Sprintf("@%s Strike %d: 1 hour timeout (subscriber protection)", meta.Username, rec.Count)
		} else {
			shouldBan = true
		}
	}

	entry := HistoryEntry{
		UserID:      meta.UserID,
		Username:    meta.Username,
		Reason:      meta.Reason,
		ActionTaken: actionString(action, duration),
		Moderator:   meta.Moderator,
		Channel:     meta.Channel,
		CreatedAt:   time.Now(),
	}
	if err := l.store.AppendHistory(ctx, entry); err != nil {
		l.logger.Error("failed to append strike history", "err", err, "userID", meta.UserID)
	}

	l.logger.Info("strike added",
		"userID", meta.UserID,
		"username", meta.Username,
		"strike", rec.Count,
		"action", action,
		"reason", meta.Reason,
	)

	return Directive{
		StrikeNumber: rec.Count,
		Action:       action,
		Duration:     duration,
		Message:      message,
		ShouldBan:    shouldBan,
	}, nil
}

// Clear removes all active strikes for a user. Clearing a clean user is not
// an error.
func (l *Ledger) Clear(ctx context.Context, userID, moderator string) (bool, error) {
	cleared, err := l.store.Clear(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("clearing strikes: %w", err)
	}
	if cleared {
		l.logger.Info("strikes cleared", "userID", userID, "moderator", moderator)
	}
	return cleared, nil
}

func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	return l.store.History(ctx, userID, limit)
}

// Info renders the one-line strike summary used by chat commands.
func (l *Ledger) Info(ctx context.Context, userID, username string) (string, error) {
	rec, err := l.store.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if rec.Count == 0 {
		return fmt.Sprintf("@%s has no strikes.", username), nil
	}
	expireStr := ""
	if days := int(time.Until(rec.ExpiresAt).Hours() / 24); days > 0 {
		expireStr = fmt.Sprintf(" (expires in %d days)", days)
	}
	reason := rec.LastReason
	if len(reason) > 50 {
		reason = reason[:50]
	}
	if reason == "" {
		reason = "No reason recorded"
	}
	return fmt.Sprintf("@%s: %d/%d strikes%s. Last: %s", username, rec.Count, l.MaxStrikes, expireStr, reason), nil
}

// tierFor resolves a clamped strike count against the ladder. MaxStrikes is
// the ban tier regardless of where it sits; counts between the top timeout
// step and the ban reuse the top timeout step.
func (l *Ledger) tierFor(count int) tier {
	if count >= l.MaxStrikes {
		return tier{ActionBan, 0}
	}
	if count > topTimeoutTier {
		count = topTimeoutTier
	}
	return escalation[count]
}

func tierMessage(strike int, step tier, username, reason string) string {
	switch step.action {
	case ActionWarn:
		return fmt.Sprintf("@%s Warning: %s", username, reason)
	case ActionBan:
		return fmt.Sprintf("@%s Strike %d: Banned", username, strike)
	default:
		return fmt.Sprintf("@%s Strike %d: %s timeout", username, strike, durationPhrase(step.duration))
	}
}

func durationPhrase(d time.Duration) string {
	if d >= time.Hour {
		return fmt.Sprintf("%d hour", int(d.Hours()))
	}
	if d >= time.Minute {
		return fmt.Sprintf("%d minute", int(d.Minutes()))
	}
	return fmt.Sprintf("%d second", int(d.Seconds()))
}

func actionString(action Action, duration time.Duration) string {
	if duration > 0 {
		return fmt.Sprintf("%s:%d", action, int(duration.Seconds()))
	}
	return string(action)
}
