// Package detector computes a multi-signal spam score for each chat message and
// resolves it into a moderation action. The classifier is deterministic and
// rule-based: identical input and configuration always produce identical output.
package detector

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/streamguard/streamguard/automod/keyword"
	"github.com/streamguard/streamguard/automod/linksafety"
	"github.com/streamguard/streamguard/automod/pattern"
)

// Result is the outcome of analyzing one message. Transient: only the audit
// entries derived from it are persisted.
type Result struct {
	Score  int
	Action Action
	// ordered diagnostic reasons, one per triggered signal
	Reasons []string
	// ordered "name: matched text" entries from the pattern library
	MatchedPatterns []string
	// true when a would-be ban was downgraded because the sender is a subscriber/VIP
	SubscriberProtected bool
}

// ShouldAct reports whether any moderation action should be taken.
func (r *Result) ShouldAct() bool {
	return r.Action != ActionAllow
}

// Detector scores messages. It owns the compiled pattern library, the URL
// classifier, the active sensitivity profile, and the recent-spam window. The
// recent-spam window is unsynchronized; a Detector must be driven from a single
// goroutine (the per-channel message loop).
type Detector struct {
	logger   *slog.Logger
	patterns *pattern.Library
	links    *linksafety.Classifier
	profile  Profile
	recent   recentWindow
}

// NewDetector constructs a detector with the built-in pattern and domain sets and
// the named sensitivity profile ("medium" if empty).
func NewDetector(logger *slog.Logger, sensitivity string) (*Detector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if sensitivity == "" {
		sensitivity = "medium"
	}
	prof, err := ProfileByName(sensitivity)
	if err != nil {
		return nil, err
	}
	d := &Detector{
		logger:   logger,
		patterns: pattern.NewLibrary(),
		links:    linksafety.NewClassifier(),
		profile:  prof,
	}
	logger.Info("spam detector initialized", "sensitivity", prof.Name)
	return d, nil
}

// Links exposes the URL classifier so the daemon can extend its domain sets.
func (d *Detector) Links() *linksafety.Classifier {
	return d.links
}

// Sensitivity returns the active profile name.
func (d *Detector) Sensitivity() string {
	return d.profile.Name
}

// SetSensitivity switches the active profile. An unknown name leaves the current
// profile untouched and returns the error for the caller to surface.
func (d *Detector) SetSensitivity(name string) error {
	prof, err := ProfileByName(name)
	if err != nil {
		return err
	}
	d.profile = prof
	d.logger.Info("sensitivity updated", "sensitivity", name)
	return nil
}

// Analyze scores a message against every enabled signal and resolves the action.
//
// Moderators, the broadcaster, and whitelisted users short-circuit to allow
// before any computation. Otherwise each triggered signal adds to the score,
// trust signals subtract, and the total is clamped to [0,100] before resolution.
// Punitive outcomes feed the raw text into the recent-spam window.
func (d *Detector) Analyze(message string, user UserContext, cfg FilterConfig) Result {
	if user.IsMod || user.IsBroadcaster {
		return Result{Score: 0, Action: ActionAllow, Reasons: []string{"moderator_or_broadcaster"}}
	}
	if user.IsWhitelisted {
		return Result{Score: 0, Action: ActionAllow, Reasons: []string{"whitelisted"}}
	}

	score := 0
	var reasons []string
	var matched []string

	normalized := message
	if cfg.LookalikeEnabled {
		normalized = keyword.Normalize(message)
	}

	// high-confidence patterns: flat +35 no matter how many hits
	if hits := d.patterns.Match(message, normalized); len(hits) > 0 {
		score += 35
		for _, m := range hits {
			matched = append(matched, fmt.Sprintf("%s: %s", m.Name, truncate(m.Text, 30)))
		}
		reasons = append(reasons, fmt.Sprintf("spam_pattern_match (%d patterns)", len(hits)))
	}

	var hasBlockedURL bool
	if cfg.LinkEnabled {
		domains := linksafety.ExtractDomains(message)
		for _, domain := range domains {
			v := d.links.Classify(domain)
			switch {
			case strings.HasPrefix(v.Reason, linksafety.ReasonBlockedDomain):
				hasBlockedURL = true
				score += 30
				reasons = append(reasons, "blocked_url:"+domain)
			case strings.HasPrefix(v.Reason, linksafety.ReasonShortener):
				if user.FollowAgeDays < 7 {
					score += 25
					reasons = append(reasons, "url_shortener_new_user:"+domain)
				} else {
					score += 15
					reasons = append(reasons, "url_shortener:"+domain)
				}
			case strings.HasPrefix(v.Reason, linksafety.ReasonSuspiciousTLD):
				score += 20
				reasons = append(reasons, "suspicious_tld:"+domain)
			case v.Reason == linksafety.ReasonUnknownDomain:
				score += 10
				reasons = append(reasons, "unknown_domain:"+domain)
			}
		}
		// a brand-new chatter opening with a link is its own signal
		if len(domains) > 0 && user.MessageCount == 0 && !user.HasPermit && !hasBlockedURL {
			score += 15
			reasons = append(reasons, "first_message_with_link")
		}
	}

	if linksafety.HasObfuscatedURL(message) {
		score += 10
		reasons = append(reasons, "obfuscated_url")
	}

	if cfg.CapsEnabled && len(message) >= cfg.CapsMinLength {
		// links are stripped first: mixed-case URLs skew the letter ratio
		pct := CapsPercent(linksafety.StripURLs(message))
		if pct > float64(cfg.CapsMaxPercent) {
			score += 20
			reasons = append(reasons, fmt.Sprintf("excessive_caps:%.0f%%", pct))
		}
	}

	if cfg.EmoteEnabled {
		if n := CountEmotes(message); n > cfg.EmoteMaxCount {
			score += 15
			reasons = append(reasons, fmt.Sprintf("emote_spam:%d", n))
		}
	}

	if cfg.SymbolEnabled {
		if pct := SymbolPercent(message); pct > float64(cfg.SymbolMaxPercent) {
			score += 15
			reasons = append(reasons, fmt.Sprintf("symbol_spam:%.0f%%", pct))
		}
	}

	if cfg.ZalgoEnabled {
		if n := CountZalgo(message); n > 5 {
			score += 25
			reasons = append(reasons, fmt.Sprintf("zalgo_text:%d", n))
		}
	}

	if cfg.LengthEnabled && len(message) > cfg.LengthMaxChars {
		score += 10
		reasons = append(reasons, fmt.Sprintf("message_too_long:%d", len(message)))
	}

	if cfg.RepetitionEnabled {
		if n := MaxWordRepetition(message); n > cfg.RepetitionMaxWords {
			score += 15
			reasons = append(reasons, fmt.Sprintf("word_repetition:%d", n))
		}
	}

	if HasASCIIArt(message) {
		score += 10
		reasons = append(reasons, "ascii_art")
	}

	if HasRepeatedChars(message) {
		score += 15
		reasons = append(reasons, "repeated_characters")
	}

	if d.recent.similar(message) {
		score += 10
		reasons = append(reasons, "similar_to_recent_spam")
	}

	if user.FollowAgeDays < 7 {
		score += 5
		reasons = append(reasons, "new_follower")
	}

	// trust signals
	if user.IsSubscriber {
		score -= 30
		reasons = append(reasons, "subscriber_reduction")
	}
	if user.IsVIP {
		score -= 25
		reasons = append(reasons, "vip_reduction")
	}
	if user.FollowAgeDays >= 30 {
		score -= 15
		reasons = append(reasons, "longtime_follower_reduction")
	}
	if user.MessageCount >= 10 {
		score -= 10
		reasons = append(reasons, "active_chatter_reduction")
	}
	if user.HasPermit && cfg.LinkEnabled && !hasBlockedURL && len(linksafety.ExtractDomains(message)) > 0 {
		score -= 20
		reasons = append(reasons, "has_permit")
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	action, protected := d.profile.Resolve(score, user.IsSubscriber, user.IsVIP)
	if action.Punitive() {
		d.recent.add(message)
	}

	return Result{
		Score:               score,
		Action:              action,
		Reasons:             reasons,
		MatchedPatterns:     matched,
		SubscriberProtected: protected,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
