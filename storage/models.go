package storage

import (
	"time"

	"github.com/streamguard/streamguard/automod/detector"
)

// User is the durable per-chatter record. TrustScore starts at 50 and moves
// down as actions land on the user, clamped to [0, 100].
type User struct {
	ID           uint   `gorm:"primarykey"`
	UserID       string `gorm:"uniqueIndex"`
	Username     string `gorm:"index"`
	TrustScore   int    `gorm:"default:50"`
	FirstSeen    time.Time
	MessageCount int
	WarningCount int
	Whitelisted  bool
	LastMessage  *time.Time
}

// ModAction is one row of the audit log: every enforcement the pipeline or a
// moderator command takes.
type ModAction struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"index"`
	UserID    string    `gorm:"index"`
	Username  string
	Action    string
	Reason    string
	SpamScore int
	Message   string
	Channel   string
}

// Permit is a short-lived link pass granted by a moderator.
type Permit struct {
	UserID    string `gorm:"primarykey"`
	GrantedBy string
	ExpiresAt time.Time
}

// UserStrike is the live strike counter, one row per user. History lives in
// StrikeEvent.
type UserStrike struct {
	ID         uint   `gorm:"primarykey"`
	UserID     string `gorm:"uniqueIndex"`
	Count      int
	LastStrike time.Time
	LastReason string
	ExpiresAt  time.Time
}

type StrikeEvent struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"index"`
	UserID    string    `gorm:"index"`
	Username  string
	Reason    string
	// ActionTaken is the compact "action" or "action:seconds" form.
	ActionTaken string
	Moderator   string
	Channel     string
}

// FilterSettings is the per-channel spam filter configuration.
type FilterSettings struct {
	Channel            string `gorm:"primarykey"`
	CapsEnabled        bool
	CapsMinLength      int
	CapsMaxPercent     int
	EmoteEnabled       bool
	EmoteMaxCount      int
	SymbolEnabled      bool
	SymbolMaxPercent   int
	LinkEnabled        bool
	LengthEnabled      bool
	LengthMaxChars     int
	RepetitionEnabled  bool
	RepetitionMaxWords int
	ZalgoEnabled       bool
	LookalikeEnabled   bool
}

// DefaultFilterSettings mirrors detector.DefaultFilterConfig for a channel
// with no stored row yet.
func DefaultFilterSettings(channel string) FilterSettings {
	cfg := detector.DefaultFilterConfig()
	fs := FilterSettings{Channel: channel}
	fs.ApplyConfig(cfg)
	return fs
}

// Config converts the stored row to the detector's runtime form.
func (f *FilterSettings) Config() detector.FilterConfig {
	return detector.FilterConfig{
		CapsEnabled:        f.CapsEnabled,
		CapsMinLength:      f.CapsMinLength,
		CapsMaxPercent:     f.CapsMaxPercent,
		EmoteEnabled:       f.EmoteEnabled,
		EmoteMaxCount:      f.EmoteMaxCount,
		SymbolEnabled:      f.SymbolEnabled,
		SymbolMaxPercent:   f.SymbolMaxPercent,
		LinkEnabled:        f.LinkEnabled,
		LengthEnabled:      f.LengthEnabled,
		LengthMaxChars:     f.LengthMaxChars,
		RepetitionEnabled:  f.RepetitionEnabled,
		RepetitionMaxWords: f.RepetitionMaxWords,
		ZalgoEnabled:       f.ZalgoEnabled,
		LookalikeEnabled:   f.LookalikeEnabled,
	}
}

func (f *FilterSettings) ApplyConfig(cfg detector.FilterConfig) {
	f.CapsEnabled = cfg.CapsEnabled
	f.CapsMinLength = cfg.CapsMinLength
	f.CapsMaxPercent = cfg.CapsMaxPercent
	f.EmoteEnabled = cfg.EmoteEnabled
	f.EmoteMaxCount = cfg.EmoteMaxCount
	f.SymbolEnabled = cfg.SymbolEnabled
	f.SymbolMaxPercent = cfg.SymbolMaxPercent
	f.LinkEnabled = cfg.LinkEnabled
	f.LengthEnabled = cfg.LengthEnabled
	f.LengthMaxChars = cfg.LengthMaxChars
	f.RepetitionEnabled = cfg.RepetitionEnabled
	f.RepetitionMaxWords = cfg.RepetitionMaxWords
	f.ZalgoEnabled = cfg.ZalgoEnabled
	f.LookalikeEnabled = cfg.LookalikeEnabled
}
