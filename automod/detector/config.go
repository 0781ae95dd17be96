package detector

// FilterConfig carries the per-channel heuristic toggles and thresholds. It is
// owned by the admin surface; the detector only reads it. A disabled heuristic
// contributes nothing to the score regardless of the message.
type FilterConfig struct {
	CapsEnabled    bool
	CapsMinLength  int
	CapsMaxPercent int

	EmoteEnabled  bool
	EmoteMaxCount int

	SymbolEnabled    bool
	SymbolMaxPercent int

	LinkEnabled bool

	LengthEnabled  bool
	LengthMaxChars int

	RepetitionEnabled  bool
	RepetitionMaxWords int

	ZalgoEnabled bool

	// gates homoglyph/leetspeak folding before pattern matching
	LookalikeEnabled bool
}

// DefaultFilterConfig is the configuration a channel gets before any admin tuning.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		CapsEnabled:        true,
		CapsMinLength:      10,
		CapsMaxPercent:     70,
		EmoteEnabled:       true,
		EmoteMaxCount:      15,
		SymbolEnabled:      true,
		SymbolMaxPercent:   50,
		LinkEnabled:        true,
		LengthEnabled:      true,
		LengthMaxChars:     500,
		RepetitionEnabled:  true,
		RepetitionMaxWords: 10,
		ZalgoEnabled:       true,
		LookalikeEnabled:   true,
	}
}

// UserContext is the ephemeral per-message snapshot of everything the scorer
// knows about the sender. Built fresh for each message, never stored.
type UserContext struct {
	UserID   string
	Username string

	IsSubscriber  bool
	IsVIP         bool
	IsMod         bool
	IsBroadcaster bool

	FollowAgeDays int
	MessageCount  int

	IsWhitelisted bool
	HasPermit     bool
}
