package detector

import "fmt"

// Action is the moderation action resolved from a spam score.
type Action string

const (
	ActionAllow   Action = "allow"
	ActionFlag    Action = "flag"
	ActionDelete  Action = "delete"
	ActionTimeout Action = "timeout"
	ActionBan     Action = "ban"
)

// Punitive reports whether the action removes content or restricts the user
// (anything beyond flag-and-log).
func (a Action) Punitive() bool {
	return a == ActionDelete || a == ActionTimeout || a == ActionBan
}

// Profile is a named sensitivity preset: four strictly ascending score thresholds,
// evaluated top-down from ban.
type Profile struct {
	Name    string
	Flag    int
	Delete  int
	Timeout int
	Ban     int
}

var profiles = map[string]Profile{
	"low":    {Name: "low", Flag: 40, Delete: 60, Timeout: 80, Ban: 95},
	"medium": {Name: "medium", Flag: 31, Delete: 51, Timeout: 71, Ban: 86},
	"high":   {Name: "high", Flag: 25, Delete: 40, Timeout: 60, Ban: 75},
}

// ProfileByName looks up a sensitivity preset. Unknown names are a configuration
// error; callers fall back to their previous profile.
func ProfileByName(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown sensitivity profile: %q", name)
	}
	return p, nil
}

// Valid reports whether the thresholds are strictly ascending and within range.
func (p Profile) Valid() bool {
	return p.Flag > 0 && p.Flag < p.Delete && p.Delete < p.Timeout && p.Timeout < p.Ban && p.Ban <= 100
}

// Resolve maps a score to an action: the highest threshold at or below the score
// wins. A would-be ban for a subscriber or VIP is downgraded to a timeout; the
// second return value is true only for that downgrade (subscriber protection).
func (p Profile) Resolve(score int, isSubscriber, isVIP bool) (Action, bool) {
	switch {
	case score >= p.Ban:
		if isSubscriber || isVIP {
			return ActionTimeout, true
		}
		return ActionBan, false
	case score >= p.Timeout:
		return ActionTimeout, false
	case score >= p.Delete:
		return ActionDelete, false
	case score >= p.Flag:
		return ActionFlag, false
	default:
		return ActionAllow, false
	}
}
