package detector

import "github.com/streamguard/streamguard/automod/keyword"

const (
	recentSpamCapacity  = 50
	recentSpamCompareN  = 20
	similarityThreshold = 0.6
)

// recentWindow is a bounded FIFO of messages that drew punitive actions, used to
// catch re-worded copies of recent spam. Process-local and unsynchronized: it is
// owned by the single goroutine driving the message loop, and losing it on
// restart is acceptable.
type recentWindow struct {
	entries []string
}

func (w *recentWindow) add(text string) {
	w.entries = append(w.entries, text)
	if len(w.entries) > recentSpamCapacity {
		w.entries = w.entries[len(w.entries)-recentSpamCapacity:]
	}
}

// similar reports whether the message's word set has Jaccard similarity above the
// threshold with any of the most recent punished messages. Very short messages
// (2 words or fewer) never match.
func (w *recentWindow) similar(text string) bool {
	if len(w.entries) == 0 {
		return false
	}
	words := keyword.WordSet(text)
	if len(words) <= 2 {
		return false
	}

	start := 0
	if len(w.entries) > recentSpamCompareN {
		start = len(w.entries) - recentSpamCompareN
	}
	for _, spam := range w.entries[start:] {
		spamWords := keyword.WordSet(spam)
		if len(spamWords) <= 2 {
			continue
		}
		var intersection int
		for tok := range words {
			if spamWords[tok] {
				intersection++
			}
		}
		union := len(words) + len(spamWords) - intersection
		if union > 0 && float64(intersection)/float64(union) > similarityThreshold {
			return true
		}
	}
	return false
}
