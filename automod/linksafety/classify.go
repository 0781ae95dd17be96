// Package linksafety extracts domains from chat messages and classifies them
// against whitelist, blacklist, URL-shortener, and suspicious-TLD sets.
package linksafety

import (
	"regexp"
	"strings"
)

// Classification reasons, in decision order.
const (
	ReasonBlockedDomain = "blocked_domain"
	ReasonWhitelisted   = "whitelisted"
	ReasonShortener     = "url_shortener"
	ReasonSuspiciousTLD = "suspicious_tld"
	ReasonUnknownDomain = "unknown_domain"
)

// Verdict is the outcome of classifying one domain.
type Verdict struct {
	Domain  string
	Blocked bool
	// Reason is one of the Reason* constants, possibly suffixed with the matched
	// set entry (eg "url_shortener:bit.ly").
	Reason string
}

var defaultWhitelist = []string{
	"twitch.tv", "clips.twitch.tv", "youtube.com", "youtu.be",
	"twitter.com", "x.com", "imgur.com", "giphy.com",
	"streamlabs.com", "streamelements.com", "nightbot.tv",
}

var defaultBlacklist = []string{
	"discord.gg", "discord.com", "discordapp.com",
}

var defaultShorteners = []string{
	"bit.ly", "tinyurl.com", "goo.gl", "t.co", "ow.ly",
	"is.gd", "buff.ly", "adf.ly", "j.mp", "rb.gy",
	"cutt.ly", "shorturl.at", "tiny.cc", "bc.vc",
}

var defaultSuspiciousTLDs = []string{
	".xyz", ".top", ".club", ".work", ".click", ".link",
	".gq", ".ml", ".cf", ".ga", ".tk", ".buzz",
	".monster", ".rest", ".cam", ".icu", ".loan",
	".racing", ".win", ".download", ".stream", ".party",
}

// matches bare domains and full URLs, one pass over the message
var domainRegex = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?([a-zA-Z0-9][-a-zA-Z0-9]*\.[a-zA-Z0-9][-a-zA-Z0-9.]*)`)

// matches spelled-out URLs like "example [dot] com" or "example d0t com"
var obfuscatedURLRegex = regexp.MustCompile(`(?i)[-a-zA-Z0-9]{2,}\s*(?:\[dot\]|\(dot\)|d0t|d\.o\.t|\.\s+)\s*(?:com|net|org|tv|gg|co|io|xyz|me)`)

// based on: https://stackoverflow.com/a/48769624, with no trailing period allowed
var urlRegex = regexp.MustCompile(`(?:(?:https?|ftp)://)?[\w/\-?=%.]+\.[\w/\-&?=%.]*[\w/\-&?=%]+`)

// StripURLs removes URL-like substrings (including paths) from a message. The
// text-shape heuristics run on the remainder, so a long mixed-case link does not
// skew caps or symbol ratios either way.
func StripURLs(text string) string {
	return urlRegex.ReplaceAllString(text, "")
}

// Classifier holds the domain sets. Construct once, read-only afterwards.
type Classifier struct {
	whitelist  []string
	blacklist  []string
	shorteners []string
	tlds       []string
}

// NewClassifier returns a classifier loaded with the built-in domain sets.
func NewClassifier() *Classifier {
	return &Classifier{
		whitelist:  defaultWhitelist,
		blacklist:  defaultBlacklist,
		shorteners: defaultShorteners,
		tlds:       defaultSuspiciousTLDs,
	}
}

// Extend adds extra entries to the named set ("whitelist", "blacklist",
// "shorteners", "tlds"). Unknown set names are ignored.
func (c *Classifier) Extend(set string, entries []string) {
	lowered := make([]string, len(entries))
	for i, e := range entries {
		lowered[i] = strings.ToLower(e)
	}
	switch set {
	case "whitelist":
		c.whitelist = append(c.whitelist, lowered...)
	case "blacklist":
		c.blacklist = append(c.blacklist, lowered...)
	case "shorteners":
		c.shorteners = append(c.shorteners, lowered...)
	case "tlds":
		c.tlds = append(c.tlds, lowered...)
	}
}

// ExtractDomains returns all domain-like substrings of a message, lower-cased,
// with any "www." prefix stripped by the extraction pattern.
func ExtractDomains(text string) []string {
	var out []string
	for _, m := range domainRegex.FindAllStringSubmatch(text, -1) {
		out = append(out, strings.ToLower(m[1]))
	}
	return out
}

// HasObfuscatedURL reports whether the message spells out a URL to dodge link
// filters ("example [dot] com").
func HasObfuscatedURL(text string) bool {
	return obfuscatedURLRegex.MatchString(text)
}

func suffixMatch(domain, entry string) bool {
	return domain == entry || strings.HasSuffix(domain, "."+entry)
}

// Classify checks a single domain against the sets, in fixed order: blacklist,
// whitelist, shorteners, suspicious TLDs. Anything unmatched is an unknown domain:
// not blocked, but lightly risky to the scorer.
func (c *Classifier) Classify(domain string) Verdict {
	domain = strings.ToLower(domain)

	for _, blocked := range c.blacklist {
		if suffixMatch(domain, blocked) {
			return Verdict{Domain: domain, Blocked: true, Reason: ReasonBlockedDomain + ":" + blocked}
		}
	}
	for _, allowed := range c.whitelist {
		if suffixMatch(domain, allowed) {
			return Verdict{Domain: domain, Blocked: false, Reason: ReasonWhitelisted}
		}
	}
	for _, short := range c.shorteners {
		if suffixMatch(domain, short) {
			return Verdict{Domain: domain, Blocked: true, Reason: ReasonShortener + ":" + short}
		}
	}
	for _, tld := range c.tlds {
		if strings.HasSuffix(domain, tld) {
			return Verdict{Domain: domain, Blocked: true, Reason: ReasonSuspiciousTLD + ":" + tld}
		}
	}
	return Verdict{Domain: domain, Blocked: false, Reason: ReasonUnknownDomain}
}
