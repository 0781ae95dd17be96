// Package pattern holds the high-confidence abuse phrase and regex library.
// A single hit from this library is the strongest individual spam signal.
package pattern

import (
	"log/slog"
	"regexp"
	"strings"
)

// Category groups patterns by the kind of abuse they identify.
type Category string

const (
	CategoryFollowbot Category = "followbot"
	CategoryCrypto    Category = "crypto"
	CategoryPhishing  Category = "phishing"
	CategoryAdult     Category = "adult"
)

// Match records one pattern hit. Name carries an "_obfuscated" suffix when the
// pattern only fired on the homoglyph-normalized text, not the raw message.
type Match struct {
	Name     string
	Category Category
	Text     string
}

type patternDef struct {
	expr     string
	name     string
	category Category
}

var patternDefs = []patternDef{
	// follower/viewer solicitation
	{`(?:buy|get|cheap|free)\s*(?:followers?|views?|viewers?|subs?)`, "followbot_spam", CategoryFollowbot},
	{`(?:become|get|go)\s*(?:famous|viral|big|popular)`, "fame_spam", CategoryFollowbot},
	{`\d+\s*(?:for|=)\s*\d+k?\s*(?:followers?|views?|subs?)`, "follower_price_spam", CategoryFollowbot},
	{`(?:grow|boost|increase)\s*(?:your)?\s*(?:channel|stream|followers?)`, "growth_spam", CategoryFollowbot},
	{`viewbot|followbot|follow\s*bot|view\s*bot`, "bot_spam", CategoryFollowbot},
	{`(?:best|cheap|legit)\s*(?:site|website)\s*(?:for)?\s*(?:followers?|views?)`, "site_spam", CategoryFollowbot},

	// crypto scams
	{`(?:double|triple|10x)\s*(?:your)?\s*(?:crypto|btc|eth|bitcoin|ethereum)`, "crypto_double_scam", CategoryCrypto},
	{`send\s*[\d.]+\s*(?:btc|eth)\s*(?:get|receive)\s*[\d.]+\s*(?:btc|eth)`, "crypto_send_scam", CategoryCrypto},
	{`(?:free|giving away)\s*(?:crypto|btc|eth|bitcoin|ethereum|nft)`, "crypto_giveaway_scam", CategoryCrypto},
	{`(?:elon|musk|vitalik)\s*(?:is)?\s*(?:giving|giveaway|sending)`, "celebrity_crypto_scam", CategoryCrypto},
	{`(?:claim|get|receive)\s*(?:your|free)\s*(?:airdrop|tokens?|nft)`, "airdrop_scam", CategoryCrypto},
	{`(?:invest|deposit).*(?:guaranteed|100%|profit)`, "investment_scam", CategoryCrypto},

	// phishing / impersonation
	{`(?:account|channel)\s*(?:will be|is being|has been)\s*(?:suspended|banned|terminated)`, "phishing_suspension", CategoryPhishing},
	{`(?:urgent|immediately|now)\s*(?:verify|confirm|validate)\s*(?:your)?\s*(?:account|email)`, "phishing_verify", CategoryPhishing},
	{`twitch\s*(?:staff|support|admin|team)`, "platform_impersonation", CategoryPhishing},
	{`(?:login|sign in).*(?:verify|confirm|secure)`, "phishing_login", CategoryPhishing},

	// adult solicitation
	{`(?:18\+|adult|xxx|nsfw).*(?:content|pics|videos?).*(?:bio|profile|link)`, "adult_spam", CategoryAdult},
	{`(?:hot|sexy|single).*(?:girl|guy|women|men).*(?:near|local|area)`, "dating_spam", CategoryAdult},
	{`(?:onlyfans|fansly).*(?:link|bio|profile|free)`, "adult_promo_spam", CategoryAdult},
}

// exact phrases, matched case-insensitively as substrings
var exactTerms = []string{
	"buy followers", "cheap followers", "free followers",
	"buy viewers", "cheap viewers", "viewbot", "followbot",
	"double your btc", "double your eth", "free bitcoin",
	"send btc receive", "send eth receive", "check my bio",
	"link in bio", "promo sm", "wanna be famous",
	"want to be famous", "become famous", "i'll help you grow",
	"fr33 f0ll0w3rs", "fr33 v13ws", // common obfuscations
}

type compiledPattern struct {
	re       *regexp.Regexp
	name     string
	category Category
}

// Library is the compiled pattern set. Construct once, read-only afterwards.
type Library struct {
	patterns []compiledPattern
	terms    []string
}

// NewLibrary compiles the built-in pattern set. Patterns that fail to compile are
// logged and skipped rather than taking down the pipeline.
func NewLibrary() *Library {
	lib := &Library{terms: exactTerms}
	for _, def := range patternDefs {
		re, err := regexp.Compile("(?i)" + def.expr)
		if err != nil {
			slog.Error("failed to compile spam pattern", "name", def.name, "err", err)
			continue
		}
		lib.patterns = append(lib.patterns, compiledPattern{re: re, name: def.name, category: def.category})
	}
	return lib
}

// Match collects every pattern and term hit against both the raw message and its
// homoglyph-normalized form. All matches are collected, never short-circuited.
// A hit found only in the normalized form gets an "_obfuscated" name suffix.
func (l *Library) Match(raw, normalized string) []Match {
	var out []Match
	rawLower := strings.ToLower(raw)
	normLower := strings.ToLower(normalized)

	for _, p := range l.patterns {
		if m := p.re.FindString(raw); m != "" {
			out = append(out, Match{Name: p.name, Category: p.category, Text: m})
		} else if normLower != rawLower {
			if m := p.re.FindString(normalized); m != "" {
				out = append(out, Match{Name: p.name + "_obfuscated", Category: p.category, Text: m})
			}
		}
	}

	for _, term := range l.terms {
		if strings.Contains(rawLower, term) {
			out = append(out, Match{Name: "term:" + term, Text: term})
		} else if strings.Contains(normLower, term) {
			out = append(out, Match{Name: "term:" + term + "_obfuscated", Text: term})
		}
	}
	return out
}
