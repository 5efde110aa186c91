package ledger

import "regexp"

// ScamFilter decides whether a token's movements are dropped from the export.
// It is a best-effort heuristic, not a security boundary.
type ScamFilter interface {
	IsScam(symbol, name string) bool
}

// ScamFilterFunc adapts a plain function to ScamFilter.
type ScamFilterFunc func(symbol, name string) bool

func (f ScamFilterFunc) IsScam(symbol, name string) bool {
	return f(symbol, name)
}

// PatternFilter flags a token when its symbol or name matches Pattern.
type PatternFilter struct {
	Pattern *regexp.Regexp
}

func (p PatternFilter) IsScam(symbol, name string) bool {
	if p.Pattern == nil {
		return false
	}
	return p.Pattern.MatchString(symbol) || p.Pattern.MatchString(name)
}

// Promotional and phishing tokens tend to carry a leading "$", a call to
// action, or a domain in their symbol or name.
var scamPattern = regexp.MustCompile(`(?i)^\$|airdrop|claim|reward|visit|\.com|\.io|\.org|\.net`)

// DefaultScamFilter is the denylist applied when none is configured.
var DefaultScamFilter ScamFilter = PatternFilter{Pattern: scamPattern}

// NoScamFilter keeps every token.
var NoScamFilter ScamFilter = ScamFilterFunc(func(string, string) bool { return false })
