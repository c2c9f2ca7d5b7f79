package promo

import "strings"

// ClassifierRule maps a code prefix to its type. Rules are evaluated in
// order; the first matching prefix wins.
type ClassifierRule struct {
	Prefix string
	Type   CodeType
}

// DefaultRules is the house prefix convention. SBS marks staff codes,
// ART artist codes, and CCC the early-bird allocation.
var DefaultRules = []ClassifierRule{
	{Prefix: "SBS", Type: TypeStaff},
	{Prefix: "ART", Type: TypeArtist},
	{Prefix: "CCC", Type: TypeEarlyBird},
}

// Classify resolves a raw code string to its type by prefix,
// case-insensitively. The second return is false when no rule matches.
func Classify(code string) (CodeType, bool) {
	upper := strings.ToUpper(strings.TrimSpace(code))
	for _, rule := range DefaultRules {
		if strings.HasPrefix(upper, rule.Prefix) {
			return rule.Type, true
		}
	}
	return "", false
}

// prefixFor returns the canonical prefix for a code type.
func prefixFor(codeType CodeType) (string, bool) {
	for _, rule := range DefaultRules {
		if rule.Type == codeType {
			return rule.Prefix, true
		}
	}
	return "", false
}
