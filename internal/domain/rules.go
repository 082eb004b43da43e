package domain

import "strings"

// Rule assigns a fixed country code to entries matching its predicate. Rules
// run after the table lookup, in order, and the first match wins.
//
// A rule matches on the title's name portion (case-insensitive), on the raw
// jurisdiction tag, or on both when both are set. A rule with neither set
// never matches.
type Rule struct {
	TitleName string `yaml:"title_name"`
	Tag       string `yaml:"tag"`
	Code      string `yaml:"code"`
}

// Matches reports whether the rule applies to the entry.
func (r Rule) Matches(entry RawEntry) bool {
	if r.TitleName == "" && r.Tag == "" {
		return false
	}
	if r.TitleName != "" && !strings.EqualFold(entry.Name(), r.TitleName) {
		return false
	}
	if r.Tag != "" && jurisdictionTag(entry) != r.Tag {
		return false
	}
	return true
}

// DefaultRules returns the built-in overrides for jurisdictions the feed
// does not code usefully.
func DefaultRules() []Rule {
	return []Rule{
		{TitleName: "Macau", Code: "MO"},
		{TitleName: "Hong Kong", Code: "HK"},
	}
}

func applyRules(rules []Rule, entry RawEntry) (string, bool) {
	for _, r := range rules {
		if r.Matches(entry) {
			return r.Code, true
		}
	}
	return "", false
}

func jurisdictionTag(entry RawEntry) string {
	if len(entry.Tags) < 2 {
		return ""
	}
	return strings.TrimSpace(entry.Tags[1])
}
