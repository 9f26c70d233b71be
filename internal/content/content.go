// Package content classifies markdown lines as template scaffolding or
// authored content. Every rule is an entry in an explicit table so each one
// can be tested on its own.
package content

import (
	"regexp"
	"strings"
)

// Rule names reported by Classify.
const (
	RuleEmpty          = "empty"
	RuleHorizontalRule = "horizontal-rule"
	RuleItalic         = "italic-placeholder"
	RulePending        = "pending-marker"
	RuleKnownPhrase    = "known-phrase"
)

// Rule is one template-line predicate. Match receives the trimmed line.
type Rule struct {
	Name  string
	Match func(line string) bool
}

var (
	hrPattern = regexp.MustCompile(`^-{3,}$`)

	// Single-asterisk emphasis with a non-blank interior, anywhere in the
	// line. Bold (**) and "* " bullets do not match.
	italicPattern = regexp.MustCompile(`(^|[^*])\*[^*\s](?:[^*]*[^*\s])?\*([^*]|$)`)

	headingPattern = regexp.MustCompile(`^(#{1,6})(?:\s+(.*?))?\s*#*$`)
)

// KnownPhrases are scaffolding sentences emitted by document templates.
// Matching is a case-insensitive substring test.
var KnownPhrases = []string{
	"to be completed after",
	"to be performed after",
	"to be defined after",
	"to be documented after",
	"to be filled in after",
	"to be added after",
}

var rules = []Rule{
	{Name: RuleEmpty, Match: func(line string) bool { return line == "" }},
	{Name: RuleHorizontalRule, Match: hrPattern.MatchString},
	{Name: RuleItalic, Match: italicPattern.MatchString},
	{Name: RulePending, Match: func(line string) bool {
		return strings.Contains(strings.ToLower(line), "pending")
	}},
	{Name: RuleKnownPhrase, Match: func(line string) bool {
		lower := strings.ToLower(line)
		for _, phrase := range KnownPhrases {
			if strings.Contains(lower, phrase) {
				return true
			}
		}
		return false
	}},
}

// Rules returns the rule table in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Classify returns the name of the first rule matching line.
func Classify(line string) (string, bool) {
	line = strings.TrimSpace(line)
	for _, r := range rules {
		if r.Match(line) {
			return r.Name, true
		}
	}
	return "", false
}

// IsTemplateLine reports whether line is scaffolding rather than content.
func IsTemplateLine(line string) bool {
	_, ok := Classify(line)
	return ok
}

// Heading parses a markdown ATX heading, returning its level and text.
func Heading(line string) (level int, text string, ok bool) {
	m := headingPattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return 0, "", false
	}
	return len(m[1]), strings.TrimSpace(m[2]), true
}

// HasRealContent reports whether text holds at least one authored line.
// Headings never count. With no markers the whole document is scanned;
// otherwise only the sections whose heading text contains one of the
// markers (case-insensitive), each running to the next heading of equal or
// higher level.
func HasRealContent(text string, sectionMarkers ...string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	if len(sectionMarkers) == 0 {
		for _, line := range lines {
			if _, _, heading := Heading(line); heading {
				continue
			}
			if !IsTemplateLine(line) {
				return true
			}
		}
		return false
	}

	sectionLevel := 0 // 0 = outside a target section
	for _, line := range lines {
		if level, title, heading := Heading(line); heading {
			if sectionLevel > 0 && level > sectionLevel {
				continue
			}
			sectionLevel = 0
			if matchesMarker(title, sectionMarkers) {
				sectionLevel = level
			}
			continue
		}
		if sectionLevel > 0 && !IsTemplateLine(line) {
			return true
		}
	}
	return false
}

func matchesMarker(title string, markers []string) bool {
	lower := strings.ToLower(title)
	for _, m := range markers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" && strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
