package parser

import (
	"regexp"
	"strings"

	"github.com/mark3labs/specdash/internal/content"
)

var (
	decorationPattern = regexp.MustCompile(`[✅✓✔☑️🎉]|\bAPPROVED\b`)
	approvedPattern   = regexp.MustCompile(`✅\s*APPROVED`)

	verifiedWord    = regexp.MustCompile(`\b(verified|closed|resolved)\b`)
	negatedVerified = regexp.MustCompile(`\b(not|never|un)[\s-]*(yet\s+)?(verified|closed|resolved)\b`)
	checkedItem     = regexp.MustCompile(`^[-*]\s+\[[xX]\]\s+`)

	emphasis = strings.NewReplacer("*", "", "_", "", "`", "")
)

// genericTitles never replace the slug-derived display name.
var genericTitles = []string{
	"requirements document",
	"requirements",
	"feature requirements",
	"bug report",
	"report",
	"design document",
	"design",
	"implementation plan",
	"tasks",
}

const titleTrim = " \t-–—:|()[]*_`"

// ExtractTitle returns the first level-1 heading of text with status
// decorations and generic prefixes removed. ok is false when nothing usable
// remains.
func ExtractTitle(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		level, heading, isHeading := content.Heading(line)
		if !isHeading || level != 1 {
			continue
		}
		return cleanTitle(heading)
	}
	return "", false
}

func cleanTitle(heading string) (string, bool) {
	title := strings.Trim(decorationPattern.ReplaceAllString(heading, ""), titleTrim)
	for _, generic := range genericTitles {
		if strings.EqualFold(title, generic) {
			return "", false
		}
		if len(title) > len(generic) && strings.EqualFold(title[:len(generic)], generic) {
			rest := title[len(generic):]
			if strings.IndexAny(strings.TrimLeft(rest, " \t"), "-–—:|") == 0 {
				title = strings.Trim(rest, titleTrim)
				break
			}
		}
	}
	title = strings.Join(strings.Fields(title), " ")
	return title, title != ""
}

// IsApproved reports whether any line carries an approval marker.
func IsApproved(text string) bool {
	if approvedPattern.MatchString(text) {
		return true
	}
	for _, line := range strings.Split(text, "\n") {
		bare := strings.Trim(emphasis.Replace(line), " \t#>-")
		if rest, ok := strings.CutPrefix(bare, "Status:"); ok {
			bare = strings.TrimSpace(rest)
		}
		if bare == "APPROVED" {
			return true
		}
	}
	return false
}

// HasVerifiedMarker reports whether a verification document declares the
// fix verified, closed or resolved.
func HasVerifiedMarker(text string) bool {
	for _, raw := range strings.Split(text, "\n") {
		if content.IsTemplateLine(raw) {
			continue
		}
		line := strings.ToLower(strings.TrimSpace(raw))
		if negatedVerified.MatchString(line) {
			continue
		}

		if checkedItem.MatchString(line) || strings.Contains(line, "✅") {
			if verifiedWord.MatchString(line) {
				return true
			}
			continue
		}

		bare := strings.TrimLeft(emphasis.Replace(line), " \t#>-")
		if rest, ok := strings.CutPrefix(bare, "status:"); ok {
			bare = strings.TrimSpace(rest)
		}
		for _, word := range []string{"verified", "closed", "resolved"} {
			if strings.HasPrefix(bare, word) {
				return true
			}
		}
	}
	return false
}
