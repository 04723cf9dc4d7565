package recovery

import (
	"regexp"
	"strings"
)

// A repair is one named textual substitution. Each is idempotent and
// reports whether it changed the text, so callers can observe which
// strategies actually fire.
type repair struct {
	name  string
	apply func(string) string
}

var (
	singleQuotedKey  = regexp.MustCompile(`'([^']*)'\s*:`)
	trailingCommaObj = regexp.MustCompile(`,\s*}`)
	trailingCommaArr = regexp.MustCompile(`,\s*]`)
	lineComment      = regexp.MustCompile(`//[^\n]*`)
	blockComment     = regexp.MustCompile(`(?s)/\*.*?\*/`)
	colonNoSpace     = regexp.MustCompile(`":(\S)`)
)

// repairs is the fixed strategy order. Later entries assume earlier ones
// already ran: quote conversion sees single backslashes, comma stripping
// sees double-quoted keys, and so on.
var repairs = []repair{
	{
		name: "collapse_double_escapes",
		apply: func(s string) string {
			return strings.ReplaceAll(s, `\\`, `\`)
		},
	},
	{
		name: "double_quote_keys",
		apply: func(s string) string {
			return singleQuotedKey.ReplaceAllString(s, `"$1":`)
		},
	},
	{
		name: "strip_trailing_commas",
		apply: func(s string) string {
			s = trailingCommaObj.ReplaceAllString(s, "}")
			return trailingCommaArr.ReplaceAllString(s, "]")
		},
	},
	{
		name: "strip_comments",
		apply: func(s string) string {
			s = lineComment.ReplaceAllString(s, "")
			return blockComment.ReplaceAllString(s, "")
		},
	},
	{
		name: "space_after_colon",
		apply: func(s string) string {
			return colonNoSpace.ReplaceAllString(s, `": $1`)
		},
	},
}

// ApplyRepairs runs the full strategy batch in order and returns the
// repaired text plus the names of the strategies that changed it.
func ApplyRepairs(text string) (string, []string) {
	var applied []string
	for _, r := range repairs {
		next := r.apply(text)
		if next != text {
			applied = append(applied, r.name)
			text = next
		}
	}
	return text, applied
}
