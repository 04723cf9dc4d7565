package recovery

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

const contextWindow = 50

// Diagnostics describes why a piece of text defeated the repair cascade.
// The payload is for logging and operator visibility; only the
// missing-delimiter classification feeds back into the cascade itself.
type Diagnostics struct {
	Message string `json:"message"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Offset  int64  `json:"offset"`
	Length  int    `json:"length"`

	Context      *ErrorContext  `json:"context,omitempty"`
	Issues       []Issue        `json:"issues,omitempty"`
	EscapeIssues []Issue        `json:"escape_issues,omitempty"`
	Structure    []BracketIssue `json:"structure_issues,omitempty"`
}

// ErrorContext is the window of text around the failure point.
type ErrorContext struct {
	Before string `json:"before"`
	At     string `json:"at"`
	After  string `json:"after"`
}

// Issue is one classified defect.
type Issue struct {
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	Position    int64    `json:"position,omitempty"`
	Count       int      `json:"count,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

// BracketIssue is one bracket-balance defect with its position(s).
type BracketIssue struct {
	Kind          string `json:"kind"`
	Bracket       string `json:"bracket"`
	Position      int    `json:"position"`
	ClosePosition int    `json:"close_position,omitempty"`
}

// Issue kinds.
const (
	IssueMissingComma       = "missing_comma"
	IssueUnquotedKey        = "unquoted_key"
	IssueMissingValue       = "missing_value"
	IssueTrailingData       = "trailing_data"
	IssueUnterminatedString = "unterminated_string"
	IssueEscapeSequence     = "escape_sequence"

	IssueUnexpectedClosing = "unexpected_closing_bracket"
	IssueMismatchedBracket = "mismatched_brackets"
	IssueUnclosedBracket   = "unclosed_bracket"
)

var (
	doubleEscaped = regexp.MustCompile(`\\\\["\\/bfnrt]|\\\\u[0-9a-fA-F]{4}`)
	invalidEscape = regexp.MustCompile(`\\[^"\\/bfnrtu]`)
)

// Diagnose analyzes text against the parse error it produced.
func Diagnose(text string, err error) Diagnostics {
	d := Diagnostics{
		Message: err.Error(),
		Length:  len(text),
	}

	if off, ok := errorOffset(err); ok {
		d.Offset = off
		d.Line, d.Column = lineColumn(text, off)
		d.Context = extractContext(text, off)
	}

	d.Issues = classifyIssues(text, err, d.Offset)
	d.EscapeIssues = analyzeEscapes(text)
	d.Structure = checkBrackets(text)
	return d
}

// errorOffset pulls the byte offset out of the stdlib decoder errors.
func errorOffset(err error) (int64, bool) {
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		return syn.Offset, true
	}
	var typ *json.UnmarshalTypeError
	if errors.As(err, &typ) {
		return typ.Offset, true
	}
	return 0, false
}

// lineColumn converts a byte offset into 1-based line and column numbers.
func lineColumn(text string, offset int64) (int, int) {
	if offset > int64(len(text)) {
		offset = int64(len(text))
	}
	head := text[:offset]
	line := strings.Count(head, "\n") + 1
	col := int(offset)
	if idx := strings.LastIndexByte(head, '\n'); idx >= 0 {
		col = int(offset) - idx - 1
	}
	if col == 0 {
		col = 1
	}
	return line, col
}

func extractContext(text string, offset int64) *ErrorContext {
	pos := int(offset)
	if pos > len(text) {
		pos = len(text)
	}
	start := pos - contextWindow
	if start < 0 {
		start = 0
	}
	end := pos + contextWindow
	if end > len(text) {
		end = len(text)
	}

	ctx := &ErrorContext{Before: text[start:pos], At: "EOF"}
	if pos < len(text) {
		ctx.At = string(text[pos])
		ctx.After = text[pos+1 : end]
	}
	return ctx
}

// classifyIssues maps decoder error text onto the defect taxonomy.
func classifyIssues(text string, err error, offset int64) []Issue {
	msg := err.Error()
	var issues []Issue
	add := func(kind, desc string) {
		issues = append(issues, Issue{Kind: kind, Description: desc, Position: offset})
	}

	switch {
	case strings.Contains(msg, "after object key:value pair"),
		strings.Contains(msg, "after array element"):
		add(IssueMissingComma, "likely missing comma between elements")
	case strings.Contains(msg, "looking for beginning of object key string"):
		add(IssueUnquotedKey, "object key is not a double-quoted string")
	case strings.Contains(msg, "looking for beginning of value"):
		add(IssueMissingValue, "expected a value")
	case strings.Contains(msg, "after top-level value"):
		add(IssueTrailingData, "extra data after the JSON value")
	case strings.Contains(msg, "unexpected end of JSON input"):
		add(IssueUnterminatedString, "input ends inside a value")
	case strings.Contains(msg, "in string escape code"),
		strings.Contains(msg, "in string literal"):
		add(IssueEscapeSequence, "malformed escape sequence or string literal")
	}

	// A backslash near the failure point suggests an escape problem even
	// when the decoder reports something else.
	pos := int(offset)
	if pos > 0 && pos <= len(text) {
		start := pos - 10
		if start < 0 {
			start = 0
		}
		end := pos + 10
		if end > len(text) {
			end = len(text)
		}
		if strings.Contains(text[start:end], `\`) {
			issues = append(issues, Issue{
				Kind:        IssueEscapeSequence,
				Description: "escape sequence near failure point",
				Position:    offset,
			})
		}
	}

	return issues
}

// analyzeEscapes surfaces double-escaped and invalid escape sequences.
func analyzeEscapes(text string) []Issue {
	var issues []Issue

	if m := doubleEscaped.FindAllString(text, -1); len(m) > 0 {
		issues = append(issues, Issue{
			Kind:        "double_escaped_chars",
			Description: "double-escaped characters found",
			Count:       len(m),
			Examples:    truncateExamples(m, 5),
		})
	}
	if m := invalidEscape.FindAllString(text, -1); len(m) > 0 {
		issues = append(issues, Issue{
			Kind:        "invalid_escape_sequences",
			Description: "escape sequences outside the JSON set",
			Count:       len(m),
			Examples:    truncateExamples(m, 5),
		})
	}
	return issues
}

func truncateExamples(all []string, max int) []string {
	if len(all) <= max {
		return all
	}
	return all[:max]
}

// checkBrackets reports unbalanced or mismatched {} / [] pairs.
func checkBrackets(text string) []BracketIssue {
	type open struct {
		bracket byte
		pos     int
	}
	var stack []open
	var issues []BracketIssue

	closing := map[byte]byte{'}': '{', ']': '['}
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '{', '[':
			stack = append(stack, open{c, i})
		case '}', ']':
			if len(stack) == 0 {
				issues = append(issues, BracketIssue{
					Kind:     IssueUnexpectedClosing,
					Bracket:  string(c),
					Position: i,
				})
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.bracket != closing[c] {
				issues = append(issues, BracketIssue{
					Kind:          IssueMismatchedBracket,
					Bracket:       string(top.bracket),
					Position:      top.pos,
					ClosePosition: i,
				})
			}
		}
	}

	for _, o := range stack {
		issues = append(issues, BracketIssue{
			Kind:     IssueUnclosedBracket,
			Bracket:  string(o.bracket),
			Position: o.pos,
		})
	}
	return issues
}
