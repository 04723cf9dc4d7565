// Package recovery turns arbitrary, possibly malformed model output into a
// parsed JSON object. A fixed cascade of increasingly aggressive strategies
// is attempted in order; each stage runs only when the previous one failed,
// and the original text is always the input to diagnostics when everything
// is exhausted.
package recovery

import (
	"encoding/json"
	"errors"
	"strings"
)

// Parse recovers a JSON object from text.
//
// Cascade order: direct parse (with a second pass for double-encoded
// strings), the structural repair batch, outer-quote unwrapping, embedded
// object extraction, and finally a single comma insertion at the reported
// failure offset. Exhaustion yields a *RecoveryError carrying diagnostics.
func Parse(text string) (map[string]any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	// Stage 1: direct parse.
	var v any
	firstErr := json.Unmarshal([]byte(text), &v)
	if firstErr == nil {
		return asMapping(v)
	}

	// Stage 2: structural repair batch, re-parse only if something fired.
	repaired, applied := ApplyRepairs(text)
	if len(applied) > 0 {
		var rv any
		if err := json.Unmarshal([]byte(repaired), &rv); err == nil {
			if m, err := asMapping(rv); err == nil {
				return m, nil
			}
		}
	}

	// Stage 3: strip one pair of wrapping double quotes.
	if unwrapped, ok := unwrapQuoted(text); ok {
		var uv any
		if err := json.Unmarshal([]byte(unwrapped), &uv); err == nil {
			if m, err := asMapping(uv); err == nil {
				return m, nil
			}
		}
	}

	// Stage 4: extract an embedded object, ignoring surrounding prose or
	// markdown fences. Longest balanced span first; the repaired text is
	// scanned too so fenced output with structural defects still recovers.
	candidates := balancedObjects(text)
	if repaired != text {
		candidates = append(candidates, balancedObjects(repaired)...)
	}
	for _, span := range candidates {
		var ev any
		if err := json.Unmarshal([]byte(span), &ev); err == nil {
			if m, err := asMapping(ev); err == nil {
				return m, nil
			}
		}
	}

	// Stage 5: the decoder told us exactly where a delimiter is missing;
	// insert one comma there and retry once.
	if m, ok := insertComma(text, firstErr); ok {
		return m, nil
	}

	return nil, &RecoveryError{Diagnostics: Diagnose(text, firstErr), err: firstErr}
}

// asMapping enforces the post-condition that the result is an object. A
// string result gets one further parse pass (double-encoded payloads)
// before failing.
func asMapping(v any) (map[string]any, error) {
	switch t := v.(type) {
	case map[string]any:
		return t, nil
	case string:
		var inner any
		if err := json.Unmarshal([]byte(t), &inner); err == nil {
			if m, ok := inner.(map[string]any); ok {
				return m, nil
			}
		}
		return nil, ErrNotAMapping
	default:
		return nil, ErrNotAMapping
	}
}

// unwrapQuoted strips a single pair of outer double quotes and un-escapes
// the inner quoting. Reports false when the text is not quote-wrapped.
func unwrapQuoted(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 2 || trimmed[0] != '"' || trimmed[len(trimmed)-1] != '"' {
		return "", false
	}
	inner := trimmed[1 : len(trimmed)-1]
	return strings.ReplaceAll(inner, `\"`, `"`), true
}

// insertComma applies the missing-delimiter heuristic: when the decoder
// failed expecting a delimiter, one comma is inserted at the offending
// position and the parse retried exactly once.
func insertComma(text string, err error) (map[string]any, bool) {
	var syn *json.SyntaxError
	if !errors.As(err, &syn) {
		return nil, false
	}
	msg := syn.Error()
	if !strings.Contains(msg, "after object key:value pair") &&
		!strings.Contains(msg, "after array element") {
		return nil, false
	}

	// Offset points one past the character that triggered the error.
	pos := int(syn.Offset) - 1
	if pos < 0 || pos > len(text) {
		return nil, false
	}

	patched := text[:pos] + "," + text[pos:]
	var v any
	if json.Unmarshal([]byte(patched), &v) != nil {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}
