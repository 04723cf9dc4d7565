// Package content defines the open record model for generated practice
// material. Records are map-backed documents: unrecognized fields pass
// through storage and the API untouched, while the per-variant structural
// rules are enforced by an explicit Validate step that degrades rather
// than rejects.
package content

import (
	"errors"
	"strings"
)

// Type classifies a content record.
type Type string

const (
	TypeDialogue       Type = "dialogue"
	TypeMonologue      Type = "monologue_explanation"
	TypeNews           Type = "news_reading"
	TypeLecture        Type = "lecture"
	TypeShortReading   Type = "short_reading"
	TypeLongReading    Type = "long_reading"
	TypeImageReading   Type = "image_description_reading"
	TypeImageListening Type = "image_description_listening"
)

// KnownTypes lists the recognized content types in catalogue order.
func KnownTypes() []Type {
	return []Type{
		TypeDialogue,
		TypeMonologue,
		TypeNews,
		TypeLecture,
		TypeShortReading,
		TypeLongReading,
		TypeImageReading,
		TypeImageListening,
	}
}

// IsKnownType reports whether t is one of the recognized content types.
func IsKnownType(t string) bool {
	for _, k := range KnownTypes() {
		if string(k) == t {
			return true
		}
	}
	return false
}

// ErrNotMapping is returned when Normalize receives something that is not
// an object at all. Missing fields never trigger it.
var ErrNotMapping = errors.New("content data is not a mapping")

// Record is a single unit of practice content plus its metadata.
// The shape is open: any field the model or the user supplies is kept.
type Record map[string]any

// ID returns the record id, or "" when unassigned.
func (r Record) ID() string { return r.stringField("id") }

// Type returns the content type tag, or "".
func (r Record) Type() string { return r.stringField("type") }

// Level returns the proficiency label, or "".
func (r Record) Level() string { return r.stringField("level") }

func (r Record) stringField(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// StringSlice returns the field as a slice of strings. JSON decoding
// produces []any, so both representations are accepted; non-string
// elements are skipped.
func (r Record) StringSlice(key string) []string {
	switch v := r[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Clone returns a copy of the record one level deep plus copied slices.
// Nested objects (original_content and the like) are shared; callers that
// mutate them must copy first.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		if s, ok := v.([]any); ok {
			cp := make([]any, len(s))
			copy(cp, s)
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}

// Normalize turns a parsed mapping into a Record. Type and level hints
// fill the respective fields only when the mapping left them empty; the
// keywords field is coerced from a comma-joined string into a trimmed
// slice. Fields are never dropped.
func Normalize(m map[string]any, typeHint, levelHint string) (Record, error) {
	if m == nil {
		return nil, ErrNotMapping
	}
	rec := Record(m)

	if rec.Type() == "" && typeHint != "" {
		rec["type"] = typeHint
	}
	if rec.Level() == "" && levelHint != "" {
		rec["level"] = levelHint
	}

	if kw, ok := rec["keywords"].(string); ok {
		parts := strings.Split(kw, ",")
		coerced := make([]any, 0, len(parts))
		for _, p := range parts {
			coerced = append(coerced, strings.TrimSpace(p))
		}
		rec["keywords"] = coerced
	}

	return rec, nil
}
