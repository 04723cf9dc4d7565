package content

import (
	"fmt"
	"strings"
)

// Shape is the structural variant a record is validated against.
type Shape string

const (
	ShapeBase      Shape = "base"
	ShapeDialogue  Shape = "dialogue"
	ShapeMonologue Shape = "monologue"
	ShapeReading   Shape = "reading"
	ShapeListening Shape = "listening"
)

// ShapeFor selects the variant shape for a type tag. Exact matches win;
// unrecognized tags fall back to substring heuristics because model output
// sometimes invents type values outside the catalogue.
func ShapeFor(t string) Shape {
	switch Type(t) {
	case TypeDialogue:
		return ShapeDialogue
	case TypeMonologue, TypeNews, TypeLecture:
		return ShapeMonologue
	case TypeShortReading, TypeLongReading, TypeImageReading:
		return ShapeReading
	case TypeImageListening:
		return ShapeListening
	}

	switch {
	case strings.Contains(t, "dialogue"):
		return ShapeDialogue
	case strings.Contains(t, "reading"):
		return ShapeReading
	default:
		return ShapeBase
	}
}

// Status is the result class of a validation pass.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusRejected Status = "rejected"
)

// Outcome reports whether a record satisfies its variant shape. Degraded
// means a structural guarantee of the variant does not hold and the record
// is treated as base-shaped; no fields are removed.
type Outcome struct {
	Status Status
	Shape  Shape
	Reason string
}

func ok(shape Shape) Outcome { return Outcome{Status: StatusOK, Shape: shape} }

func degraded(r string) Outcome {
	return Outcome{Status: StatusDegraded, Shape: ShapeBase, Reason: r}
}

func rejected(reason string) Outcome {
	return Outcome{Status: StatusRejected, Reason: reason}
}

// Validate checks the record against its variant shape. Missing optional
// fields are fine; a missing required field or a violated structural
// invariant degrades the record to the base shape.
func Validate(r Record) Outcome {
	if r == nil {
		return rejected("not a mapping")
	}

	shape := ShapeFor(r.Type())
	switch shape {
	case ShapeDialogue:
		return validateDialogue(r, shape)
	case ShapeListening:
		return validateListening(r, shape)
	default:
		return ok(shape)
	}
}

// validateDialogue requires the situation and dialogue fields plus a
// speaker prefix on every dialogue line. A record missing either field
// keeps its data but is treated as base-shaped.
func validateDialogue(r Record, shape Shape) Outcome {
	for _, field := range []string{"situation", "dialogue"} {
		if _, present := r[field]; !present {
			return degraded(fmt.Sprintf("missing required field %s", field))
		}
	}
	lines := r.StringSlice("dialogue")
	for i, line := range lines {
		if !strings.HasPrefix(line, "A:") && !strings.HasPrefix(line, "B:") {
			return degraded(fmt.Sprintf("dialogue line %d does not start with A: or B:", i))
		}
	}
	return ok(shape)
}

// validateListening requires answer_index to address an existing choice
// when both fields are present.
func validateListening(r Record, shape Shape) Outcome {
	idxVal, hasIdx := r["answer_index"]
	choices := r.StringSlice("choices")
	if !hasIdx || len(choices) == 0 {
		return ok(shape)
	}

	idx, isNum := asInt(idxVal)
	if !isNum {
		return degraded("answer_index is not a number")
	}
	if idx < 0 || idx >= len(choices) {
		return degraded(fmt.Sprintf("answer_index %d out of range for %d choices", idx, len(choices)))
	}
	return ok(shape)
}

// asInt accepts the numeric types JSON decoding and callers produce.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
