// Package generate produces practice content through a templated LLM call
// and coerces the reply into a record via the recovery cascade.
//
// The generation path has a load-bearing contract: it always returns a
// record-shaped mapping. Failures come back as a record carrying an
// "error" field plus the requested type and level, never as a Go error,
// so the caller can always render something.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hyperengineering/topika/internal/content"
	"github.com/hyperengineering/topika/internal/prompt"
	"github.com/hyperengineering/topika/internal/recovery"
)

// Completer is the LLM text-completion collaborator. Failures are opaque:
// the generator reports them, never retries.
type Completer interface {
	Complete(ctx context.Context, system, user string, temperature float64, maxTokens int64) (string, error)
	ModelName() string
}

// Generator turns (type, level) requests into content records.
// A nil completer puts the generator in mock mode: deterministic sample
// content instead of API calls, so the rest of the system stays usable
// without a key.
type Generator struct {
	completer   Completer
	temperature float64
	maxTokens   int64
}

// NewGenerator creates a Generator. completer may be nil (mock mode).
func NewGenerator(completer Completer, temperature float64, maxTokens int64) *Generator {
	return &Generator{
		completer:   completer,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// Configured reports whether a real completion backend is attached.
func (g *Generator) Configured() bool { return g.completer != nil }

// ModelName returns the backing model, or "mock" in mock mode.
func (g *Generator) ModelName() string {
	if g.completer == nil {
		return "mock"
	}
	return g.completer.ModelName()
}

// Generate produces a new record of the requested type and level.
func (g *Generator) Generate(ctx context.Context, contentType, level string) content.Record {
	if g.completer == nil {
		slog.Warn("no API key configured, returning mock content", "type", contentType)
		return mockContent(contentType, level)
	}

	tmpl, err := prompt.For(contentType)
	if err != nil {
		slog.Error("generation failed", "type", contentType, "error", err)
		return errorRecord(contentType, level, "unknown content type: "+contentType)
	}

	p := tmpl.Format(level)
	slog.Info("generating content", "type", contentType, "level", level)

	reply, err := g.completer.Complete(ctx, prompt.SystemPrompt, p, g.temperature, g.maxTokens)
	if err != nil {
		slog.Error("completion call failed", "type", contentType, "level", level, "error", err)
		rec := errorRecord(contentType, level, "content generation failed: "+err.Error())
		rec["original_prompt"] = p
		return rec
	}

	m, err := recovery.Parse(reply)
	if err != nil {
		slog.Error("model reply is not recoverable JSON", "type", contentType, "error", err)
		rec := errorRecord(contentType, level, "model reply is not valid JSON: "+err.Error())
		rec["raw"] = reply
		rec["original_prompt"] = p
		return rec
	}

	rec, _ := content.Normalize(m, contentType, level)
	rec["original_prompt"] = p

	if outcome := content.Validate(rec); outcome.Status == content.StatusDegraded {
		slog.Warn("generated record degraded to base shape",
			"type", rec.Type(), "reason", outcome.Reason)
	}

	slog.Info("content generated", "type", rec.Type(), "level", rec.Level())
	return rec
}

// Regenerate revises an existing record according to the user's comment.
// On any failure the original record is returned annotated with the error
// so nothing is lost.
func (g *Generator) Regenerate(ctx context.Context, original content.Record, userComment string) content.Record {
	if g.completer == nil {
		slog.Warn("no API key configured, echoing content as regenerated")
		rec := original.Clone()
		rec["regenerated"] = true
		rec["user_comment"] = userComment
		return rec
	}

	originalJSON, err := marshalCompact(original)
	if err != nil {
		rec := original.Clone()
		rec["error"] = "could not serialize original content: " + err.Error()
		rec["user_comment"] = userComment
		return rec
	}

	slog.Info("regenerating content", "type", original.Type(), "level", original.Level())

	reply, err := g.completer.Complete(ctx, prompt.SystemPromptJSON,
		prompt.Regenerate(originalJSON, userComment), g.temperature, g.maxTokens)
	if err != nil {
		slog.Error("regeneration call failed", "type", original.Type(), "error", err)
		rec := original.Clone()
		rec["error"] = "content regeneration failed: " + err.Error()
		rec["user_comment"] = userComment
		return rec
	}

	m, err := recovery.Parse(reply)
	if err != nil {
		slog.Error("regenerated reply is not recoverable JSON", "error", err)
		rec := original.Clone()
		rec["error"] = "regenerated reply is not valid JSON: " + err.Error()
		rec["raw_regenerated"] = reply
		rec["user_comment"] = userComment
		return rec
	}

	rec, _ := content.Normalize(m, original.Type(), original.Level())
	rec["regenerated"] = true
	rec["user_comment"] = userComment
	rec["original_prompt"] = g.originalPrompt(original)
	rec["original_content"] = map[string]any(original)
	if id := original.ID(); id != "" {
		rec["id"] = id
	}

	slog.Info("content regenerated", "type", rec.Type(), "level", rec.Level())
	return rec
}

// originalPrompt returns the prompt the original record was generated
// with, rebuilding it from the catalogue when the record predates prompt
// tracking.
func (g *Generator) originalPrompt(original content.Record) string {
	if p, ok := original["original_prompt"].(string); ok && p != "" {
		return p
	}
	tmpl, err := prompt.For(original.Type())
	if err != nil {
		return ""
	}
	return tmpl.Format(original.Level())
}

// marshalCompact renders a record as one-line JSON with literal non-ASCII.
func marshalCompact(rec content.Record) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]any(rec)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// errorRecord is the record-shaped failure payload.
func errorRecord(contentType, level, message string) content.Record {
	return content.Record{
		"error": message,
		"type":  contentType,
		"level": level,
	}
}

// mockContent is returned when no API key is configured.
func mockContent(contentType, level string) content.Record {
	rec := content.Record{
		"type":     contentType,
		"level":    level,
		"error":    "API 키가 설정되지 않았습니다. 환경 변수 OPENAI_API_KEY를 설정해주세요.",
		"topic":    "모의 콘텐츠",
		"place":    "온라인",
		"keywords": []any{"테스트", "모의", "API_키", "필요", "샘플"},
	}

	shape := content.ShapeFor(contentType)
	switch shape {
	case content.ShapeDialogue, content.ShapeListening:
		rec["situation"] = "API 키 없이 예시로 생성된 대화"
		rec["dialogue"] = []any{"A: 안녕하세요?", "B: 네, 안녕하세요. 반갑습니다."}
	case content.ShapeReading:
		rec["title"] = "API 키 없이 예시로 생성된 지문"
		rec["text"] = "이것은 API 키가 없을 때 제공되는 예시 텍스트입니다. 실제 API 키를 설정하면 다양한 콘텐츠가 생성됩니다."
	default:
		rec["script"] = "이것은 API 키가 없을 때 제공되는 예시 스크립트입니다. 실제 API 키를 설정하면 다양한 콘텐츠가 생성됩니다."
	}

	return rec
}
