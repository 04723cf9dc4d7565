package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperengineering/topika/internal/content"
)

// fakeCompleter returns a canned reply or error.
type fakeCompleter struct {
	reply      string
	err        error
	calls      int
	lastSystem string
	lastUser   string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string, temperature float64, maxTokens int64) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	return f.reply, f.err
}

func (f *fakeCompleter) ModelName() string { return "fake-model" }

// --- Generate Tests ---

func TestGenerate_Success(t *testing.T) {
	fc := &fakeCompleter{reply: `{"topic": "날씨", "dialogue": ["A: 비가 와요", "B: 우산 가져가세요"]}`}
	g := NewGenerator(fc, 0.7, 1500)

	rec := g.Generate(context.Background(), "dialogue", "3급")
	if rec["error"] != nil {
		t.Fatalf("error field = %v, want absent", rec["error"])
	}
	if rec.Type() != "dialogue" {
		t.Errorf("Type() = %q, want hint applied", rec.Type())
	}
	if rec.Level() != "3급" {
		t.Errorf("Level() = %q, want hint applied", rec.Level())
	}
	if rec["topic"] != "날씨" {
		t.Errorf("topic = %v", rec["topic"])
	}
	if p, _ := rec["original_prompt"].(string); !strings.Contains(p, "3급") {
		t.Errorf("original_prompt = %q, want level substituted", p)
	}
	if !strings.Contains(fc.lastUser, "3급") {
		t.Errorf("prompt sent = %q, want level substituted", fc.lastUser)
	}
}

func TestGenerate_RepairsMalformedReply(t *testing.T) {
	fc := &fakeCompleter{reply: "물론입니다!\n```json\n{\"topic\": \"시험\",}\n```"}
	g := NewGenerator(fc, 0.7, 1500)

	rec := g.Generate(context.Background(), "lecture", "5급")
	if rec["error"] != nil {
		t.Fatalf("error field = %v, want recovered parse", rec["error"])
	}
	if rec["topic"] != "시험" {
		t.Errorf("topic = %v, want 시험", rec["topic"])
	}
}

func TestGenerate_UnparseableReply(t *testing.T) {
	fc := &fakeCompleter{reply: "죄송합니다, JSON을 만들 수 없습니다."}
	g := NewGenerator(fc, 0.7, 1500)

	rec := g.Generate(context.Background(), "dialogue", "3급")
	if rec["error"] == nil {
		t.Fatal("error field absent, want failure record")
	}
	if rec["raw"] != fc.reply {
		t.Errorf("raw = %v, want the reply preserved", rec["raw"])
	}
	if rec.Type() != "dialogue" || rec.Level() != "3급" {
		t.Errorf("failure record = (%q, %q), want requested type and level", rec.Type(), rec.Level())
	}
}

func TestGenerate_CompletionFailure(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("rate limited")}
	g := NewGenerator(fc, 0.7, 1500)

	rec := g.Generate(context.Background(), "dialogue", "3급")
	msg, _ := rec["error"].(string)
	if !strings.Contains(msg, "rate limited") {
		t.Errorf("error = %q, want cause included", msg)
	}
}

func TestGenerate_UnknownType(t *testing.T) {
	fc := &fakeCompleter{reply: "{}"}
	g := NewGenerator(fc, 0.7, 1500)

	rec := g.Generate(context.Background(), "podcast", "3급")
	if rec["error"] == nil {
		t.Fatal("error field absent, want unknown-type failure")
	}
	if fc.calls != 0 {
		t.Errorf("completer called %d times, want 0", fc.calls)
	}
}

func TestGenerate_MockModeWithoutCompleter(t *testing.T) {
	g := NewGenerator(nil, 0.7, 1500)

	rec := g.Generate(context.Background(), "dialogue", "3급")
	if rec.Type() != "dialogue" || rec.Level() != "3급" {
		t.Errorf("mock record = (%q, %q)", rec.Type(), rec.Level())
	}
	if len(rec.StringSlice("dialogue")) == 0 {
		t.Error("mock dialogue content missing")
	}

	reading := g.Generate(context.Background(), "short_reading", "4급")
	if reading["text"] == nil {
		t.Error("mock reading content missing text")
	}

	if g.ModelName() != "mock" {
		t.Errorf("ModelName = %q, want mock", g.ModelName())
	}
	if g.Configured() {
		t.Error("Configured = true without completer")
	}
}

// --- Regenerate Tests ---

func TestRegenerate_Success(t *testing.T) {
	fc := &fakeCompleter{reply: `{"topic": "날씨 수정", "dialogue": ["A: 더 길게", "B: 네"]}`}
	g := NewGenerator(fc, 0.7, 1500)

	original := content.Record{
		"id":    "01HXYZ",
		"type":  "dialogue",
		"level": "3급",
		"topic": "날씨",
	}
	rec := g.Regenerate(context.Background(), original, "대화를 더 길게 해주세요")

	if rec["regenerated"] != true {
		t.Error("regenerated marker missing")
	}
	if rec["user_comment"] != "대화를 더 길게 해주세요" {
		t.Errorf("user_comment = %v", rec["user_comment"])
	}
	if rec.ID() != "01HXYZ" {
		t.Errorf("ID() = %q, want preserved", rec.ID())
	}
	if rec.Type() != "dialogue" || rec.Level() != "3급" {
		t.Errorf("(type, level) = (%q, %q), want carried from original", rec.Type(), rec.Level())
	}
	if rec["original_content"] == nil {
		t.Error("original_content missing")
	}
	if !strings.Contains(fc.lastUser, "날씨") {
		t.Errorf("prompt = %q, want original content embedded", fc.lastUser)
	}
	if !strings.Contains(fc.lastSystem, "JSON") {
		t.Errorf("system prompt = %q, want JSON-pinned variant", fc.lastSystem)
	}
}

func TestRegenerate_FailureKeepsOriginal(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("boom")}
	g := NewGenerator(fc, 0.7, 1500)

	original := content.Record{"type": "dialogue", "topic": "날씨"}
	rec := g.Regenerate(context.Background(), original, "다시")

	if rec["topic"] != "날씨" {
		t.Errorf("topic = %v, want original preserved", rec["topic"])
	}
	if rec["error"] == nil {
		t.Error("error annotation missing")
	}
	if _, tainted := original["error"]; tainted {
		t.Error("failure mutated the original record")
	}
}

func TestRegenerate_UnparseableReplyKeepsOriginal(t *testing.T) {
	fc := &fakeCompleter{reply: "그냥 텍스트"}
	g := NewGenerator(fc, 0.7, 1500)

	original := content.Record{"type": "dialogue", "topic": "날씨"}
	rec := g.Regenerate(context.Background(), original, "다시")

	if rec["topic"] != "날씨" {
		t.Errorf("topic = %v, want original preserved", rec["topic"])
	}
	if rec["raw_regenerated"] != "그냥 텍스트" {
		t.Errorf("raw_regenerated = %v", rec["raw_regenerated"])
	}
}

func TestRegenerate_MockMode(t *testing.T) {
	g := NewGenerator(nil, 0.7, 1500)
	original := content.Record{"type": "dialogue", "topic": "날씨"}

	rec := g.Regenerate(context.Background(), original, "다시")
	if rec["regenerated"] != true || rec["user_comment"] != "다시" {
		t.Errorf("mock regenerate = %v", rec)
	}
	if rec["topic"] != "날씨" {
		t.Errorf("topic = %v, want echoed", rec["topic"])
	}
}
