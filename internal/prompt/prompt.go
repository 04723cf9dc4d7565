// Package prompt is the static template catalogue for content generation.
// It is a pure lookup-and-substitution collaborator: no state, no I/O.
package prompt

import (
	"errors"
	"strings"

	"github.com/hyperengineering/topika/internal/content"
)

// ErrUnknownType is returned when no template exists for a content type.
var ErrUnknownType = errors.New("no template for content type")

// SystemPrompt is the fixed system message for generation calls.
const SystemPrompt = "당신은 한국어 교육용 콘텐츠를 생성하는 AI입니다."

// SystemPromptJSON additionally pins the reply format, used for
// regeneration where the model tends to wrap output in prose.
const SystemPromptJSON = SystemPrompt + " 응답은 항상 순수한 JSON 형식으로만 반환합니다."

// Template is one content-type prompt plus its expected output format.
type Template struct {
	body         string
	outputFormat string
}

// Format substitutes the learner level and appends the output format.
func (t Template) Format(level string) string {
	p := strings.ReplaceAll(t.body, "{level}", level)
	if t.outputFormat != "" {
		p += "\n\n출력 형식:\n" + t.outputFormat
	}
	return p
}

// For returns the template for a content type.
func For(contentType string) (Template, error) {
	t, ok := catalogue[content.Type(contentType)]
	if !ok {
		return Template{}, ErrUnknownType
	}
	return t, nil
}

// Regenerate builds the prompt that asks the model to revise previously
// generated content according to the user's comment.
func Regenerate(originalJSON, userComment string) string {
	p := strings.ReplaceAll(regenerateTemplate, "{original_content}", originalJSON)
	return strings.ReplaceAll(p, "{user_comment}", userComment)
}

const baseOutputHead = "{\n  \"type\": \"%TYPE%\",\n  \"topic\": \"...\",\n  \"place\": \"...\",\n  \"keywords\": [\"...\", \"...\", \"...\", \"...\", \"...\"],\n  "
const baseOutputTail = "\n  \"tokens\": ...\n}"

// outputFormat assembles the per-type JSON skeleton shown to the model.
func outputFormat(t content.Type, additionalFields string) string {
	head := strings.ReplaceAll(baseOutputHead, "%TYPE%", string(t))
	return head + additionalFields + baseOutputTail
}

var catalogue = map[content.Type]Template{
	content.TypeDialogue: {
		body: `
{level} 학습자에게 적합한 일상 대화문을 하나 생성해 주세요.
- 장소: 실생활에서 흔히 일어날 수 있는 곳 (예: 카페, 병원, 사무실 등)
- 구성: 두 명의 화자 A, B가 등장하며, 2~5문장 내외의 대화로 구성
- 문체: 자연스러운 구어체, 높임말 혹은 반말 혼용 가능
- 목적: 일상적인 요청, 제안, 설명, 문제 해결 등의 상황 반영
- 추가 항목: topic, place, keywords(5개), tokens
`,
		outputFormat: outputFormat(content.TypeDialogue,
			"\"situation\": \"...\",\n  \"dialogue\": [\"A: ...\", \"B: ...\"],"),
	},

	content.TypeMonologue: {
		body: `
{level} 학습자에게 적합한 혼잣말 형식의 설명문을 생성해 주세요.
- 문체: 혼잣말처럼 말하는 1인칭 구어체 혹은 발표체
- 기능: 일정 안내, 절차 설명, 경험 공유, 통계 발표 등
- 구성: 도입(배경) → 설명(내용) → 정리(마무리)
- 길이: 150~300자 내외, 4~7문장
- 추가 항목: topic, place, keywords(5개), tokens
`,
		outputFormat: outputFormat(content.TypeMonologue,
			"\"situation\": \"...\",\n  \"script\": \"...\","),
	},

	content.TypeNews: {
		body: `
{level} 학습자에게 적합한 뉴스 기사 형식의 듣기 지문을 작성해 주세요.
- 문체: 간결하고 중립적인 기사체
- 내용: 기상, 사고, 발표, 정책 등 현실성 있는 주제
- 구성: 시간/장소 → 사건 → 영향 및 조치
- 길이: 약 200~300자
- 추가 항목: topic, place, keywords(5개), tokens
`,
		outputFormat: outputFormat(content.TypeNews, "\"script\": \"...\","),
	},

	content.TypeLecture: {
		body: `
{level} 학습자에게 적합한 강의 형식의 지문을 생성해 주세요.
- 문체: 설명문, 객관적이며 교사/강사 어조
- 주제: 역사, 사회, 과학, 문화 등 중립적 주제
- 구성: 정의 → 예시 → 결론 / 명확한 정보 구조
- 길이: 300~400자
- 추가 항목: topic, place, keywords(5개), tokens
`,
		outputFormat: outputFormat(content.TypeLecture, "\"script\": \"...\","),
	},

	content.TypeShortReading: {
		body: `
{level} 학습자에게 적합한 짧은 읽기 지문을 생성해 주세요.
- 문체: 안내문, 일기, 블로그 글 등 개인적 문체 가능
- 길이: 150~200자 / 단문 1개 지문
- 목적: 중심 내용 파악, 정보 요약, 의견 이해 등
- 추가 항목: topic, place, keywords(5개), tokens
`,
		outputFormat: outputFormat(content.TypeShortReading,
			"\"title\": \"...\",\n  \"text\": \"...\","),
	},

	content.TypeLongReading: {
		body: `
{level} 학습자에게 적합한 장문 읽기 지문을 생성해 주세요.
- 문체: 설명문, 기사체, 에세이체 등
- 구성: 주제 제시 → 설명 → 예시/결론
- 길이: 약 300~500자 / 문단 구조를 명확히 할 것
- 추가 항목: topic, place, keywords(5개), tokens
`,
		outputFormat: outputFormat(content.TypeLongReading,
			"\"title\": \"...\",\n  \"text\": \"...\","),
	},

	content.TypeImageReading: {
		body: `
{level} 학습자에게 적합한 포스터, 이메일, 통계자료 등의 시각 자료를 설명하는 읽기 지문을 작성해 주세요.
- 문체: 안내문, 정보 설명 문체
- 구성: 제목 → 내용 요약 → 시간/장소/대상 정보
- 길이: 150~250자
- 추가 항목: topic, place, keywords(5개), tokens
`,
		outputFormat: outputFormat(content.TypeImageReading, "\"description\": \"...\","),
	},

	content.TypeImageListening: {
		body: `
{level} 학습자에게 적합한 듣기용 그림 선택 문제를 구성해 주세요.
- 구성: 상황 대화문 1개 + 그림 설명 4개 중 1개는 정답
- 문체: 구어체
- 길이: 대화문은 3~4문장 / 설명문은 간결히
- 추가 항목: topic, place, keywords(5개), tokens
`,
		outputFormat: outputFormat(content.TypeImageListening,
			"\"dialogue\": [\"A: ...\", \"B: ...\"],\n  \"choices\": [\"...\", \"...\", \"...\", \"...\"],\n  \"answer_index\": 0,"),
	},
}

const regenerateTemplate = `
다음은 이전에 생성된 한국어 교육용 콘텐츠입니다:

{original_content}

이 콘텐츠를 다음 요구사항에 맞게 수정해 주세요:

{user_comment}

응답은 반드시 원본과 동일한 JSON 형식으로 제공해 주세요.
마크다운이나 설명 없이 순수한 JSON 객체만 반환해주세요.
`
