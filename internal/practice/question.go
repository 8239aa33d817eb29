package practice

import (
	"encoding/json"
	"regexp"
	"strings"
)

type Kind string

const (
	KindShortText      Kind = "short_text"
	KindLongText       Kind = "long_text"
	KindSingleChoice   Kind = "single_choice"
	KindMultipleChoice Kind = "multiple_choice"
	KindTrueFalse      Kind = "true_false"
	KindCloze          Kind = "cloze"
	KindSteps          Kind = "steps"
	KindFlashcard      Kind = "flashcard"
	KindInfoBlock      Kind = "info_block"
	KindVideoEmbed     Kind = "video_embed"
)

func ValidKind(k Kind) bool {
	switch k {
	case KindShortText, KindLongText, KindSingleChoice, KindMultipleChoice,
		KindTrueFalse, KindCloze, KindSteps, KindFlashcard, KindInfoBlock, KindVideoEmbed:
		return true
	default:
		return false
	}
}

type Choice struct {
	Label   string `json:"label"`
	Correct bool   `json:"correct"`
}

// Question is one element of an exam. Loaded once per session, never mutated.
type Question struct {
	ID               string            `json:"id"`
	Kind             Kind              `json:"kind"`
	Prompt           string            `json:"prompt"`
	Hint             string            `json:"hint,omitempty"`
	TimeLimitSeconds int               `json:"time_limit_seconds,omitempty"`
	Choices          []Choice          `json:"choices,omitempty"`
	CorrectBool      *bool             `json:"correct_bool,omitempty"`
	ClozeText        string            `json:"cloze_text,omitempty"`
	ClozeAnswers     map[string]string `json:"cloze_answers,omitempty"`
	Steps            []string          `json:"steps,omitempty"`
	Front            string            `json:"front,omitempty"`
	Back             string            `json:"back,omitempty"`
	ModelText        string            `json:"model_text,omitempty"`
	EmbedURL         string            `json:"embed_url,omitempty"`
	Body             string            `json:"body,omitempty"`
}

// Scorable reports whether the question participates in scoring. Info blocks
// and video embeds are filler elements: shown in sequence, excluded from the
// points denominator and from review.
func (q *Question) Scorable() bool {
	return q.Kind != KindInfoBlock && q.Kind != KindVideoEmbed
}

// ModelAnswer derives the reference answer string shown next to the learner's
// answer during review. Each kind has its own rendering.
func (q *Question) ModelAnswer() string {
	switch q.Kind {
	case KindShortText, KindLongText:
		return q.ModelText
	case KindSingleChoice, KindMultipleChoice:
		labels := make([]string, 0, len(q.Choices))
		for _, c := range q.Choices {
			if c.Correct {
				labels = append(labels, c.Label)
			}
		}
		return strings.Join(labels, ", ")
	case KindTrueFalse:
		if q.CorrectBool == nil {
			return ""
		}
		if *q.CorrectBool {
			return "true"
		}
		return "false"
	case KindCloze:
		if len(q.ClozeAnswers) == 0 {
			return ""
		}
		b, err := json.Marshal(q.ClozeAnswers)
		if err != nil {
			return ""
		}
		return string(b)
	case KindSteps:
		return strings.Join(q.Steps, " -> ")
	case KindFlashcard:
		return q.Back
	default:
		return ""
	}
}

var clozeGapPattern = regexp.MustCompile(`\{\{(\d+)\}\}`)

// ClozeSegment is a run of literal text optionally followed by a gap. A
// segment with an empty GapToken is trailing text after the last gap.
type ClozeSegment struct {
	Text     string `json:"text"`
	GapToken string `json:"gap_token,omitempty"`
}

// ParseCloze splits cloze source text on {{n}} markers. The returned segments
// preserve source order; gap tokens are the literal digits captured from the
// marker, which also key the answer mapping.
func ParseCloze(text string) []ClozeSegment {
	matches := clozeGapPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []ClozeSegment{{Text: text}}
	}

	segments := make([]ClozeSegment, 0, len(matches)+1)
	prev := 0
	for _, m := range matches {
		segments = append(segments, ClozeSegment{
			Text:     text[prev:m[0]],
			GapToken: text[m[2]:m[3]],
		})
		prev = m[1]
	}
	if prev < len(text) {
		segments = append(segments, ClozeSegment{Text: text[prev:]})
	}
	return segments
}

// GapTokens returns the gap tokens of a cloze question in source order.
func (q *Question) GapTokens() []string {
	var tokens []string
	for _, seg := range ParseCloze(q.ClozeText) {
		if seg.GapToken != "" {
			tokens = append(tokens, seg.GapToken)
		}
	}
	return tokens
}

// Exam is the content bundle loaded once, atomically, before a session can
// reach its intro state.
type Exam struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Introduction string     `json:"introduction"`
	Questions    []Question `json:"questions"`
}

// ScorableCount returns the number of questions that participate in scoring.
func (e *Exam) ScorableCount() int {
	n := 0
	for i := range e.Questions {
		if e.Questions[i].Scorable() {
			n++
		}
	}
	return n
}
