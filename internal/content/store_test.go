package content

import (
	"errors"
	"testing"

	"studylab/internal/practice"
)

func TestDecodeQuestion(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		kind    string
		payload string
		check   func(t *testing.T, q practice.Question)
		wantErr bool
	}{
		{
			name:    "single choice",
			key:     "q1",
			kind:    "single_choice",
			payload: `{"prompt":"pick one","choices":[{"label":"a","correct":true},{"label":"b"}]}`,
			check: func(t *testing.T, q practice.Question) {
				if q.Prompt != "pick one" || len(q.Choices) != 2 || !q.Choices[0].Correct {
					t.Fatalf("unexpected question %+v", q)
				}
			},
		},
		{
			name:    "cloze with time limit",
			key:     "q2",
			kind:    "cloze",
			payload: `{"prompt":"fill","cloze_text":"a {{1}} b","time_limit_seconds":30}`,
			check: func(t *testing.T, q practice.Question) {
				if q.TimeLimitSeconds != 30 || q.ClozeText != "a {{1}} b" {
					t.Fatalf("unexpected question %+v", q)
				}
			},
		},
		{
			name:    "payload cannot override key or kind",
			key:     "q3",
			kind:    "info_block",
			payload: `{"id":"evil","kind":"short_text","body":"read"}`,
			check: func(t *testing.T, q practice.Question) {
				if q.ID != "q3" || q.Kind != practice.KindInfoBlock {
					t.Fatalf("row columns must win, got %+v", q)
				}
			},
		},
		{
			name:    "empty payload",
			key:     "q4",
			kind:    "short_text",
			payload: "",
			check: func(t *testing.T, q practice.Question) {
				if q.ID != "q4" || q.Kind != practice.KindShortText {
					t.Fatalf("unexpected question %+v", q)
				}
			},
		},
		{
			name:    "unknown kind",
			key:     "q5",
			kind:    "essay_graded",
			payload: `{}`,
			wantErr: true,
		},
		{
			name:    "malformed payload",
			key:     "q6",
			kind:    "short_text",
			payload: `{"prompt":`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q, err := decodeQuestion(tc.key, tc.kind, []byte(tc.payload))
			if tc.wantErr {
				if !errors.Is(err, ErrBadQuestion) {
					t.Fatalf("expected ErrBadQuestion, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			tc.check(t, q)
		})
	}
}
