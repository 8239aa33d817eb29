package practice

import (
	"strconv"
	"strings"
)

// Answer holds a learner's raw input for one question. The populated field
// depends on the question kind; a zero Answer is the empty placeholder
// recorded when a timed question expires without any interaction.
type Answer struct {
	Text        string            `json:"text,omitempty"`
	Bool        *bool             `json:"bool,omitempty"`
	Selected    *int              `json:"selected,omitempty"`
	SelectedSet map[int]bool      `json:"selected_set,omitempty"`
	Entries     map[string]string `json:"entries,omitempty"`
}

// Empty reports whether the answer carries no learner input at all.
func (a *Answer) Empty() bool {
	if a == nil {
		return true
	}
	if a.Text != "" || a.Bool != nil || a.Selected != nil {
		return false
	}
	if len(a.SelectedSet) > 0 {
		return false
	}
	for _, v := range a.Entries {
		if v != "" {
			return false
		}
	}
	return true
}

func (a *Answer) setText(text string) {
	a.Text = text
}

func (a *Answer) setBool(v bool) {
	a.Bool = &v
}

// selectChoice replaces any previous selection. Re-selecting never appends.
func (a *Answer) selectChoice(idx int) {
	a.Selected = &idx
}

// toggleChoice adds the index to the selection set, or removes it when
// already present.
func (a *Answer) toggleChoice(idx int) {
	if a.SelectedSet == nil {
		a.SelectedSet = make(map[int]bool)
	}
	if a.SelectedSet[idx] {
		delete(a.SelectedSet, idx)
		return
	}
	a.SelectedSet[idx] = true
}

func (a *Answer) setEntry(key, text string) {
	if a.Entries == nil {
		a.Entries = make(map[string]string)
	}
	a.Entries[key] = text
}

// stepKey maps a zero-based step position to its entries key.
func stepKey(idx int) string {
	return strconv.Itoa(idx)
}

// DisplayText renders the answer for review, shaped per question kind.
func (a *Answer) DisplayText(q *Question) string {
	if a == nil {
		return ""
	}
	switch q.Kind {
	case KindShortText, KindLongText, KindFlashcard:
		return a.Text
	case KindTrueFalse:
		if a.Bool == nil {
			return ""
		}
		if *a.Bool {
			return "true"
		}
		return "false"
	case KindSingleChoice:
		if a.Selected == nil || *a.Selected < 0 || *a.Selected >= len(q.Choices) {
			return ""
		}
		return q.Choices[*a.Selected].Label
	case KindMultipleChoice:
		labels := make([]string, 0, len(a.SelectedSet))
		for i, c := range q.Choices {
			if a.SelectedSet[i] {
				labels = append(labels, c.Label)
			}
		}
		return strings.Join(labels, ", ")
	case KindCloze:
		tokens := q.GapTokens()
		parts := make([]string, 0, len(tokens))
		for _, token := range tokens {
			parts = append(parts, token+": "+a.Entries[token])
		}
		return strings.Join(parts, ", ")
	case KindSteps:
		parts := make([]string, 0, len(q.Steps))
		for i := range q.Steps {
			parts = append(parts, a.Entries[stepKey(i)])
		}
		return strings.Join(parts, " -> ")
	default:
		return ""
	}
}
