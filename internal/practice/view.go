package practice

// QuestionView is the renderer contract for one question: everything the
// client needs to draw the variant, with no answer key leaked before review.
type QuestionView struct {
	ID               string         `json:"id"`
	Kind             Kind           `json:"kind"`
	Prompt           string         `json:"prompt,omitempty"`
	Hint             string         `json:"hint,omitempty"`
	TimeLimitSeconds int            `json:"time_limit_seconds,omitempty"`
	Choices          []string       `json:"choices,omitempty"`
	Cloze            []ClozeSegment `json:"cloze,omitempty"`
	StepCount        int            `json:"step_count,omitempty"`
	Front            string         `json:"front,omitempty"`
	EmbedURL         string         `json:"embed_url,omitempty"`
	Body             string         `json:"body,omitempty"`
	Scorable         bool           `json:"scorable"`
}

func viewOf(q *Question) QuestionView {
	v := QuestionView{
		ID:               q.ID,
		Kind:             q.Kind,
		Prompt:           q.Prompt,
		Hint:             q.Hint,
		TimeLimitSeconds: q.TimeLimitSeconds,
		Scorable:         q.Scorable(),
	}
	switch q.Kind {
	case KindSingleChoice, KindMultipleChoice:
		v.Choices = make([]string, 0, len(q.Choices))
		for _, c := range q.Choices {
			v.Choices = append(v.Choices, c.Label)
		}
	case KindCloze:
		v.Cloze = ParseCloze(q.ClozeText)
	case KindSteps:
		v.StepCount = len(q.Steps)
	case KindFlashcard:
		v.Front = q.Front
	case KindVideoEmbed:
		v.EmbedURL = q.EmbedURL
	case KindInfoBlock:
		v.Body = q.Body
	}
	return v
}

// Snapshot is a point-in-time view of the session for the client.
type Snapshot struct {
	State            State         `json:"state"`
	Tab              Tab           `json:"tab"`
	ExamID           int64         `json:"exam_id"`
	Title            string        `json:"title"`
	Description      string        `json:"description,omitempty"`
	Introduction     string        `json:"introduction,omitempty"`
	Index            int           `json:"index"`
	Total            int           `json:"total"`
	ElapsedSeconds   int           `json:"elapsed_seconds"`
	RemainingSeconds *int          `json:"remaining_seconds,omitempty"`
	Question         *QuestionView `json:"question,omitempty"`
	Answer           *Answer       `json:"answer,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:          s.state,
		Tab:            s.tab,
		ExamID:         s.exam.ID,
		Title:          s.exam.Title,
		Description:    s.exam.Description,
		Introduction:   s.exam.Introduction,
		Index:          s.index,
		Total:          len(s.exam.Questions),
		ElapsedSeconds: s.elapsedSecs,
	}
	if s.state == StateInQuestion {
		q := &s.exam.Questions[s.index]
		v := viewOf(q)
		snap.Question = &v
		snap.Answer = s.answers[q.ID]
		if s.cd != nil {
			remaining := s.cd.remaining
			snap.RemainingSeconds = &remaining
		}
	}
	return snap
}

// ReviewItem pairs a scorable question's stored answer with its derived model
// answer and current evaluation for the self-assessment pass.
type ReviewItem struct {
	Question    QuestionView `json:"question"`
	Answer      *Answer      `json:"answer,omitempty"`
	AnswerText  string       `json:"answer_text"`
	ModelAnswer string       `json:"model_answer"`
	Level       int          `json:"level"`
	Points      int          `json:"points"`
	MaxPoints   int          `json:"max_points"`
}

// ReviewView is the full review screen state: per-question items plus the
// live aggregate.
type ReviewView struct {
	Items     []ReviewItem `json:"items"`
	Scorecard Scorecard    `json:"scorecard"`
}

func (s *Session) Review() (*ReviewView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReview && s.state != StateFinalized {
		return nil, ErrNotInReview
	}

	card := BuildScorecard(s.exam.Questions, s.levels)
	view := &ReviewView{
		Items:     make([]ReviewItem, 0, card.ScorableQuestions),
		Scorecard: card,
	}

	scoreByID := make(map[string]QuestionScore, len(card.PerQuestion))
	for _, qs := range card.PerQuestion {
		scoreByID[qs.QuestionID] = qs
	}

	for i := range s.exam.Questions {
		q := &s.exam.Questions[i]
		if !q.Scorable() {
			continue
		}
		a := s.answers[q.ID]
		qs := scoreByID[q.ID]
		view.Items = append(view.Items, ReviewItem{
			Question:    viewOf(q),
			Answer:      a,
			AnswerText:  a.DisplayText(q),
			ModelAnswer: q.ModelAnswer(),
			Level:       qs.Level,
			Points:      qs.Points,
			MaxPoints:   qs.MaxPoints,
		})
	}
	return view, nil
}
