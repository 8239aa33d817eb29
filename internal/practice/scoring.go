package practice

import "math"

const (
	// LevelMin and LevelMax bound the self-assessed mastery scale.
	// 0 means completely wrong, 4 fully correct.
	LevelMin = 0
	LevelMax = 4

	totalPoints = 100
)

// QuestionScore is the evaluated outcome for one scorable question.
type QuestionScore struct {
	QuestionID string `json:"question_id"`
	Level      int    `json:"level"`
	Points     int    `json:"points"`
	MaxPoints  int    `json:"max_points"`
}

// Buckets is the tri-bucket mastery breakdown used for the summary display.
// It is derived from the raw levels and never persisted on its own.
type Buckets struct {
	Full      int `json:"full"`
	Partial   int `json:"partial"`
	NeedsWork int `json:"needs_work"`
}

// Scorecard aggregates the self-assessment pass over all scorable questions.
type Scorecard struct {
	PerQuestion       []QuestionScore `json:"per_question"`
	PointsPerQuestion float64         `json:"points_per_question"`
	TotalScore        int             `json:"total_score"`
	CorrectQuestions  int             `json:"correct_questions"`
	ScorableQuestions int             `json:"scorable_questions"`
	Buckets           Buckets         `json:"buckets"`
}

func clampLevel(level int) int {
	if level < LevelMin {
		return LevelMin
	}
	if level > LevelMax {
		return LevelMax
	}
	return level
}

// pointsPerQuestion divides the 100-point budget evenly over scorable
// questions. Zero when the exam has only filler elements.
func pointsPerQuestion(scorable int) float64 {
	if scorable <= 0 {
		return 0
	}
	return totalPoints / float64(scorable)
}

// pointsFor maps a mastery level to its share of a question's points,
// rounded to the nearest integer.
func pointsFor(level int, ppq float64) int {
	return int(math.Round(float64(clampLevel(level)) / LevelMax * ppq))
}

// BuildScorecard evaluates the levels map against the exam's scorable
// questions. A question without a recorded level counts as level 0.
func BuildScorecard(questions []Question, levels map[string]int) Scorecard {
	scorable := 0
	for i := range questions {
		if questions[i].Scorable() {
			scorable++
		}
	}

	ppq := pointsPerQuestion(scorable)
	card := Scorecard{
		PerQuestion:       make([]QuestionScore, 0, scorable),
		PointsPerQuestion: ppq,
		ScorableQuestions: scorable,
	}

	for i := range questions {
		q := &questions[i]
		if !q.Scorable() {
			continue
		}
		level := clampLevel(levels[q.ID])
		points := pointsFor(level, ppq)
		card.PerQuestion = append(card.PerQuestion, QuestionScore{
			QuestionID: q.ID,
			Level:      level,
			Points:     points,
			MaxPoints:  pointsFor(LevelMax, ppq),
		})
		card.TotalScore += points

		switch {
		case level == LevelMax:
			card.CorrectQuestions++
			card.Buckets.Full++
		case level >= 2:
			card.Buckets.Partial++
		default:
			card.Buckets.NeedsWork++
		}
	}

	return card
}
