package quiz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Attempt lifecycle. Only completed attempts are persisted; the earlier
// stages exist while a submission is being scored.
const (
	StatusStarted   = "STARTED"
	StatusScoring   = "SCORING"
	StatusCompleted = "COMPLETED"
)

type Attempt struct {
	ID             string    `json:"id"`
	QuizID         string    `json:"quiz_id"`
	EnrollmentID   string    `json:"enrollment_id"`
	Status         string    `json:"status"`
	Score          int       `json:"score"`
	Passed         bool      `json:"passed"`
	CorrectCount   int       `json:"correct_count"`
	TotalQuestions int       `json:"total_questions"`
	PassingScore   int       `json:"passing_score"`
	TimeSpent      int       `json:"time_spent"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	CompletedAt    time.Time `json:"completed_at"`
	Answers        []Answer  `json:"answers"`
}

type Answer struct {
	QuestionID    string `json:"question_id"`
	Position      int    `json:"position"`
	Value         string `json:"value"`
	IsCorrect     bool   `json:"is_correct"`
	Skipped       bool   `json:"skipped"`
	TimeSpent     int    `json:"time_spent"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
}

// Redact strips the expected answers.
func (a *Attempt) Redact() {
	for i := range a.Answers {
		a.Answers[i].CorrectAnswer = ""
	}
}

// Submission is one learner's answers to a quiz.
type Submission struct {
	QuizID         string
	EnrollmentID   string
	Answers        []SubmittedAnswer
	IdempotencyKey string
	TimeSpent      int // seconds, whole attempt
}

type SubmittedAnswer struct {
	QuestionID string      `json:"question_id" validate:"required"`
	Value      AnswerValue `json:"value"`
	TimeSpent  int         `json:"time_spent" validate:"gte=0"`
}

// AnswerValue is a response as text. JSON strings, booleans and numbers
// are accepted; null means unanswered.
type AnswerValue string

func (v *AnswerValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*v = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = AnswerValue(s)
	case bytes.Equal(b, []byte("true")), bytes.Equal(b, []byte("false")):
		*v = AnswerValue(b)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("answer value must be a string, boolean or number")
		}
		*v = AnswerValue(n.String())
	}
	return nil
}

// Summary is the score of an attempt without its answers. Whether it
// passes is decided against the quiz's current passing score.
type Summary struct {
	AttemptID   string
	QuizID      string
	Score       int
	CompletedAt time.Time
}
