package quiz

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/coursetrack/internal/apperr"
	"github.com/mind-engage/coursetrack/internal/auth"
	"github.com/mind-engage/coursetrack/internal/course"
	"github.com/mind-engage/coursetrack/internal/db"
	"github.com/mind-engage/coursetrack/internal/enrollment"
	"github.com/mind-engage/coursetrack/internal/eventlog"
	"github.com/mind-engage/coursetrack/internal/grading"
	"github.com/mind-engage/coursetrack/internal/logger"
)

type Options struct {
	// RequireAllAnswers rejects submissions that leave questions
	// unanswered instead of scoring them as incorrect.
	RequireAllAnswers bool
}

// Engine scores quiz submissions and stores them as immutable attempts.
type Engine struct {
	db     *sql.DB
	grader grading.Grader
	agg    enrollment.Recomputer
	opts   Options
	log    *logger.Logger
	now    func() time.Time
}

func NewEngine(d *sql.DB, grader grading.Grader, agg enrollment.Recomputer, opts Options, log *logger.Logger) *Engine {
	if grader == nil {
		grader = grading.NewDefaultGrader()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{db: d, grader: grader, agg: agg, opts: opts, log: log.With("component", "quiz_engine"), now: time.Now}
}

// Submit scores a submission, stores the attempt and recomputes the
// enrollment's progress, all in one transaction.
func (e *Engine) Submit(ctx context.Context, actor auth.Actor, sub Submission) (Attempt, error) {
	if sub.TimeSpent < 0 {
		return Attempt{}, apperr.Invalid("time_spent must not be negative")
	}
	for _, a := range sub.Answers {
		if a.TimeSpent < 0 {
			return Attempt{}, apperr.Invalid("time_spent of question %s must not be negative", a.QuestionID)
		}
	}

	var (
		att  Attempt
		show bool
	)
	err := db.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		qz, err := course.QuizByID(ctx, tx, sub.QuizID)
		if err != nil {
			return err
		}
		if err := enrollment.Lock(ctx, tx, sub.EnrollmentID); err != nil {
			return err
		}
		en, err := enrollment.Get(ctx, tx, sub.EnrollmentID)
		if err != nil {
			return err
		}
		if !actor.CanAccessLearner(en.LearnerID) {
			return apperr.Forbidden("enrollment %s belongs to another learner", en.ID)
		}
		if !qz.IsActive {
			return apperr.Forbidden("quiz %s is not active", qz.ID)
		}
		if qz.CourseID != en.CourseID {
			return apperr.Forbidden("quiz %s is not part of course %s", qz.ID, en.CourseID)
		}
		if sub.IdempotencyKey != "" {
			used, err := idempotencyKeyUsed(ctx, tx, en.ID, sub.IdempotencyKey)
			if err != nil {
				return err
			}
			if used {
				return apperr.Conflict("attempt with idempotency key %q already submitted", sub.IdempotencyKey)
			}
		}

		att = Attempt{
			ID:             uuid.NewString(),
			QuizID:         qz.ID,
			EnrollmentID:   en.ID,
			Status:         StatusStarted,
			PassingScore:   qz.PassingScore,
			TimeSpent:      sub.TimeSpent,
			IdempotencyKey: sub.IdempotencyKey,
		}
		if err := e.score(ctx, qz, sub.Answers, &att); err != nil {
			return err
		}

		// attempt times are strictly increasing per enrollment
		now := e.now()
		last, err := lastCompletedAt(ctx, tx, en.ID)
		if err != nil {
			return err
		}
		if db.Millis(now) <= last {
			now = db.FromMillis(last + 1)
		}
		att.CompletedAt = now.UTC().Truncate(time.Millisecond)
		att.Status = StatusCompleted

		if err := insertAttempt(ctx, tx, &att); err != nil {
			return err
		}
		if err := eventlog.Append(ctx, tx, eventlog.TypeAttemptSubmitted, en.ID, map[string]any{
			"attempt_id": att.ID, "quiz_id": qz.ID, "enrollment_id": en.ID,
			"score": att.Score, "passed": att.Passed,
		}); err != nil {
			return err
		}
		if _, err := e.agg.Recompute(ctx, tx, en.ID); err != nil {
			return err
		}
		show = qz.ShowCorrectAnswers
		return nil
	})
	if err != nil {
		return Attempt{}, err
	}
	e.log.Info("attempt submitted", "attempt_id", att.ID, "quiz_id", att.QuizID,
		"enrollment_id", att.EnrollmentID, "score", att.Score, "passed", att.Passed)
	if !show && !actor.Privileged() {
		att.Redact()
	}
	return att, nil
}

// score validates the answers against the quiz and grades them in
// question order.
func (e *Engine) score(ctx context.Context, qz *course.Quiz, answers []SubmittedAnswer, att *Attempt) error {
	if len(qz.Questions) == 0 {
		return apperr.Invalid("quiz %s has no questions", qz.ID)
	}
	known := make(map[string]bool, len(qz.Questions))
	for _, q := range qz.Questions {
		known[q.ID] = true
	}
	given := make(map[string]SubmittedAnswer, len(answers))
	for _, a := range answers {
		if !known[a.QuestionID] {
			return apperr.Invalid("question %s is not part of quiz %s", a.QuestionID, qz.ID)
		}
		if _, dup := given[a.QuestionID]; dup {
			return apperr.Invalid("question %s answered more than once", a.QuestionID)
		}
		given[a.QuestionID] = a
	}

	att.Status = StatusScoring
	att.Answers = make([]Answer, 0, len(qz.Questions))
	for i, q := range qz.Questions {
		sa, ok := given[q.ID]
		answered := ok && strings.TrimSpace(string(sa.Value)) != ""
		if !answered && e.opts.RequireAllAnswers {
			return apperr.Invalid("question %s is unanswered", q.ID)
		}
		if !e.grader.Supports(q.AnswerType) {
			return apperr.Invalid("question %s has unsupported answer type %q", q.ID, q.AnswerType)
		}
		an := Answer{
			QuestionID:    q.ID,
			Position:      i + 1,
			Value:         string(sa.Value),
			TimeSpent:     sa.TimeSpent,
			CorrectAnswer: q.CorrectAnswer,
			Skipped:       !answered,
		}
		if answered {
			res, err := e.grader.Grade(ctx, grading.Q{Type: q.AnswerType, AnswerKey: q.CorrectAnswer}, an.Value)
			if err != nil {
				return apperr.Internal(err, "grade question %s", q.ID)
			}
			an.IsCorrect = res.Correct
		}
		if an.IsCorrect {
			att.CorrectCount++
		}
		att.Answers = append(att.Answers, an)
	}
	att.TotalQuestions = len(qz.Questions)
	att.Score = Score(att.CorrectCount, att.TotalQuestions)
	att.Passed = att.Score >= att.PassingScore
	return nil
}

// Score is the rounded percentage of correct answers.
func Score(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// ListAttempts returns an enrollment's attempts, optionally for one quiz.
func (e *Engine) ListAttempts(ctx context.Context, actor auth.Actor, enrollmentID, quizID string) ([]Attempt, error) {
	en, err := enrollment.Get(ctx, e.db, enrollmentID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessLearner(en.LearnerID) {
		return nil, apperr.Forbidden("enrollment %s belongs to another learner", enrollmentID)
	}
	atts, err := listAttempts(ctx, e.db, enrollmentID, quizID)
	if err != nil {
		return nil, err
	}
	if actor.Privileged() {
		return atts, nil
	}
	shown := map[string]bool{}
	for i := range atts {
		show, seen := shown[atts[i].QuizID]
		if !seen {
			if show, err = showsAnswers(ctx, e.db, atts[i].QuizID); err != nil {
				return nil, err
			}
			shown[atts[i].QuizID] = show
		}
		if !show {
			atts[i].Redact()
		}
	}
	return atts, nil
}

func (e *Engine) GetAttempt(ctx context.Context, actor auth.Actor, attemptID string) (Attempt, error) {
	att, err := getAttempt(ctx, e.db, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	en, err := enrollment.Get(ctx, e.db, att.EnrollmentID)
	if err != nil {
		return Attempt{}, err
	}
	if !actor.CanAccessLearner(en.LearnerID) {
		return Attempt{}, apperr.Forbidden("attempt %s belongs to another learner", attemptID)
	}
	if !actor.Privileged() {
		show, err := showsAnswers(ctx, e.db, att.QuizID)
		if err != nil {
			return Attempt{}, err
		}
		if !show {
			att.Redact()
		}
	}
	return att, nil
}
