package quiz

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/mind-engage/coursetrack/internal/apperr"
	"github.com/mind-engage/coursetrack/internal/db"
)

const attemptCols = `id, quiz_id, enrollment_id, score, passed, correct_count, total_questions,
	passing_score, time_spent, idempotency_key, completed_at`

type scanner interface{ Scan(dest ...any) error }

func scanAttempt(s scanner) (Attempt, error) {
	var (
		a   Attempt
		key sql.NullString
		at  int64
	)
	if err := s.Scan(&a.ID, &a.QuizID, &a.EnrollmentID, &a.Score, &a.Passed, &a.CorrectCount,
		&a.TotalQuestions, &a.PassingScore, &a.TimeSpent, &key, &at); err != nil {
		return Attempt{}, err
	}
	a.Status = StatusCompleted
	a.IdempotencyKey = key.String
	a.CompletedAt = db.FromMillis(at)
	a.Answers = []Answer{}
	return a, nil
}

func insertAttempt(ctx context.Context, tx *sql.Tx, a *Attempt) error {
	var key sql.NullString
	if a.IdempotencyKey != "" {
		key = sql.NullString{String: a.IdempotencyKey, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO quiz_attempts (`+attemptCols+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, a.QuizID, a.EnrollmentID, a.Score, a.Passed, a.CorrectCount, a.TotalQuestions,
		a.PassingScore, a.TimeSpent, key, db.Millis(a.CompletedAt)); err != nil {
		return apperr.Internal(err, "insert attempt")
	}
	for _, an := range a.Answers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attempt_answers (attempt_id, question_id, position, value, is_correct, skipped, time_spent, correct_answer)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			a.ID, an.QuestionID, an.Position, an.Value, an.IsCorrect, an.Skipped, an.TimeSpent, an.CorrectAnswer); err != nil {
			return apperr.Internal(err, "insert attempt answer")
		}
	}
	return nil
}

func idempotencyKeyUsed(ctx context.Context, q db.Querier, enrollmentID, key string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM quiz_attempts WHERE enrollment_id=$1 AND idempotency_key=$2`, enrollmentID, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Internal(err, "check idempotency key")
	}
	return true, nil
}

// lastCompletedAt is the newest attempt time of an enrollment in millis, or 0.
func lastCompletedAt(ctx context.Context, q db.Querier, enrollmentID string) (int64, error) {
	var ms sql.NullInt64
	if err := q.QueryRowContext(ctx,
		`SELECT MAX(completed_at) FROM quiz_attempts WHERE enrollment_id=$1`, enrollmentID).Scan(&ms); err != nil {
		return 0, apperr.Internal(err, "last attempt time")
	}
	return ms.Int64, nil
}

func getAttempt(ctx context.Context, q db.Querier, attemptID string) (Attempt, error) {
	a, err := scanAttempt(q.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM quiz_attempts WHERE id=$1`, attemptID))
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, apperr.NotFound("attempt %s not found", attemptID)
	}
	if err != nil {
		return Attempt{}, apperr.Internal(err, "get attempt %s", attemptID)
	}
	answers, err := loadAnswers(ctx, q, `attempt_id=$1`, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if as, ok := answers[a.ID]; ok {
		a.Answers = as
	}
	return a, nil
}

// listAttempts returns an enrollment's attempts oldest first, optionally
// for one quiz.
func listAttempts(ctx context.Context, q db.Querier, enrollmentID, quizID string) ([]Attempt, error) {
	where := []string{`enrollment_id=$1`}
	args := []any{enrollmentID}
	if quizID != "" {
		where = append(where, `quiz_id=$2`)
		args = append(args, quizID)
	}
	cond := strings.Join(where, " AND ")
	rows, err := q.QueryContext(ctx,
		`SELECT `+attemptCols+` FROM quiz_attempts WHERE `+cond+` ORDER BY completed_at, id`, args...)
	if err != nil {
		return nil, apperr.Internal(err, "list attempts")
	}
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			rows.Close()
			return nil, apperr.Internal(err, "scan attempt")
		}
		out = append(out, a)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, apperr.Internal(err, "list attempts")
	}

	answers, err := loadAnswers(ctx, q,
		`attempt_id IN (SELECT id FROM quiz_attempts WHERE `+cond+`)`, args...)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if as, ok := answers[out[i].ID]; ok {
			out[i].Answers = as
		}
	}
	return out, nil
}

func loadAnswers(ctx context.Context, q db.Querier, where string, args ...any) (map[string][]Answer, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT attempt_id, question_id, position, value, is_correct, skipped, time_spent, correct_answer
		 FROM attempt_answers WHERE `+where+` ORDER BY attempt_id, position`, args...)
	if err != nil {
		return nil, apperr.Internal(err, "load answers")
	}
	defer rows.Close()
	out := map[string][]Answer{}
	for rows.Next() {
		var (
			id string
			an Answer
		)
		if err := rows.Scan(&id, &an.QuestionID, &an.Position, &an.Value, &an.IsCorrect, &an.Skipped, &an.TimeSpent, &an.CorrectAnswer); err != nil {
			return nil, apperr.Internal(err, "scan answer")
		}
		out[id] = append(out[id], an)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(err, "load answers")
	}
	return out, nil
}

// Summaries returns every attempt of an enrollment by quiz id, oldest first.
func Summaries(ctx context.Context, q db.Querier, enrollmentID string) (map[string][]Summary, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, quiz_id, score, completed_at
		 FROM quiz_attempts WHERE enrollment_id=$1 ORDER BY completed_at, id`, enrollmentID)
	if err != nil {
		return nil, apperr.Internal(err, "load attempt summaries")
	}
	defer rows.Close()
	out := map[string][]Summary{}
	for rows.Next() {
		var (
			s  Summary
			at int64
		)
		if err := rows.Scan(&s.AttemptID, &s.QuizID, &s.Score, &at); err != nil {
			return nil, apperr.Internal(err, "scan attempt summary")
		}
		s.CompletedAt = db.FromMillis(at)
		out[s.QuizID] = append(out[s.QuizID], s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(err, "load attempt summaries")
	}
	return out, nil
}

// showsAnswers reports the quiz's show_correct_answers flag. A quiz that
// no longer exists shows nothing.
func showsAnswers(ctx context.Context, q db.Querier, quizID string) (bool, error) {
	var show bool
	err := q.QueryRowContext(ctx, `SELECT show_correct_answers FROM quizzes WHERE id=$1`, quizID).Scan(&show)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Internal(err, "load quiz %s", quizID)
	}
	return show, nil
}
