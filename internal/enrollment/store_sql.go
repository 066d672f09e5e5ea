package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mind-engage/coursetrack/internal/apperr"
	"github.com/mind-engage/coursetrack/internal/db"
)

const enrollmentCols = `id, learner_id, course_id, status, progress, created_at, updated_at, completed_at`

type scanner interface{ Scan(dest ...any) error }

func scanEnrollment(s scanner) (Enrollment, error) {
	var (
		e                Enrollment
		created, updated int64
		completed        sql.NullInt64
	)
	if err := s.Scan(&e.ID, &e.LearnerID, &e.CourseID, &e.Status, &e.Progress, &created, &updated, &completed); err != nil {
		return Enrollment{}, err
	}
	e.CreatedAt = db.FromMillis(created)
	e.UpdatedAt = db.FromMillis(updated)
	e.CompletedAt = db.TimePtr(completed)
	return e, nil
}

// Lock takes the per-enrollment write lock for the rest of tx. Every
// transaction that can change progress calls it first.
func Lock(ctx context.Context, tx *sql.Tx, enrollmentID string) error {
	res, err := tx.ExecContext(ctx, `UPDATE enrollments SET updated_at=updated_at WHERE id=$1`, enrollmentID)
	if err != nil {
		return apperr.Internal(err, "lock enrollment %s", enrollmentID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Internal(err, "lock enrollment %s", enrollmentID)
	}
	if n == 0 {
		return apperr.NotFound("enrollment %s not found", enrollmentID)
	}
	return nil
}

func Get(ctx context.Context, q db.Querier, enrollmentID string) (Enrollment, error) {
	e, err := scanEnrollment(q.QueryRowContext(ctx,
		`SELECT `+enrollmentCols+` FROM enrollments WHERE id=$1`, enrollmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return Enrollment{}, apperr.NotFound("enrollment %s not found", enrollmentID)
	}
	if err != nil {
		return Enrollment{}, apperr.Internal(err, "get enrollment %s", enrollmentID)
	}
	return e, nil
}

func getByLearnerCourse(ctx context.Context, q db.Querier, learnerID, courseID string) (Enrollment, error) {
	e, err := scanEnrollment(q.QueryRowContext(ctx,
		`SELECT `+enrollmentCols+` FROM enrollments WHERE learner_id=$1 AND course_id=$2`, learnerID, courseID))
	if err != nil {
		return Enrollment{}, apperr.Internal(err, "get enrollment of %s in %s", learnerID, courseID)
	}
	return e, nil
}

// insert reports false when the learner is already enrolled.
func insert(ctx context.Context, q db.Querier, e Enrollment) (bool, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO enrollments (id, learner_id, course_id, status, progress, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$6)
		 ON CONFLICT (learner_id, course_id) DO NOTHING`,
		e.ID, e.LearnerID, e.CourseID, e.Status, e.Progress, db.Millis(e.CreatedAt))
	if err != nil {
		return false, apperr.Internal(err, "insert enrollment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Internal(err, "insert enrollment")
	}
	return n == 1, nil
}

func list(ctx context.Context, q db.Querier, learnerID string) ([]Enrollment, error) {
	query := `SELECT ` + enrollmentCols + ` FROM enrollments`
	var args []any
	if learnerID != "" {
		query += ` WHERE learner_id=$1`
		args = append(args, learnerID)
	}
	query += ` ORDER BY created_at, id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Internal(err, "list enrollments")
	}
	defer rows.Close()
	out := []Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, apperr.Internal(err, "scan enrollment")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(err, "list enrollments")
	}
	return out, nil
}

// IDsByCourse lists the enrollments of a course.
func IDsByCourse(ctx context.Context, q db.Querier, courseID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM enrollments WHERE course_id=$1 ORDER BY id`, courseID)
	if err != nil {
		return nil, apperr.Internal(err, "list enrollments of %s", courseID)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Internal(err, "scan enrollment id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(err, "list enrollments of %s", courseID)
	}
	return ids, nil
}

// UpdateProgress stores a derived completion value.
func UpdateProgress(ctx context.Context, q db.Querier, enrollmentID string, progress int, status string, completedAt *time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE enrollments SET progress=$1, status=$2, completed_at=$3, updated_at=$4 WHERE id=$5`,
		progress, status, db.NullMillis(completedAt), db.Millis(time.Now()), enrollmentID)
	if err != nil {
		return apperr.Internal(err, "update progress of %s", enrollmentID)
	}
	return nil
}

// LessonStates returns the lesson progress rows of an enrollment by lesson id.
func LessonStates(ctx context.Context, q db.Querier, enrollmentID string) (map[string]LessonProgress, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT enrollment_id, lesson_id, state, last_visited_at, completed_at
		 FROM lesson_progress WHERE enrollment_id=$1`, enrollmentID)
	if err != nil {
		return nil, apperr.Internal(err, "load lesson progress of %s", enrollmentID)
	}
	defer rows.Close()
	out := map[string]LessonProgress{}
	for rows.Next() {
		lp, err := scanLessonProgress(rows)
		if err != nil {
			return nil, apperr.Internal(err, "scan lesson progress")
		}
		out[lp.LessonID] = lp
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(err, "load lesson progress of %s", enrollmentID)
	}
	return out, nil
}

func scanLessonProgress(s scanner) (LessonProgress, error) {
	var (
		lp        LessonProgress
		visited   int64
		completed sql.NullInt64
	)
	if err := s.Scan(&lp.EnrollmentID, &lp.LessonID, &lp.State, &visited, &completed); err != nil {
		return LessonProgress{}, err
	}
	lp.LastVisitedAt = db.FromMillis(visited)
	lp.CompletedAt = db.TimePtr(completed)
	return lp, nil
}

// findLessonProgress reports false when the lesson was never touched.
func findLessonProgress(ctx context.Context, q db.Querier, enrollmentID, lessonID string) (LessonProgress, bool, error) {
	lp, err := scanLessonProgress(q.QueryRowContext(ctx,
		`SELECT enrollment_id, lesson_id, state, last_visited_at, completed_at
		 FROM lesson_progress WHERE enrollment_id=$1 AND lesson_id=$2`, enrollmentID, lessonID))
	if errors.Is(err, sql.ErrNoRows) {
		return LessonProgress{}, false, nil
	}
	if err != nil {
		return LessonProgress{}, false, apperr.Internal(err, "get lesson progress")
	}
	return lp, true, nil
}

func getLessonProgress(ctx context.Context, q db.Querier, enrollmentID, lessonID string) (LessonProgress, error) {
	lp, ok, err := findLessonProgress(ctx, q, enrollmentID, lessonID)
	if err != nil {
		return LessonProgress{}, err
	}
	if !ok {
		return LessonProgress{}, apperr.Internal(sql.ErrNoRows, "lesson progress %s/%s missing after write", enrollmentID, lessonID)
	}
	return lp, nil
}

// upsertVisit creates the row lazily. Callers skip completed lessons; the
// CASE keeps them completed regardless.
func upsertVisit(ctx context.Context, q db.Querier, enrollmentID, lessonID string, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO lesson_progress (enrollment_id, lesson_id, state, last_visited_at)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT (enrollment_id, lesson_id) DO UPDATE SET
		   last_visited_at=EXCLUDED.last_visited_at,
		   state=CASE WHEN lesson_progress.state=$5 THEN lesson_progress.state ELSE EXCLUDED.state END`,
		enrollmentID, lessonID, StateInProgress, db.Millis(at), StateCompleted)
	if err != nil {
		return apperr.Internal(err, "record visit")
	}
	return nil
}

// upsertComplete keeps the first completion time on repeats.
func upsertComplete(ctx context.Context, q db.Querier, enrollmentID, lessonID string, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO lesson_progress (enrollment_id, lesson_id, state, last_visited_at, completed_at)
		 VALUES ($1,$2,$3,$4,$4)
		 ON CONFLICT (enrollment_id, lesson_id) DO UPDATE SET
		   state=EXCLUDED.state,
		   last_visited_at=EXCLUDED.last_visited_at,
		   completed_at=COALESCE(lesson_progress.completed_at, EXCLUDED.completed_at)`,
		enrollmentID, lessonID, StateCompleted, db.Millis(at))
	if err != nil {
		return apperr.Internal(err, "record completion")
	}
	return nil
}
