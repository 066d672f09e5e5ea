package course

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/coursetrack/internal/apperr"
	"github.com/mind-engage/coursetrack/internal/db"
)

// The functions here take a db.Querier so they run the same way on the
// pool or inside a caller's transaction. Each query's rows are closed
// before the next one starts; SQLite runs on a single connection.

// LoadCourse reads the full tree of a course, ordered by position.
func LoadCourse(ctx context.Context, q db.Querier, courseID string) (*Course, error) {
	c := &Course{}
	err := q.QueryRowContext(ctx,
		`SELECT id, title, description FROM courses WHERE id=$1`, courseID).
		Scan(&c.ID, &c.Title, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("course %s not found", courseID)
	}
	if err != nil {
		return nil, apperr.Internal(err, "load course %s", courseID)
	}

	modules, err := loadModules(ctx, q, courseID)
	if err != nil {
		return nil, apperr.Internal(err, "load modules of %s", courseID)
	}
	lessons, err := loadLessons(ctx, q, courseID)
	if err != nil {
		return nil, apperr.Internal(err, "load lessons of %s", courseID)
	}
	resources, err := loadResources(ctx, q, courseID)
	if err != nil {
		return nil, apperr.Internal(err, "load resources of %s", courseID)
	}
	quizzes, err := loadQuizzes(ctx, q, `WHERE course_id=$1`, courseID)
	if err != nil {
		return nil, apperr.Internal(err, "load quizzes of %s", courseID)
	}
	questions, err := loadQuestions(ctx, q,
		`WHERE quiz_id IN (SELECT id FROM quizzes WHERE course_id=$1)`, courseID)
	if err != nil {
		return nil, apperr.Internal(err, "load questions of %s", courseID)
	}

	// assemble bottom-up
	for i := range quizzes {
		quizzes[i].Questions = questions[quizzes[i].ID]
	}
	byLessonQuiz := map[string][]Quiz{}
	for _, qz := range quizzes {
		if qz.LessonID == "" {
			c.Quizzes = append(c.Quizzes, qz)
			continue
		}
		byLessonQuiz[qz.LessonID] = append(byLessonQuiz[qz.LessonID], qz)
	}
	byModule := map[string][]Lesson{}
	for _, l := range lessons {
		l.Resources = resources[l.ID]
		l.Quizzes = byLessonQuiz[l.ID]
		byModule[l.ModuleID] = append(byModule[l.ModuleID], l)
	}
	for _, m := range modules {
		m.Lessons = byModule[m.ID]
		c.Modules = append(c.Modules, m)
	}
	c.normalize()
	return c, nil
}

func loadModules(ctx context.Context, q db.Querier, courseID string) ([]Module, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, course_id, title, position FROM course_modules
		 WHERE course_id=$1 ORDER BY position`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.CourseID, &m.Title, &m.Position); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func loadLessons(ctx context.Context, q db.Querier, courseID string) ([]Lesson, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, module_id, title, content_type, position, is_required, is_preview
		 FROM lessons WHERE course_id=$1 ORDER BY position`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Lesson
	for rows.Next() {
		var l Lesson
		if err := rows.Scan(&l.ID, &l.ModuleID, &l.Title, &l.ContentType, &l.Position, &l.IsRequired, &l.IsPreview); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func loadResources(ctx context.Context, q db.Querier, courseID string) (map[string][]Resource, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT r.id, r.lesson_id, r.title, r.type, r.url, r.storage_key, r.position
		 FROM resources r JOIN lessons l ON l.id = r.lesson_id
		 WHERE l.course_id=$1 ORDER BY r.lesson_id, r.position`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string][]Resource{}
	for rows.Next() {
		var r Resource
		if err := rows.Scan(&r.ID, &r.LessonID, &r.Title, &r.Type, &r.URL, &r.StorageKey, &r.Position); err != nil {
			return nil, err
		}
		out[r.LessonID] = append(out[r.LessonID], r)
	}
	return out, rows.Err()
}

func loadQuizzes(ctx context.Context, q db.Querier, where string, arg any) ([]Quiz, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, course_id, lesson_id, title, passing_score, time_limit_min,
		        show_correct_answers, is_active, position
		 FROM quizzes `+where+` ORDER BY position`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Quiz
	for rows.Next() {
		var (
			qz     Quiz
			lesson sql.NullString
			limit  sql.NullInt64
		)
		if err := rows.Scan(&qz.ID, &qz.CourseID, &lesson, &qz.Title, &qz.PassingScore, &limit,
			&qz.ShowCorrectAnswers, &qz.IsActive, &qz.Position); err != nil {
			return nil, err
		}
		qz.LessonID = lesson.String
		if limit.Valid {
			v := int(limit.Int64)
			qz.TimeLimit = &v
		}
		out = append(out, qz)
	}
	return out, rows.Err()
}

func loadQuestions(ctx context.Context, q db.Querier, where string, arg any) (map[string][]Question, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, quiz_id, prompt, answer_type, options_json, correct_answer, position
		 FROM questions `+where+` ORDER BY quiz_id, position`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string][]Question{}
	for rows.Next() {
		var (
			qs   Question
			opts string
		)
		if err := rows.Scan(&qs.ID, &qs.QuizID, &qs.Prompt, &qs.AnswerType, &opts, &qs.CorrectAnswer, &qs.Position); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(opts), &qs.Options); err != nil {
			return nil, fmt.Errorf("question %s options: %w", qs.ID, err)
		}
		out[qs.QuizID] = append(out[qs.QuizID], qs)
	}
	return out, rows.Err()
}

// QuizByID loads one quiz with its questions and answer keys.
func QuizByID(ctx context.Context, q db.Querier, quizID string) (*Quiz, error) {
	quizzes, err := loadQuizzes(ctx, q, `WHERE id=$1`, quizID)
	if err != nil {
		return nil, apperr.Internal(err, "load quiz %s", quizID)
	}
	if len(quizzes) == 0 {
		return nil, apperr.NotFound("quiz %s not found", quizID)
	}
	qs, err := loadQuestions(ctx, q, `WHERE quiz_id=$1`, quizID)
	if err != nil {
		return nil, apperr.Internal(err, "load questions of quiz %s", quizID)
	}
	qz := quizzes[0]
	qz.Questions = qs[quizID]
	qz.normalize()
	return &qz, nil
}

// LessonCourse returns the id of the course a lesson belongs to.
func LessonCourse(ctx context.Context, q db.Querier, lessonID string) (string, error) {
	var courseID string
	err := q.QueryRowContext(ctx, `SELECT course_id FROM lessons WHERE id=$1`, lessonID).Scan(&courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.NotFound("lesson %s not found", lessonID)
	}
	if err != nil {
		return "", apperr.Internal(err, "load lesson %s", lessonID)
	}
	return courseID, nil
}

func Exists(ctx context.Context, q db.Querier, courseID string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM courses WHERE id=$1`, courseID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Internal(err, "check course %s", courseID)
	}
	return true, nil
}

// checkForeignIDs rejects ids already used by another course's tree.
func checkForeignIDs(ctx context.Context, q db.Querier, c *Course) error {
	checkOwner := func(query, id string) error {
		var owner string
		err := q.QueryRowContext(ctx, query, id).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return apperr.Internal(err, "check id %s", id)
		}
		if owner != c.ID {
			return apperr.Conflict("id %s already belongs to course %s", id, owner)
		}
		return nil
	}
	for _, m := range c.Modules {
		if err := checkOwner(`SELECT course_id FROM course_modules WHERE id=$1`, m.ID); err != nil {
			return err
		}
		for _, l := range m.Lessons {
			if err := checkOwner(`SELECT course_id FROM lessons WHERE id=$1`, l.ID); err != nil {
				return err
			}
			for _, r := range l.Resources {
				if err := checkOwner(`SELECT l.course_id FROM resources r JOIN lessons l ON l.id = r.lesson_id WHERE r.id=$1`, r.ID); err != nil {
					return err
				}
			}
		}
	}
	for _, qz := range c.AllQuizzes() {
		if err := checkOwner(`SELECT course_id FROM quizzes WHERE id=$1`, qz.ID); err != nil {
			return err
		}
		for _, qs := range qz.Questions {
			if err := checkOwner(`SELECT z.course_id FROM questions q JOIN quizzes z ON z.id = q.quiz_id WHERE q.id=$1`, qs.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// replaceTree upserts the course row and rewrites everything below it.
// Enrollments, lesson progress and attempts reference ids only and are
// left untouched.
func replaceTree(ctx context.Context, tx *sql.Tx, c *Course) error {
	now := db.Millis(time.Now())
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO courses (id, title, description, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$4)
		 ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, description=EXCLUDED.description, updated_at=EXCLUDED.updated_at`,
		c.ID, c.Title, c.Description, now); err != nil {
		return fmt.Errorf("upsert course: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM quizzes WHERE course_id=$1`, c.ID); err != nil {
		return fmt.Errorf("clear quizzes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM course_modules WHERE course_id=$1`, c.ID); err != nil {
		return fmt.Errorf("clear modules: %w", err)
	}

	for _, m := range c.Modules {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO course_modules (id, course_id, title, position) VALUES ($1,$2,$3,$4)`,
			m.ID, c.ID, m.Title, m.Position); err != nil {
			return fmt.Errorf("insert module %s: %w", m.ID, err)
		}
		for _, l := range m.Lessons {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO lessons (id, module_id, course_id, title, content_type, position, is_required, is_preview)
				 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
				l.ID, m.ID, c.ID, l.Title, l.ContentType, l.Position, l.IsRequired, l.IsPreview); err != nil {
				return fmt.Errorf("insert lesson %s: %w", l.ID, err)
			}
			for _, r := range l.Resources {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO resources (id, lesson_id, title, type, url, storage_key, position)
					 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
					r.ID, l.ID, r.Title, r.Type, r.URL, r.StorageKey, r.Position); err != nil {
					return fmt.Errorf("insert resource %s: %w", r.ID, err)
				}
			}
		}
	}
	for _, qz := range c.AllQuizzes() {
		if err := insertQuiz(ctx, tx, qz); err != nil {
			return err
		}
	}
	return nil
}

func insertQuiz(ctx context.Context, tx *sql.Tx, qz *Quiz) error {
	var lesson sql.NullString
	if qz.LessonID != "" {
		lesson = sql.NullString{String: qz.LessonID, Valid: true}
	}
	var limit sql.NullInt64
	if qz.TimeLimit != nil {
		limit = sql.NullInt64{Int64: int64(*qz.TimeLimit), Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO quizzes (id, course_id, lesson_id, title, passing_score, time_limit_min,
		                      show_correct_answers, is_active, position)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		qz.ID, qz.CourseID, lesson, qz.Title, qz.PassingScore, limit,
		qz.ShowCorrectAnswers, qz.IsActive, qz.Position); err != nil {
		return fmt.Errorf("insert quiz %s: %w", qz.ID, err)
	}
	for _, qs := range qz.Questions {
		opts, err := json.Marshal(qs.Options)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO questions (id, quiz_id, prompt, answer_type, options_json, correct_answer, position)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			qs.ID, qz.ID, qs.Prompt, qs.AnswerType, string(opts), qs.CorrectAnswer, qs.Position); err != nil {
			return fmt.Errorf("insert question %s: %w", qs.ID, err)
		}
	}
	return nil
}
