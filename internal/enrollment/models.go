package enrollment

import (
	"context"
	"database/sql"
	"time"

	"github.com/mind-engage/coursetrack/internal/course"
	"github.com/mind-engage/coursetrack/internal/db"
)

const (
	StatusActive    = "ACTIVE"
	StatusCompleted = "COMPLETED"
)

// Lesson progress states.
const (
	StateNotStarted = "NOT_STARTED"
	StateInProgress = "IN_PROGRESS"
	StateCompleted  = "COMPLETED"
)

type Enrollment struct {
	ID          string     `json:"id"`
	LearnerID   string     `json:"learner_id"`
	CourseID    string     `json:"course_id"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

type LessonProgress struct {
	EnrollmentID  string     `json:"enrollment_id"`
	LessonID      string     `json:"lesson_id"`
	State         string     `json:"state"`
	LastVisitedAt time.Time  `json:"last_visited_at"`
	CompletedAt   *time.Time `json:"completed_at"`
}

// View is an enrollment with the course tree as the caller may see it.
type View struct {
	Enrollment
	Course *course.Course `json:"course"`
}

// ProgressReport is the stored completion of an enrollment plus the
// breakdown it was derived from.
type ProgressReport struct {
	EnrollmentID string           `json:"enrollment_id"`
	CourseID     string           `json:"course_id"`
	Progress     int              `json:"progress"`
	Status       string           `json:"status"`
	CompletedAt  *time.Time       `json:"completed_at"`
	Satisfied    int              `json:"satisfied_requirements"`
	Required     int              `json:"total_requirements"`
	Modules      []ModuleProgress `json:"modules"`
	Quizzes      []QuizStatus     `json:"quizzes"` // course-level quizzes
}

type ModuleProgress struct {
	ModuleID         string         `json:"module_id"`
	Title            string         `json:"title"`
	RequiredLessons  int            `json:"required_lessons"`
	CompletedLessons int            `json:"completed_lessons"`
	Lessons          []LessonStatus `json:"lessons"`
}

type LessonStatus struct {
	LessonID      string       `json:"lesson_id"`
	Title         string       `json:"title"`
	IsRequired    bool         `json:"is_required"`
	State         string       `json:"state"`
	LastVisitedAt *time.Time   `json:"last_visited_at"`
	CompletedAt   *time.Time   `json:"completed_at"`
	Quizzes       []QuizStatus `json:"quizzes"`
}

type QuizStatus struct {
	QuizID       string `json:"quiz_id"`
	Title        string `json:"title"`
	IsActive     bool   `json:"is_active"`
	PassingScore int    `json:"passing_score"`
	Attempts     int    `json:"attempts"`
	BestScore    *int   `json:"best_score"`
	LatestScore  *int   `json:"latest_score"`
	Satisfied    bool   `json:"satisfied"`
}

// Recomputer derives an enrollment's completion from its lesson progress
// and quiz attempts.
type Recomputer interface {
	// Recompute stores the derived value inside tx. The caller holds the
	// enrollment lock.
	Recompute(ctx context.Context, tx *sql.Tx, enrollmentID string) (ProgressReport, error)
	// Evaluate derives the value without writing.
	Evaluate(ctx context.Context, q db.Querier, enrollmentID string) (ProgressReport, error)
}
