// Package progress derives an enrollment's completion percentage from its
// lesson progress and quiz attempts.
package progress

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mind-engage/coursetrack/internal/course"
	"github.com/mind-engage/coursetrack/internal/db"
	"github.com/mind-engage/coursetrack/internal/enrollment"
	"github.com/mind-engage/coursetrack/internal/eventlog"
	"github.com/mind-engage/coursetrack/internal/logger"
	"github.com/mind-engage/coursetrack/internal/quiz"
)

// RetakePolicy decides which attempt satisfies a quiz when a learner has
// taken it more than once.
type RetakePolicy string

const (
	RetakeBest   RetakePolicy = "best"
	RetakeLatest RetakePolicy = "latest"
)

func ParseRetakePolicy(s string) (RetakePolicy, error) {
	switch RetakePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RetakeBest:
		return RetakeBest, nil
	case RetakeLatest:
		return RetakeLatest, nil
	}
	return "", fmt.Errorf("unknown retake policy %q", s)
}

type Aggregator struct {
	policy RetakePolicy
	log    *logger.Logger
	now    func() time.Time
}

func NewAggregator(policy RetakePolicy, log *logger.Logger) *Aggregator {
	if policy == "" {
		policy = RetakeBest
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{policy: policy, log: log.With("component", "progress_aggregator"), now: time.Now}
}

var _ enrollment.Recomputer = (*Aggregator)(nil)

// Evaluate derives the enrollment's progress without writing. The tree is
// read through q, never from the cache.
func (a *Aggregator) Evaluate(ctx context.Context, q db.Querier, enrollmentID string) (enrollment.ProgressReport, error) {
	rep, _, err := a.evaluate(ctx, q, enrollmentID)
	return rep, err
}

func (a *Aggregator) evaluate(ctx context.Context, q db.Querier, enrollmentID string) (enrollment.ProgressReport, enrollment.Enrollment, error) {
	e, err := enrollment.Get(ctx, q, enrollmentID)
	if err != nil {
		return enrollment.ProgressReport{}, e, err
	}
	tree, err := course.LoadCourse(ctx, q, e.CourseID)
	if err != nil {
		return enrollment.ProgressReport{}, e, err
	}
	states, err := enrollment.LessonStates(ctx, q, enrollmentID)
	if err != nil {
		return enrollment.ProgressReport{}, e, err
	}
	attempts, err := quiz.Summaries(ctx, q, enrollmentID)
	if err != nil {
		return enrollment.ProgressReport{}, e, err
	}
	rep := Compute(tree, states, attempts, a.policy)
	rep.EnrollmentID = e.ID
	if rep.Status == enrollment.StatusCompleted {
		rep.CompletedAt = e.CompletedAt
	}
	return rep, e, nil
}

// Recompute derives and stores the enrollment's progress inside tx. It
// writes only when the stored value changes, so repeating it is a no-op.
func (a *Aggregator) Recompute(ctx context.Context, tx *sql.Tx, enrollmentID string) (enrollment.ProgressReport, error) {
	if err := enrollment.Lock(ctx, tx, enrollmentID); err != nil {
		return enrollment.ProgressReport{}, err
	}
	rep, e, err := a.evaluate(ctx, tx, enrollmentID)
	if err != nil {
		return enrollment.ProgressReport{}, err
	}

	var completedAt *time.Time
	if rep.Status == enrollment.StatusCompleted {
		completedAt = e.CompletedAt
		if completedAt == nil {
			t := a.now().UTC().Truncate(time.Millisecond)
			completedAt = &t
		}
	}
	rep.CompletedAt = completedAt

	changed := e.Progress != rep.Progress || e.Status != rep.Status || (e.CompletedAt == nil) != (completedAt == nil)
	if !changed {
		return rep, nil
	}
	if err := enrollment.UpdateProgress(ctx, tx, enrollmentID, rep.Progress, rep.Status, completedAt); err != nil {
		return enrollment.ProgressReport{}, err
	}
	if err := eventlog.Append(ctx, tx, eventlog.TypeProgressRecomputed, enrollmentID, map[string]any{
		"enrollment_id": enrollmentID, "from": e.Progress, "to": rep.Progress, "status": rep.Status,
	}); err != nil {
		return enrollment.ProgressReport{}, err
	}
	a.log.Debug("progress changed", "enrollment_id", enrollmentID, "from", e.Progress, "to", rep.Progress, "status", rep.Status)
	return rep, nil
}

// RecomputeCourse recomputes every enrollment of a course. It is run
// after a course tree is rewritten.
func (a *Aggregator) RecomputeCourse(ctx context.Context, tx *sql.Tx, courseID string) error {
	ids, err := enrollment.IDsByCourse(ctx, tx, courseID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := a.Recompute(ctx, tx, id); err != nil {
			return err
		}
	}
	if len(ids) > 0 {
		a.log.Info("course progress recomputed", "course_id", courseID, "enrollments", len(ids))
	}
	return nil
}

// Compute is the pure derivation. Requirements are required lessons plus
// active quizzes; a course without requirements is at 0.
func Compute(tree *course.Course, states map[string]enrollment.LessonProgress, attempts map[string][]quiz.Summary, policy RetakePolicy) enrollment.ProgressReport {
	rep := enrollment.ProgressReport{
		CourseID: tree.ID,
		Modules:  make([]enrollment.ModuleProgress, 0, len(tree.Modules)),
		Quizzes:  make([]enrollment.QuizStatus, 0, len(tree.Quizzes)),
	}
	tally := func(qs enrollment.QuizStatus) {
		if !qs.IsActive {
			return
		}
		rep.Required++
		if qs.Satisfied {
			rep.Satisfied++
		}
	}

	for _, m := range tree.Modules {
		mp := enrollment.ModuleProgress{ModuleID: m.ID, Title: m.Title, Lessons: make([]enrollment.LessonStatus, 0, len(m.Lessons))}
		for _, l := range m.Lessons {
			ls := enrollment.LessonStatus{
				LessonID:   l.ID,
				Title:      l.Title,
				IsRequired: l.IsRequired,
				State:      enrollment.StateNotStarted,
				Quizzes:    make([]enrollment.QuizStatus, 0, len(l.Quizzes)),
			}
			if st, ok := states[l.ID]; ok {
				ls.State = st.State
				visited := st.LastVisitedAt
				ls.LastVisitedAt = &visited
				ls.CompletedAt = st.CompletedAt
			}
			if l.IsRequired {
				mp.RequiredLessons++
				rep.Required++
				if ls.State == enrollment.StateCompleted {
					mp.CompletedLessons++
					rep.Satisfied++
				}
			}
			for _, qz := range l.Quizzes {
				qs := quizStatus(qz, attempts[qz.ID], policy)
				tally(qs)
				ls.Quizzes = append(ls.Quizzes, qs)
			}
			mp.Lessons = append(mp.Lessons, ls)
		}
		rep.Modules = append(rep.Modules, mp)
	}
	for _, qz := range tree.Quizzes {
		qs := quizStatus(qz, attempts[qz.ID], policy)
		tally(qs)
		rep.Quizzes = append(rep.Quizzes, qs)
	}

	rep.Progress = Percent(rep.Satisfied, rep.Required)
	rep.Status = enrollment.StatusActive
	if rep.Progress == 100 {
		rep.Status = enrollment.StatusCompleted
	}
	return rep
}

// quizStatus applies the retake policy to a quiz's attempts, oldest first.
// Scores are compared against the quiz's current passing score.
func quizStatus(qz course.Quiz, attempts []quiz.Summary, policy RetakePolicy) enrollment.QuizStatus {
	qs := enrollment.QuizStatus{
		QuizID:       qz.ID,
		Title:        qz.Title,
		IsActive:     qz.IsActive,
		PassingScore: qz.PassingScore,
		Attempts:     len(attempts),
	}
	if len(attempts) == 0 {
		return qs
	}
	best := attempts[0].Score
	for _, at := range attempts[1:] {
		if at.Score > best {
			best = at.Score
		}
	}
	latest := attempts[len(attempts)-1].Score
	qs.BestScore, qs.LatestScore = &best, &latest

	counted := best
	if policy == RetakeLatest {
		counted = latest
	}
	qs.Satisfied = counted >= qz.PassingScore
	return qs
}

// Percent rounds satisfied/total to a whole percentage, half away from zero.
func Percent(satisfied, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(satisfied) / float64(total)))
}
