package enrollment

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/coursetrack/internal/apperr"
	"github.com/mind-engage/coursetrack/internal/auth"
	"github.com/mind-engage/coursetrack/internal/course"
	"github.com/mind-engage/coursetrack/internal/db"
	"github.com/mind-engage/coursetrack/internal/eventlog"
	"github.com/mind-engage/coursetrack/internal/logger"
)

// Tracker owns enrollments and per-lesson progress.
type Tracker struct {
	db     *sql.DB
	loader *course.Loader
	agg    Recomputer
	log    *logger.Logger
	now    func() time.Time
}

func NewTracker(d *sql.DB, loader *course.Loader, agg Recomputer, log *logger.Logger) *Tracker {
	if log == nil {
		log = logger.Nop()
	}
	return &Tracker{db: d, loader: loader, agg: agg, log: log.With("component", "enrollment_tracker"), now: time.Now}
}

// Enroll creates the enrollment of learnerID in courseID. If one exists it
// is returned together with a Conflict error.
func (t *Tracker) Enroll(ctx context.Context, actor auth.Actor, learnerID, courseID string) (Enrollment, error) {
	if learnerID == "" {
		learnerID = actor.ID
	}
	if !actor.CanAccessLearner(learnerID) {
		return Enrollment{}, apperr.Forbidden("cannot enroll another learner")
	}

	var (
		e       Enrollment
		created bool
	)
	err := db.WithTx(ctx, t.db, func(tx *sql.Tx) error {
		ok, err := course.Exists(ctx, tx, courseID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("course %s not found", courseID)
		}
		now := t.now().UTC()
		created, err = insert(ctx, tx, Enrollment{
			ID:        uuid.NewString(),
			LearnerID: learnerID,
			CourseID:  courseID,
			Status:    StatusActive,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		if e, err = getByLearnerCourse(ctx, tx, learnerID, courseID); err != nil {
			return err
		}
		if !created {
			return nil
		}
		return eventlog.Append(ctx, tx, eventlog.TypeEnrollmentCreated, e.ID, map[string]string{
			"enrollment_id": e.ID, "learner_id": learnerID, "course_id": courseID,
		})
	})
	if err != nil {
		return Enrollment{}, err
	}
	if !created {
		return e, apperr.Conflict("learner %s is already enrolled in course %s", learnerID, courseID)
	}
	t.log.Info("enrolled", "enrollment_id", e.ID, "learner_id", learnerID, "course_id", courseID)
	return e, nil
}

// Get returns an enrollment the actor may see.
func (t *Tracker) Get(ctx context.Context, actor auth.Actor, enrollmentID string) (Enrollment, error) {
	e, err := Get(ctx, t.db, enrollmentID)
	if err != nil {
		return Enrollment{}, err
	}
	if !actor.CanAccessLearner(e.LearnerID) {
		return Enrollment{}, apperr.Forbidden("enrollment %s belongs to another learner", enrollmentID)
	}
	return e, nil
}

// GetProgress returns the stored completion with its breakdown.
func (t *Tracker) GetProgress(ctx context.Context, actor auth.Actor, enrollmentID string) (ProgressReport, error) {
	e, err := t.Get(ctx, actor, enrollmentID)
	if err != nil {
		return ProgressReport{}, err
	}
	rep, err := t.agg.Evaluate(ctx, t.db, enrollmentID)
	if err != nil {
		return ProgressReport{}, err
	}
	if rep.Progress != e.Progress {
		t.log.Warn("stored progress differs from derived", "enrollment_id", e.ID, "stored", e.Progress, "derived", rep.Progress)
	}
	rep.Progress, rep.Status, rep.CompletedAt = e.Progress, e.Status, e.CompletedAt
	return rep, nil
}

const listConcurrency = 4

// List returns enrollments with their course trees. Learners only see
// their own; privileged callers may pass any learner id or none for all.
func (t *Tracker) List(ctx context.Context, actor auth.Actor, learnerID string) ([]View, error) {
	if !actor.Privileged() {
		if learnerID != "" && learnerID != actor.ID {
			return nil, apperr.Forbidden("cannot list another learner's enrollments")
		}
		learnerID = actor.ID
	}
	es, err := list(ctx, t.db, learnerID)
	if err != nil {
		return nil, err
	}

	views := make([]View, len(es))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for i := range es {
		views[i].Enrollment = es[i]
		g.Go(func() error {
			c, err := t.loader.Load(gctx, es[i].CourseID, actor)
			if err != nil {
				return err
			}
			views[i].Course = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

// MarkVisited records that the learner opened a lesson. Visiting a
// completed lesson changes nothing and emits no event.
func (t *Tracker) MarkVisited(ctx context.Context, actor auth.Actor, enrollmentID, lessonID string) (LessonProgress, error) {
	var lp LessonProgress
	err := db.WithTx(ctx, t.db, func(tx *sql.Tx) error {
		if _, err := t.lockOwned(ctx, tx, actor, enrollmentID, lessonID); err != nil {
			return err
		}
		cur, ok, err := findLessonProgress(ctx, tx, enrollmentID, lessonID)
		if err != nil {
			return err
		}
		if ok && cur.State == StateCompleted {
			lp = cur
			return nil
		}
		if err := upsertVisit(ctx, tx, enrollmentID, lessonID, t.now()); err != nil {
			return err
		}
		if lp, err = getLessonProgress(ctx, tx, enrollmentID, lessonID); err != nil {
			return err
		}
		return eventlog.Append(ctx, tx, eventlog.TypeLessonVisited, enrollmentID, map[string]string{
			"enrollment_id": enrollmentID, "lesson_id": lessonID, "state": lp.State,
		})
	})
	if err != nil {
		return LessonProgress{}, err
	}
	return lp, nil
}

// MarkCompleted completes a lesson and recomputes the enrollment's
// progress in the same transaction. Repeats are no-ops.
func (t *Tracker) MarkCompleted(ctx context.Context, actor auth.Actor, enrollmentID, lessonID string) (LessonProgress, ProgressReport, error) {
	var (
		lp  LessonProgress
		rep ProgressReport
	)
	err := db.WithTx(ctx, t.db, func(tx *sql.Tx) error {
		if _, err := t.lockOwned(ctx, tx, actor, enrollmentID, lessonID); err != nil {
			return err
		}
		if err := upsertComplete(ctx, tx, enrollmentID, lessonID, t.now()); err != nil {
			return err
		}
		var err error
		if lp, err = getLessonProgress(ctx, tx, enrollmentID, lessonID); err != nil {
			return err
		}
		if err := eventlog.Append(ctx, tx, eventlog.TypeLessonCompleted, enrollmentID, map[string]string{
			"enrollment_id": enrollmentID, "lesson_id": lessonID,
		}); err != nil {
			return err
		}
		rep, err = t.agg.Recompute(ctx, tx, enrollmentID)
		return err
	})
	if err != nil {
		return LessonProgress{}, ProgressReport{}, err
	}
	t.log.Debug("lesson completed", "enrollment_id", enrollmentID, "lesson_id", lessonID, "progress", rep.Progress)
	return lp, rep, nil
}

// lockOwned locks the enrollment and checks the actor owns it and the
// lesson is part of its course.
func (t *Tracker) lockOwned(ctx context.Context, tx *sql.Tx, actor auth.Actor, enrollmentID, lessonID string) (Enrollment, error) {
	if err := Lock(ctx, tx, enrollmentID); err != nil {
		return Enrollment{}, err
	}
	e, err := Get(ctx, tx, enrollmentID)
	if err != nil {
		return Enrollment{}, err
	}
	if !actor.CanAccessLearner(e.LearnerID) {
		return Enrollment{}, apperr.Forbidden("enrollment %s belongs to another learner", enrollmentID)
	}
	courseID, err := course.LessonCourse(ctx, tx, lessonID)
	if err != nil {
		return Enrollment{}, err
	}
	if courseID != e.CourseID {
		return Enrollment{}, apperr.NotFound("lesson %s is not part of course %s", lessonID, e.CourseID)
	}
	return e, nil
}
