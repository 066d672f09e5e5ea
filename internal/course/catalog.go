package course

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mind-engage/coursetrack/internal/apperr"
	"github.com/mind-engage/coursetrack/internal/db"
	"github.com/mind-engage/coursetrack/internal/eventlog"
	"github.com/mind-engage/coursetrack/internal/logger"
)

// WriteHook runs inside the transaction that rewrote a course tree.
type WriteHook func(ctx context.Context, tx *sql.Tx, courseID string) error

// Catalog owns writes to course trees.
type Catalog struct {
	db     *sql.DB
	loader *Loader
	hooks  []WriteHook
	log    *logger.Logger
}

func NewCatalog(d *sql.DB, loader *Loader, log *logger.Logger) *Catalog {
	if log == nil {
		log = logger.Nop()
	}
	return &Catalog{db: d, loader: loader, log: log.With("component", "course_catalog")}
}

// OnWrite registers a hook. Not safe to call once requests are served.
func (c *Catalog) OnWrite(h WriteHook) { c.hooks = append(c.hooks, h) }

// Import creates or fully replaces a course tree.
func (c *Catalog) Import(ctx context.Context, in Course) (*Course, error) {
	if err := Prepare(&in); err != nil {
		return nil, err
	}
	err := db.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		if err := checkForeignIDs(ctx, tx, &in); err != nil {
			return err
		}
		if err := replaceTree(ctx, tx, &in); err != nil {
			return apperr.Internal(err, "import course %s", in.ID)
		}
		for _, h := range c.hooks {
			if err := h(ctx, tx, in.ID); err != nil {
				return err
			}
		}
		return eventlog.Append(ctx, tx, eventlog.TypeCourseImported, in.ID, map[string]any{
			"course_id": in.ID,
			"modules":   len(in.Modules),
			"quizzes":   len(in.AllQuizzes()),
		})
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			c.log.Error("course import failed", "course_id", in.ID, "err", err)
		}
		return nil, wrapInternal(err, "import course %s", in.ID)
	}
	c.bust(ctx, in.ID)
	c.log.Info("course imported", "course_id", in.ID, "modules", len(in.Modules))
	return LoadCourse(ctx, c.db, in.ID)
}

// Delete removes a course and its tree. Courses with enrollments are kept.
func (c *Catalog) Delete(ctx context.Context, courseID string) error {
	err := db.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		ok, err := Exists(ctx, tx, courseID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("course %s not found", courseID)
		}
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM enrollments WHERE course_id=$1`, courseID).Scan(&n); err != nil {
			return apperr.Internal(err, "count enrollments of %s", courseID)
		}
		if n > 0 {
			return apperr.Conflict("course %s has %d enrollments", courseID, n)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM courses WHERE id=$1`, courseID); err != nil {
			return apperr.Internal(err, "delete course %s", courseID)
		}
		return eventlog.Append(ctx, tx, eventlog.TypeCourseDeleted, courseID, map[string]any{"course_id": courseID})
	})
	if err != nil {
		return wrapInternal(err, "delete course %s", courseID)
	}
	c.bust(ctx, courseID)
	c.log.Info("course deleted", "course_id", courseID)
	return nil
}

func (c *Catalog) bust(ctx context.Context, courseID string) {
	if c.loader != nil {
		c.loader.Invalidate(ctx, courseID)
	}
}

// wrapInternal keeps typed errors and wraps anything else.
func wrapInternal(err error, format string, args ...any) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return err
	}
	return apperr.Internal(err, format, args...)
}
