package course

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/mind-engage/coursetrack/internal/apperr"
	"github.com/mind-engage/coursetrack/internal/auth"
	"github.com/mind-engage/coursetrack/internal/logger"
	"github.com/mind-engage/coursetrack/internal/storage"
)

// Loader serves read-only course trees. Trees are cached encoded; storage
// URLs are resolved per read and answer keys are stripped for learners.
type Loader struct {
	db    *sql.DB
	cache TreeCache
	blobs storage.BlobStore
	log   *logger.Logger
	group singleflight.Group

	// gens counts invalidations per course. A load only keeps what it
	// cached if no invalidation happened while it ran.
	mu   sync.Mutex
	gens map[string]uint64
}

// NewLoader accepts a nil cache (no caching) and nil blobs (storage keys
// are left unresolved).
func NewLoader(d *sql.DB, cache TreeCache, blobs storage.BlobStore, log *logger.Logger) *Loader {
	if cache == nil {
		cache = NoCache{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Loader{db: d, cache: cache, blobs: blobs, log: log.With("component", "course_loader"), gens: map[string]uint64{}}
}

func (l *Loader) Load(ctx context.Context, courseID string, actor auth.Actor) (*Course, error) {
	raw, err := l.raw(ctx, courseID)
	if err != nil {
		return nil, err
	}
	var c Course
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, apperr.Internal(err, "decode cached course %s", courseID)
	}
	c.normalize()
	l.resolveURLs(&c)
	if !actor.Privileged() {
		c.RedactAnswers()
	}
	return &c, nil
}

func (l *Loader) raw(ctx context.Context, courseID string) ([]byte, error) {
	if b, ok, err := l.cache.Get(ctx, courseID); err != nil {
		l.log.Warn("tree cache get failed", "course_id", courseID, "err", err)
	} else if ok {
		return b, nil
	}

	v, err, _ := l.group.Do(courseID, func() (any, error) {
		// shared by every waiter, so not bound to the first caller's deadline
		fctx := context.WithoutCancel(ctx)
		gen := l.generation(courseID)
		c, err := LoadCourse(fctx, l.db, courseID)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(c)
		if err != nil {
			return nil, apperr.Internal(err, "encode course %s", courseID)
		}
		if err := l.cache.Set(fctx, courseID, b); err != nil {
			l.log.Warn("tree cache set failed", "course_id", courseID, "err", err)
		}
		// a write committed while we were loading: drop what we stored
		if l.generation(courseID) != gen {
			if err := l.cache.Delete(fctx, courseID); err != nil {
				l.log.Warn("tree cache delete failed", "course_id", courseID, "err", err)
			}
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (l *Loader) generation(courseID string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gens[courseID]
}

// Invalidate drops the cached tree of a course. The generation is bumped
// before the delete so an in-flight load either sees the bump or stores
// before the delete runs.
func (l *Loader) Invalidate(ctx context.Context, courseID string) {
	l.mu.Lock()
	l.gens[courseID]++
	l.mu.Unlock()
	l.group.Forget(courseID)
	if err := l.cache.Delete(ctx, courseID); err != nil {
		l.log.Warn("tree cache delete failed", "course_id", courseID, "err", err)
	}
}

func (l *Loader) resolveURLs(c *Course) {
	if l.blobs == nil {
		return
	}
	for mi := range c.Modules {
		for li := range c.Modules[mi].Lessons {
			rs := c.Modules[mi].Lessons[li].Resources
			for i := range rs {
				if rs[i].URL != "" || rs[i].StorageKey == "" {
					continue
				}
				u, err := l.blobs.SignedURL(rs[i].StorageKey)
				if err != nil {
					l.log.Warn("resolve resource url", "resource_id", rs[i].ID, "err", err)
					continue
				}
				rs[i].URL = u
			}
		}
	}
}
