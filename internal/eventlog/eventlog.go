// Package eventlog is an append-only outbox of domain events. Rows are
// written inside the same transaction as the change they describe, so a
// reader never sees an event for a rolled back write.
//
// Readers page by seq. Sequence numbers are handed out in commit order
// (SQLite has one writer; on Postgres a trigger takes seq under a
// transaction lock), so a cursor never passes an event that commits later.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mind-engage/coursetrack/internal/db"
)

const (
	TypeEnrollmentCreated  = "EnrollmentCreated"
	TypeLessonVisited      = "LessonVisited"
	TypeLessonCompleted    = "LessonCompleted"
	TypeAttemptSubmitted   = "AttemptSubmitted"
	TypeProgressRecomputed = "ProgressRecomputed"
	TypeCourseImported     = "CourseImported"
	TypeCourseDeleted      = "CourseDeleted"
)

type Event struct {
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// Append writes one event using q, normally the caller's transaction.
func Append(ctx context.Context, q db.Querier, typ, key string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("eventlog: encode %s: %w", typ, err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4)`,
		typ, key, string(b), db.Millis(time.Now()))
	if err != nil {
		return fmt.Errorf("eventlog: append %s: %w", typ, err)
	}
	return nil
}

type Repo struct{ db *sql.DB }

func NewRepo(d *sql.DB) *Repo { return &Repo{db: d} }

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// List returns events with seq greater than after, oldest first.
func (r *Repo) List(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, typ, key, data, created_at FROM event_log
		 WHERE seq > $1 ORDER BY seq LIMIT $2`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("eventlog: list: %w", err)
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var (
			e    Event
			data string
			ts   int64
		)
		if err := rows.Scan(&e.Seq, &e.Type, &e.Key, &data, &ts); err != nil {
			return nil, fmt.Errorf("eventlog: scan: %w", err)
		}
		e.Data = json.RawMessage(data)
		e.CreatedAt = db.FromMillis(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}
