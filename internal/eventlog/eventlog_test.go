package eventlog_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mind-engage/coursetrack/internal/db"
	"github.com/mind-engage/coursetrack/internal/db/dbtest"
	"github.com/mind-engage/coursetrack/internal/eventlog"
)

func TestAppendAndList(t *testing.T) {
	ctx := context.Background()
	d := dbtest.Open(t)
	repo := eventlog.NewRepo(d)

	for i, key := range []string{"e1", "e2", "e3"} {
		if err := eventlog.Append(ctx, d, eventlog.TypeLessonVisited, key, map[string]int{"n": i}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := repo.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d events, want 3", len(all))
	}
	if all[0].Key != "e1" || all[2].Key != "e3" {
		t.Fatalf("unexpected order: %+v", all)
	}
	var payload map[string]int
	if err := json.Unmarshal(all[1].Data, &payload); err != nil || payload["n"] != 1 {
		t.Fatalf("payload=%s err=%v", all[1].Data, err)
	}

	tail, err := repo.List(ctx, all[0].Seq, 1)
	if err != nil {
		t.Fatalf("list tail: %v", err)
	}
	if len(tail) != 1 || tail[0].Key != "e2" {
		t.Fatalf("tail=%+v", tail)
	}
}

func TestAppendRolledBack(t *testing.T) {
	ctx := context.Background()
	d := dbtest.Open(t)
	boom := errors.New("boom")

	err := db.WithTx(ctx, d, func(tx *sql.Tx) error {
		if err := eventlog.Append(ctx, tx, eventlog.TypeCourseDeleted, "c1", nil); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	got, err := eventlog.NewRepo(d).List(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("rolled back event visible: %+v", got)
	}
}
