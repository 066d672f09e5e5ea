package course_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mind-engage/coursetrack/internal/apperr"
	"github.com/mind-engage/coursetrack/internal/course"
	"github.com/mind-engage/coursetrack/internal/db/dbtest"
	"github.com/mind-engage/coursetrack/internal/testutil"
)

type fakeBlobs struct{}

func (fakeBlobs) SignedURL(key string) (string, error) { return "https://blobs.test/" + key, nil }

type countingCache struct {
	course.TreeCache
	gets, sets, dels atomic.Int32
}

func (c *countingCache) Get(ctx context.Context, id string) ([]byte, bool, error) {
	c.gets.Add(1)
	return c.TreeCache.Get(ctx, id)
}

func (c *countingCache) Set(ctx context.Context, id string, b []byte) error {
	c.sets.Add(1)
	return c.TreeCache.Set(ctx, id, b)
}

func (c *countingCache) Delete(ctx context.Context, id string) error {
	c.dels.Add(1)
	return c.TreeCache.Delete(ctx, id)
}

func setup(t *testing.T) (*sql.DB, *course.Loader, *course.Catalog, *countingCache) {
	t.Helper()
	d := dbtest.Open(t)
	cache := &countingCache{TreeCache: course.NewMemoryCache(0)}
	loader := course.NewLoader(d, cache, fakeBlobs{}, nil)
	cat := course.NewCatalog(d, loader, nil)
	if _, err := cat.Import(context.Background(), testutil.SampleCourse()); err != nil {
		t.Fatalf("import: %v", err)
	}
	return d, loader, cat, cache
}

func TestLoadTree(t *testing.T) {
	_, loader, _, _ := setup(t)
	c, err := loader.Load(context.Background(), testutil.CourseID, testutil.Instructor)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Modules) != 2 || c.Modules[0].ID != "mod-1" || c.Modules[1].ID != "mod-2" {
		t.Fatalf("modules: %+v", c.Modules)
	}
	ls := c.Modules[0].Lessons
	if len(ls) != 2 || ls[0].ID != testutil.Lesson1 || ls[1].ID != testutil.Lesson2 {
		t.Fatalf("lessons: %+v", ls)
	}
	if got := ls[0].Resources[1].URL; got != "https://blobs.test/slides/cells.pdf" {
		t.Fatalf("storage url not resolved: %q", got)
	}
	if ls[0].Resources[0].URL != "https://example.org/cells" {
		t.Fatal("explicit url must be kept")
	}
	qz := ls[1].Quizzes[0]
	if qz.ID != testutil.QuizID || len(qz.Questions) != 3 || qz.Questions[0].CorrectAnswer != "b" {
		t.Fatalf("quiz: %+v", qz)
	}
	if qz.TimeLimit == nil || *qz.TimeLimit != 10 {
		t.Fatal("time limit lost")
	}
	if len(c.Quizzes) != 1 || c.Quizzes[0].IsActive {
		t.Fatalf("course quizzes: %+v", c.Quizzes)
	}

	// optional lesson has no children but must still render arrays
	b, _ := json.Marshal(c.Modules[1].Lessons[0])
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	if _, ok := m["resources"].([]any); !ok {
		t.Fatalf("resources not an array: %s", b)
	}
	if _, ok := m["quizzes"].([]any); !ok {
		t.Fatalf("quizzes not an array: %s", b)
	}
}

func TestLoadRedactsForLearner(t *testing.T) {
	_, loader, _, _ := setup(t)
	c, err := loader.Load(context.Background(), testutil.CourseID, testutil.Learner)
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range c.AllQuizzes() {
		for _, qs := range q.Questions {
			if qs.CorrectAnswer != "" {
				t.Fatalf("answer leaked for %s", qs.ID)
			}
		}
	}
	// the cached copy must be untouched by redaction
	c2, _ := loader.Load(context.Background(), testutil.CourseID, testutil.Admin)
	if c2.Modules[0].Lessons[1].Quizzes[0].Questions[2].CorrectAnswer != "Mitochondria" {
		t.Fatal("redaction leaked into cache")
	}
}

func TestLoadNotFound(t *testing.T) {
	_, loader, _, _ := setup(t)
	_, err := loader.Load(context.Background(), "nope", testutil.Learner)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestLoadCachesAndImportBusts(t *testing.T) {
	ctx := context.Background()
	_, loader, cat, cache := setup(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := loader.Load(ctx, testutil.CourseID, testutil.Learner); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if _, err := loader.Load(ctx, testutil.CourseID, testutil.Learner); err != nil {
		t.Fatal(err)
	}
	sets := cache.sets.Load()
	if sets < 1 || sets > 8 {
		t.Fatalf("unexpected set count %d", sets)
	}

	updated := testutil.SampleCourse()
	updated.Title = "Cell Biology II"
	if _, err := cat.Import(ctx, updated); err != nil {
		t.Fatal(err)
	}
	if cache.dels.Load() < 2 { // initial import and this one
		t.Fatal("import did not bust the cache")
	}
	c, err := loader.Load(ctx, testutil.CourseID, testutil.Learner)
	if err != nil {
		t.Fatal(err)
	}
	if c.Title != "Cell Biology II" {
		t.Fatalf("stale tree served: %q", c.Title)
	}
}

// racingCache runs during once, right before its first store.
type racingCache struct {
	*course.MemoryCache
	once   sync.Once
	during func()
}

func (c *racingCache) Set(ctx context.Context, id string, b []byte) error {
	c.once.Do(c.during)
	return c.MemoryCache.Set(ctx, id, b)
}

func TestImportDuringLoadIsNotOverwritten(t *testing.T) {
	ctx := context.Background()
	d := dbtest.Open(t)
	cache := &racingCache{MemoryCache: course.NewMemoryCache(0)}
	loader := course.NewLoader(d, cache, nil, nil)
	cat := course.NewCatalog(d, loader, nil)
	if _, err := cat.Import(ctx, testutil.SampleCourse()); err != nil {
		t.Fatal(err)
	}
	cache.during = func() {
		updated := testutil.SampleCourse()
		updated.Title = "Cell Biology II"
		if _, err := cat.Import(ctx, updated); err != nil {
			t.Errorf("import: %v", err)
		}
	}

	if _, err := loader.Load(ctx, testutil.CourseID, testutil.Admin); err != nil {
		t.Fatal(err)
	}
	c, err := loader.Load(ctx, testutil.CourseID, testutil.Admin)
	if err != nil {
		t.Fatal(err)
	}
	if c.Title != "Cell Biology II" {
		t.Fatalf("tree cached by the racing load survived the import: %q", c.Title)
	}
}

func TestImportHookRollsBack(t *testing.T) {
	ctx := context.Background()
	d, _, cat, _ := setup(t)
	boom := errors.New("boom")
	var calls int
	cat.OnWrite(func(ctx context.Context, tx *sql.Tx, courseID string) error {
		calls++
		return boom
	})
	updated := testutil.SampleCourse()
	updated.Title = "Should not stick"
	if _, err := cat.Import(ctx, updated); !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("want internal error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("hook called %d times", calls)
	}
	c, err := course.LoadCourse(ctx, d, testutil.CourseID)
	if err != nil {
		t.Fatal(err)
	}
	if c.Title != "Cell Biology" {
		t.Fatal("failed import was committed")
	}
}

func TestImportRejectsForeignIDs(t *testing.T) {
	ctx := context.Background()
	_, _, cat, _ := setup(t)
	other := testutil.OtherCourse()
	other.Modules[0].Lessons[0].ID = testutil.Lesson1
	if _, err := cat.Import(ctx, other); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("want conflict, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	d, loader, cat, _ := setup(t)

	if err := cat.Delete(ctx, "missing"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	if _, err := d.Exec(`INSERT INTO enrollments (id, learner_id, course_id, status, progress, created_at, updated_at)
		VALUES ('e1','learner-1',$1,'ACTIVE',0,0,0)`, testutil.CourseID); err != nil {
		t.Fatal(err)
	}
	if err := cat.Delete(ctx, testutil.CourseID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("want conflict, got %v", err)
	}
	if _, err := d.Exec(`DELETE FROM enrollments`); err != nil {
		t.Fatal(err)
	}
	if err := cat.Delete(ctx, testutil.CourseID); err != nil {
		t.Fatal(err)
	}
	if _, err := loader.Load(ctx, testutil.CourseID, testutil.Admin); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("deleted course still served: %v", err)
	}
	var n int
	_ = d.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&n)
	if n != 0 {
		t.Fatalf("%d questions survived delete", n)
	}
}

func TestQuizByIDAndLessonCourse(t *testing.T) {
	ctx := context.Background()
	d, _, _, _ := setup(t)
	q, err := course.QuizByID(ctx, d, testutil.QuizID)
	if err != nil {
		t.Fatal(err)
	}
	if q.LessonID != testutil.Lesson2 || q.CourseID != testutil.CourseID || len(q.Questions) != 3 {
		t.Fatalf("quiz: %+v", q)
	}
	if q.Questions[0].Options[1].Text != "Ribosome" {
		t.Fatalf("options: %+v", q.Questions[0].Options)
	}
	if _, err := course.QuizByID(ctx, d, "nope"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	cid, err := course.LessonCourse(ctx, d, testutil.OptionalLesson)
	if err != nil || cid != testutil.CourseID {
		t.Fatalf("cid=%q err=%v", cid, err)
	}
}
