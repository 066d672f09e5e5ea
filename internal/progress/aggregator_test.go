package progress_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/mind-engage/coursetrack/internal/course"
	"github.com/mind-engage/coursetrack/internal/db"
	"github.com/mind-engage/coursetrack/internal/enrollment"
	"github.com/mind-engage/coursetrack/internal/progress"
	"github.com/mind-engage/coursetrack/internal/quiz"
	"github.com/mind-engage/coursetrack/internal/testutil"
)

func sampleTree(t *testing.T) *course.Course {
	t.Helper()
	c := testutil.SampleCourse()
	if err := course.Prepare(&c); err != nil {
		t.Fatal(err)
	}
	return &c
}

func done(lesson string) enrollment.LessonProgress {
	now := time.Now()
	return enrollment.LessonProgress{LessonID: lesson, State: enrollment.StateCompleted, LastVisitedAt: now, CompletedAt: &now}
}

func attempt(score int) quiz.Summary {
	return quiz.Summary{QuizID: testutil.QuizID, Score: score}
}

func TestComputeTwoLessonsOneQuiz(t *testing.T) {
	tree := sampleTree(t)
	states := map[string]enrollment.LessonProgress{}
	attempts := map[string][]quiz.Summary{}

	rep := progress.Compute(tree, states, attempts, progress.RetakeBest)
	if rep.Required != 3 || rep.Progress != 0 {
		t.Fatalf("initial %+v", rep)
	}

	states[testutil.Lesson1] = done(testutil.Lesson1)
	if rep = progress.Compute(tree, states, attempts, progress.RetakeBest); rep.Progress != 33 {
		t.Fatalf("one lesson: %d", rep.Progress)
	}
	states[testutil.Lesson2] = done(testutil.Lesson2)
	if rep = progress.Compute(tree, states, attempts, progress.RetakeBest); rep.Progress != 67 {
		t.Fatalf("two lessons: %d", rep.Progress)
	}
	// optional lesson and inactive quiz do not count
	states[testutil.OptionalLesson] = done(testutil.OptionalLesson)
	if rep = progress.Compute(tree, states, attempts, progress.RetakeBest); rep.Progress != 67 || rep.Status != enrollment.StatusActive {
		t.Fatalf("optional lesson counted: %+v", rep)
	}
	attempts[testutil.QuizID] = []quiz.Summary{attempt(100)}
	rep = progress.Compute(tree, states, attempts, progress.RetakeBest)
	if rep.Progress != 100 || rep.Status != enrollment.StatusCompleted {
		t.Fatalf("all done: %+v", rep)
	}
}

func TestComputeNoRequirements(t *testing.T) {
	c := course.Course{ID: "empty", Title: "Empty", Modules: []course.Module{{Title: "m", Lessons: []course.Lesson{{Title: "optional"}}}}}
	if err := course.Prepare(&c); err != nil {
		t.Fatal(err)
	}
	rep := progress.Compute(&c, nil, nil, progress.RetakeBest)
	if rep.Progress != 0 || rep.Required != 0 || rep.Status != enrollment.StatusActive {
		t.Fatalf("empty course %+v", rep)
	}
}

func TestRetakePolicies(t *testing.T) {
	tree := sampleTree(t)
	attempts := map[string][]quiz.Summary{testutil.QuizID: {attempt(100), attempt(33)}}

	best := progress.Compute(tree, nil, attempts, progress.RetakeBest)
	qs := best.Modules[0].Lessons[1].Quizzes[0]
	if !qs.Satisfied || *qs.BestScore != 100 || *qs.LatestScore != 33 || qs.Attempts != 2 {
		t.Fatalf("best policy %+v", qs)
	}
	latest := progress.Compute(tree, nil, attempts, progress.RetakeLatest)
	if latest.Modules[0].Lessons[1].Quizzes[0].Satisfied {
		t.Fatal("latest policy should use the failing retake")
	}
	if best.Progress != 33 || latest.Progress != 0 {
		t.Fatalf("best=%d latest=%d", best.Progress, latest.Progress)
	}

	// a raised pass mark applies to earlier attempts
	tree.Modules[0].Lessons[1].Quizzes[0].PassingScore = 101
	if progress.Compute(tree, nil, attempts, progress.RetakeBest).Progress != 0 {
		t.Fatal("current passing score not applied")
	}
}

func TestParseRetakePolicy(t *testing.T) {
	for in, want := range map[string]progress.RetakePolicy{"": progress.RetakeBest, "BEST": progress.RetakeBest, " latest": progress.RetakeLatest} {
		got, err := progress.ParseRetakePolicy(in)
		if err != nil || got != want {
			t.Errorf("%q: got %q err %v", in, got, err)
		}
	}
	if _, err := progress.ParseRetakePolicy("first"); err == nil {
		t.Fatal("expected error")
	}
}

func TestPercent(t *testing.T) {
	for _, tc := range []struct{ s, n, want int }{{1, 3, 33}, {2, 3, 67}, {0, 0, 0}, {5, 5, 100}, {1, 6, 17}} {
		if got := progress.Percent(tc.s, tc.n); got != tc.want {
			t.Errorf("Percent(%d,%d)=%d want %d", tc.s, tc.n, got, tc.want)
		}
	}
}

func recomputeEvents(t *testing.T, d *sql.DB) int {
	t.Helper()
	var n int
	if err := d.QueryRow(`SELECT COUNT(*) FROM event_log WHERE typ='ProgressRecomputed'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestRecomputeIdempotent(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStack(t)
	e := s.Enroll(t, testutil.Learner.ID)
	if _, _, err := s.Tracker.MarkCompleted(ctx, testutil.Learner, e.ID, testutil.Lesson1); err != nil {
		t.Fatal(err)
	}
	before, err := enrollment.Get(ctx, s.DB, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	events := recomputeEvents(t, s.DB)

	for i := 0; i < 3; i++ {
		err := db.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
			rep, err := s.Aggregator.Recompute(ctx, tx, e.ID)
			if err == nil && rep.Progress != 33 {
				t.Errorf("recompute %d: progress %d", i, rep.Progress)
			}
			return err
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	after, err := enrollment.Get(ctx, s.DB, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.Progress != before.Progress || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("recompute rewrote an unchanged value: %+v vs %+v", before, after)
	}
	if got := recomputeEvents(t, s.DB); got != events {
		t.Fatalf("recompute emitted %d extra events", got-events)
	}
}

func TestCompletionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStack(t)
	e := s.Enroll(t, testutil.Learner.ID)

	for _, l := range []string{testutil.Lesson1, testutil.Lesson2} {
		if _, _, err := s.Tracker.MarkCompleted(ctx, testutil.Learner, e.ID, l); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Engine.Submit(ctx, testutil.Learner, quiz.Submission{
		QuizID: testutil.QuizID, EnrollmentID: e.ID, Answers: testutil.Answers(true, true, true),
	}); err != nil {
		t.Fatal(err)
	}
	got, _ := enrollment.Get(ctx, s.DB, e.ID)
	if got.Progress != 100 || got.Status != enrollment.StatusCompleted || got.CompletedAt == nil {
		t.Fatalf("not completed: %+v", got)
	}

	// a failing retake under the best policy keeps completion
	if _, err := s.Engine.Submit(ctx, testutil.Learner, quiz.Submission{
		QuizID: testutil.QuizID, EnrollmentID: e.ID, Answers: testutil.Answers(false, false, false),
	}); err != nil {
		t.Fatal(err)
	}
	kept, _ := enrollment.Get(ctx, s.DB, e.ID)
	if kept.Status != enrollment.StatusCompleted || !kept.CompletedAt.Equal(*got.CompletedAt) {
		t.Fatalf("completion changed: %+v", kept)
	}

	// a new required lesson reopens the enrollment
	grown := testutil.SampleCourse()
	grown.Modules[1].Lessons = append(grown.Modules[1].Lessons, course.Lesson{ID: "lesson-4", Title: "New material", IsRequired: true})
	if _, err := s.Catalog.Import(ctx, grown); err != nil {
		t.Fatal(err)
	}
	reopened, _ := enrollment.Get(ctx, s.DB, e.ID)
	if reopened.Progress != 75 || reopened.Status != enrollment.StatusActive || reopened.CompletedAt != nil {
		t.Fatalf("not reopened: %+v", reopened)
	}
}

func TestLatestPolicyReopens(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStack(t, testutil.WithRetakePolicy(progress.RetakeLatest))
	e := s.Enroll(t, testutil.Learner.ID)

	sub := quiz.Submission{QuizID: testutil.QuizID, EnrollmentID: e.ID, Answers: testutil.Answers(true, true, true)}
	if _, err := s.Engine.Submit(ctx, testutil.Learner, sub); err != nil {
		t.Fatal(err)
	}
	sub.Answers = testutil.Answers(false, false, false)
	if _, err := s.Engine.Submit(ctx, testutil.Learner, sub); err != nil {
		t.Fatal(err)
	}
	got, _ := enrollment.Get(ctx, s.DB, e.ID)
	if got.Progress != 0 {
		t.Fatalf("latest policy progress=%d want 0", got.Progress)
	}
}
