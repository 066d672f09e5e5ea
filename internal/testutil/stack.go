package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/mind-engage/coursetrack/internal/course"
	"github.com/mind-engage/coursetrack/internal/db/dbtest"
	"github.com/mind-engage/coursetrack/internal/enrollment"
	"github.com/mind-engage/coursetrack/internal/grading"
	"github.com/mind-engage/coursetrack/internal/progress"
	"github.com/mind-engage/coursetrack/internal/quiz"
)

// Stack is every service wired the way the gateway wires them.
type Stack struct {
	DB         *sql.DB
	Loader     *course.Loader
	Catalog    *course.Catalog
	Aggregator *progress.Aggregator
	Tracker    *enrollment.Tracker
	Engine     *quiz.Engine
}

type StackOption func(*stackConfig)

type stackConfig struct {
	policy progress.RetakePolicy
	quiz   quiz.Options
}

func WithRetakePolicy(p progress.RetakePolicy) StackOption {
	return func(c *stackConfig) { c.policy = p }
}

func WithQuizOptions(o quiz.Options) StackOption {
	return func(c *stackConfig) { c.quiz = o }
}

// NewStack opens a fresh database and imports SampleCourse and OtherCourse.
func NewStack(t testing.TB, opts ...StackOption) *Stack {
	t.Helper()
	cfg := stackConfig{policy: progress.RetakeBest}
	for _, o := range opts {
		o(&cfg)
	}
	d := dbtest.Open(t)
	loader := course.NewLoader(d, course.NewMemoryCache(0), nil, nil)
	cat := course.NewCatalog(d, loader, nil)
	agg := progress.NewAggregator(cfg.policy, nil)
	cat.OnWrite(agg.RecomputeCourse)
	s := &Stack{
		DB:         d,
		Loader:     loader,
		Catalog:    cat,
		Aggregator: agg,
		Tracker:    enrollment.NewTracker(d, loader, agg, nil),
		Engine:     quiz.NewEngine(d, grading.NewDefaultGrader(), agg, cfg.quiz, nil),
	}
	for _, c := range []course.Course{SampleCourse(), OtherCourse()} {
		if _, err := cat.Import(context.Background(), c); err != nil {
			t.Fatalf("import %s: %v", c.ID, err)
		}
	}
	return s
}

// Enroll enrolls the learner in the sample course.
func (s *Stack) Enroll(t testing.TB, learner string) enrollment.Enrollment {
	t.Helper()
	e, err := s.Tracker.Enroll(context.Background(), Admin, learner, CourseID)
	if err != nil {
		t.Fatalf("enroll %s: %v", learner, err)
	}
	return e
}

// Answers builds a submission for the sample quiz. Each flag says whether
// the answer to the choice, boolean and text question is correct.
func Answers(choice, boolean, text bool) []quiz.SubmittedAnswer {
	pick := func(ok bool, right, wrong string) quiz.AnswerValue {
		if ok {
			return quiz.AnswerValue(right)
		}
		return quiz.AnswerValue(wrong)
	}
	return []quiz.SubmittedAnswer{
		{QuestionID: QChoice, Value: pick(choice, "b", "a")},
		{QuestionID: QBool, Value: pick(boolean, "TRUE", "false")},
		{QuestionID: QText, Value: pick(text, " mitochondria ", "nucleus")},
	}
}
