package grading

import (
	"context"
	"errors"
	"testing"
)

func TestDefaultGrader(t *testing.T) {
	g := NewDefaultGrader()
	ctx := context.Background()
	cases := []struct {
		name string
		q    Q
		resp string
		want bool
	}{
		{"single exact", Q{TypeSingleChoice, "opt-b"}, "opt-b", true},
		{"single case sensitive", Q{TypeSingleChoice, "opt-b"}, "OPT-B", false},
		{"single no trimming", Q{TypeSingleChoice, "opt-b"}, " opt-b", false},
		{"single empty", Q{TypeSingleChoice, "opt-b"}, "", false},
		{"bool true", Q{TypeBoolean, "true"}, "true", true},
		{"bool normalized", Q{TypeBoolean, "false"}, "  FALSE ", true},
		{"bool mismatch", Q{TypeBoolean, "true"}, "false", false},
		{"bool garbage", Q{TypeBoolean, "true"}, "yes", false},
		{"text case folded", Q{TypeFreeText, "Photosynthesis"}, "  photosynthesis\n", true},
		{"text exact only", Q{TypeFreeText, "Photosynthesis"}, "photosynthesys", false},
		{"text empty", Q{TypeFreeText, "x"}, "   ", false},
	}
	for _, tc := range cases {
		res, err := g.Grade(ctx, tc.q, tc.resp)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if res.Correct != tc.want {
			t.Errorf("%s: correct=%v want %v", tc.name, res.Correct, tc.want)
		}
	}
}

func TestUnknownType(t *testing.T) {
	g := NewDefaultGrader()
	if g.Supports("essay") {
		t.Fatal("essay should not be supported")
	}
	_, err := g.Grade(context.Background(), Q{Type: "essay"}, "text")
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("want ErrUnknownType, got %v", err)
	}
}

func TestBadBooleanKey(t *testing.T) {
	_, err := NewDefaultGrader().Grade(context.Background(), Q{Type: TypeBoolean, AnswerKey: "maybe"}, "true")
	if err == nil {
		t.Fatal("expected error for malformed key")
	}
}

type alwaysRight struct{}

func (alwaysRight) Grade(context.Context, Q, string) (Result, error) { return Result{Correct: true}, nil }

func TestWithStrategy(t *testing.T) {
	g := NewDefaultGrader(WithStrategy("essay", alwaysRight{}))
	if !g.Supports("essay") {
		t.Fatal("custom strategy not registered")
	}
	res, err := g.Grade(context.Background(), Q{Type: "essay"}, "anything")
	if err != nil || !res.Correct {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestNormalizeType(t *testing.T) {
	for in, want := range map[string]string{
		"Single-Choice": TypeSingleChoice,
		"mcq_single":    TypeSingleChoice,
		"true_false":    TypeBoolean,
		"short_word":    TypeFreeText,
		"Essay":         "essay",
	} {
		if got := NormalizeType(in); got != want {
			t.Errorf("NormalizeType(%q)=%q want %q", in, got, want)
		}
	}
}
