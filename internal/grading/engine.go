package grading

import (
	"context"
	"errors"
	"fmt"
)

// Answer types understood by the default grader.
const (
	TypeSingleChoice = "single_choice"
	TypeBoolean      = "boolean"
	TypeFreeText     = "free_text"
)

var ErrUnknownType = errors.New("unknown answer type")

// Q is the minimal view of a question needed for grading.
type Q struct {
	Type      string
	AnswerKey string
}

// Result is the outcome of grading a single response.
type Result struct {
	Correct  bool
	Feedback []string
}

// Strategy grades a single question type.
type Strategy interface {
	Grade(ctx context.Context, q Q, response string) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, response string) (Result, error)
	Supports(answerType string) bool
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, response string) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownType, q.Type)
	}
	return s.Grade(ctx, q, response)
}

func (g *defaultGrader) Supports(answerType string) bool {
	_, ok := g.strategies[answerType]
	return ok
}

type Option func(map[string]Strategy)

// WithStrategy registers or replaces the strategy for an answer type.
func WithStrategy(answerType string, s Strategy) Option {
	return func(m map[string]Strategy) { m[answerType] = s }
}

// NewDefaultGrader installs the built-in strategies.
func NewDefaultGrader(opts ...Option) Grader {
	strategies := map[string]Strategy{
		TypeSingleChoice: singleChoiceStrategy{},
		TypeBoolean:      booleanStrategy{},
		TypeFreeText:     freeTextStrategy{},
	}
	for _, o := range opts {
		o(strategies)
	}
	return &defaultGrader{strategies: strategies}
}

// --- Strategies ---

// singleChoiceStrategy compares option identifiers exactly, case included.
type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Grade(_ context.Context, q Q, response string) (Result, error) {
	return Result{Correct: response != "" && response == q.AnswerKey}, nil
}

type booleanStrategy struct{}

func (booleanStrategy) Grade(_ context.Context, q Q, response string) (Result, error) {
	key, ok := ParseBool(q.AnswerKey)
	if !ok {
		return Result{}, fmt.Errorf("boolean answer key %q is not a boolean", q.AnswerKey)
	}
	got, ok := ParseBool(response)
	if !ok {
		return Result{Feedback: []string{"response is not a boolean"}}, nil
	}
	return Result{Correct: got == key}, nil
}

// freeTextStrategy is exact match after trimming and case folding. There is
// no partial or fuzzy credit.
type freeTextStrategy struct{}

func (freeTextStrategy) Grade(_ context.Context, q Q, response string) (Result, error) {
	nr := normalizeText(response)
	if nr == "" {
		return Result{}, nil
	}
	return Result{Correct: nr == normalizeText(q.AnswerKey)}, nil
}
