// Package auth carries the verified caller identity through a request.
// Credentials are issued and checked elsewhere; this core only consumes
// the subject and role of an already verified bearer token.
package auth

import (
	"context"
	"strings"
)

type Role string

const (
	RoleLearner    Role = "learner"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// ParseRole accepts the legacy "student"/"teacher" claim values too.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "instructor", "teacher":
		return RoleInstructor
	case "learner", "student":
		return RoleLearner
	}
	return ""
}

type Actor struct {
	ID   string
	Role Role
}

// Privileged callers see correct answers and other learners' records.
func (a Actor) Privileged() bool { return a.Role == RoleInstructor || a.Role == RoleAdmin }

// CanAccessLearner reports whether the actor may act on learnerID's data.
func (a Actor) CanAccessLearner(learnerID string) bool {
	return a.Privileged() || (a.ID != "" && a.ID == learnerID)
}

type ctxKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok && a.ID != ""
}
