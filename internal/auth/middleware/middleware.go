package authmw

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mind-engage/coursetrack/internal/auth"
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 bearer tokens minted by the platform's auth layer.
type Verifier struct{ hmac []byte }

func NewVerifier(secret string) *Verifier { return &Verifier{hmac: []byte(secret)} }

func (v *Verifier) Parse(tokenStr string) (auth.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return auth.Actor{}, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return auth.Actor{}, errors.New("invalid claims")
	}
	sub, _ := c.GetSubject()
	role := auth.ParseRole(c.Role)
	if sub == "" || role == "" {
		return auth.Actor{}, errors.New("token missing subject or role")
	}
	return auth.Actor{ID: sub, Role: role}, nil
}

// JWTMiddleware rejects requests without a valid bearer token and stores
// the caller in the request context.
func JWTMiddleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			actor, err := v.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), actor)))
		})
	}
}
