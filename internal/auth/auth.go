package auth

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"studylab/internal/app/apiresp"
)

type contextKey string

const learnerContextKey contextKey = "auth_learner"

// Learner is the authenticated caller extracted from a platform token. This
// service does not issue tokens; the identity provider does.
type Learner struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens signed by the platform identity provider
// with a shared HS256 secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

var errInvalidToken = errors.New("invalid token")

// Parse verifies the token signature and extracts the learner. The subject
// claim carries the numeric learner id.
func (v *Verifier) Parse(token string) (*Learner, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, errInvalidToken
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, errInvalidToken
	}
	return &Learner{ID: id, Role: c.Role}, nil
}

// RequireLearner rejects requests without a valid bearer token and stores the
// learner on the request context.
func (v *Verifier) RequireLearner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			apiresp.WriteError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}
		learner, err := v.Parse(raw)
		if err != nil {
			apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := WithLearner(r.Context(), learner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
