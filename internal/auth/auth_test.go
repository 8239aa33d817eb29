package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func mintToken(t *testing.T, secret, subject, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerifierParse(t *testing.T) {
	v := NewVerifier(testSecret)

	learner, err := v.Parse(mintToken(t, testSecret, "42", "learner"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if learner.ID != 42 || learner.Role != "learner" {
		t.Fatalf("learner = %+v", learner)
	}

	if _, err := v.Parse(mintToken(t, "other-secret", "42", "learner")); err == nil {
		t.Fatalf("wrong secret should fail")
	}
	if _, err := v.Parse(mintToken(t, testSecret, "not-a-number", "learner")); err == nil {
		t.Fatalf("non-numeric subject should fail")
	}
	if _, err := v.Parse("garbage"); err == nil {
		t.Fatalf("garbage token should fail")
	}
}

func TestRequireLearner(t *testing.T) {
	v := NewVerifier(testSecret)
	var seen *Learner
	next := v.RequireLearner(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CurrentLearner(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/exams", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testSecret, "42", "learner"))
	w := httptest.NewRecorder()
	next.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if seen == nil || seen.ID != 42 {
		t.Fatalf("learner not on context: %+v", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/exams", nil)
	w = httptest.NewRecorder()
	next.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/exams", nil)
	req.Header.Set("Authorization", "Bearer nonsense")
	w = httptest.NewRecorder()
	next.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", w.Code)
	}
}
