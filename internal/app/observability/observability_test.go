package observability

import "testing"

func TestNormalizedPath(t *testing.T) {
	got := normalizedPath("/api/v1/practice/0123456789abcdef0123456789abcdef/review/q7/level")
	want := "/api/v1/practice/{id}/review/q7/level"
	if got != want {
		t.Fatalf("normalizedPath mismatch got=%s want=%s", got, want)
	}

	got = normalizedPath("/api/v1/exams/42/results")
	want = "/api/v1/exams/{id}/results"
	if got != want {
		t.Fatalf("normalizedPath mismatch got=%s want=%s", got, want)
	}
}

func TestExtractSessionID(t *testing.T) {
	id := "0123456789abcdef0123456789abcdef"
	if got := extractSessionID("/api/v1/practice/" + id + "/begin"); got != id {
		t.Fatalf("expected %s, got %s", id, got)
	}
	if got := extractSessionID("/api/v1/exams/1"); got != "" {
		t.Fatalf("expected empty for non-session path, got %s", got)
	}
	if got := extractSessionID("/api/v1/practice/not-hex/begin"); got != "" {
		t.Fatalf("expected empty for malformed id, got %s", got)
	}
}
