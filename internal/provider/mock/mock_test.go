package mock

import (
	"context"
	"testing"
)

func TestFetchFieldsWithinRange(t *testing.T) {
	a, err := New("users", map[string]string{"sample_size": "10"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec, err := a.FetchFields(context.Background(), "users", "03", nil)
	if err != nil {
		t.Fatalf("FetchFields: %v", err)
	}
	if v, _ := rec.Get("name"); v != "user_03" {
		t.Fatalf("name = %q, want user_03", v)
	}
	if v, _ := rec.Get("email"); v != "user_03@example.com" {
		t.Fatalf("email = %q, want user_03@example.com", v)
	}
}

func TestFetchFieldsOutOfRange(t *testing.T) {
	a, _ := New("users", map[string]string{"sample_size": "10"})
	rec, err := a.FetchFields(context.Background(), "users", "99", nil)
	if err != nil {
		t.Fatalf("FetchFields: %v", err)
	}
	if !rec.Empty() {
		t.Fatalf("expected empty record for out-of-range id, got %+v", rec)
	}
}

func TestFetchFieldsNonNumericID(t *testing.T) {
	a, _ := New("users", map[string]string{"sample_size": "10"})
	rec, err := a.FetchFields(context.Background(), "users", "not-a-number", nil)
	if err != nil {
		t.Fatalf("FetchFields: %v", err)
	}
	if !rec.Empty() {
		t.Fatalf("expected empty record for non-numeric id, got %+v", rec)
	}
}

func TestFetchFieldsProjection(t *testing.T) {
	a, _ := New("users", map[string]string{"sample_size": "10"})
	rec, err := a.FetchFields(context.Background(), "users", "03", []string{"name"})
	if err != nil {
		t.Fatalf("FetchFields: %v", err)
	}
	if rec.Len() != 1 {
		t.Fatalf("expected projection to 1 field, got %d", rec.Len())
	}
	if v, _ := rec.Get("name"); v != "user_03" {
		t.Fatalf("name = %q, want user_03", v)
	}
}

func TestNewRejectsMissingSampleSize(t *testing.T) {
	if _, err := New("users", map[string]string{}); err == nil {
		t.Fatalf("expected error for missing sample_size")
	}
}

func TestNewRejectsInvalidSampleSize(t *testing.T) {
	if _, err := New("users", map[string]string{"sample_size": "-1"}); err == nil {
		t.Fatalf("expected error for negative sample_size")
	}
	if _, err := New("users", map[string]string{"sample_size": "abc"}); err == nil {
		t.Fatalf("expected error for non-numeric sample_size")
	}
}
