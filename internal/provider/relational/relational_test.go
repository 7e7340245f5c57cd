package relational

import (
	"testing"

	"github.com/a-agmon/prism-cache/internal/provider"
)

func TestNewRejectsMissingFields(t *testing.T) {
	_, err := New("accounts", map[string]string{
		"user": "u", "password": "p", "host": "h", "port": "5432", "dbname": "d",
	}, nil)
	if err == nil {
		t.Fatalf("expected error for missing fields setting")
	}
}

func TestNewRejectsMissingConnectionSettings(t *testing.T) {
	_, err := New("accounts", map[string]string{"fields": "id,name"}, nil)
	if err == nil {
		t.Fatalf("expected error for missing connection settings")
	}
}

func TestStringify(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{[]byte("hi"), "hi"},
		{"plain", "plain"},
		{int64(42), "42"},
		{3.5, "3.5"},
		{true, "true"},
	}
	for _, c := range cases {
		if got := stringify(c.in); got != c.want {
			t.Fatalf("stringify(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIDColumnDefaultsToFirstField(t *testing.T) {
	// New fails on sql.Open only if the driver name is unregistered, which
	// it never is for "postgres" (registered by the blank pq import), so
	// this exercises the id-column defaulting logic without a live DB.
	a, err := New("accounts", map[string]string{
		"user": "u", "password": "p", "host": "h", "port": "5432", "dbname": "d",
		"fields": "id, name, email",
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.idColumn != "id" {
		t.Fatalf("idColumn = %q, want id", a.idColumn)
	}
	if a.logger == nil {
		t.Fatalf("expected New to default a nil logger to a non-nil NopLogger")
	}
	var _ provider.Adapter = a
}
