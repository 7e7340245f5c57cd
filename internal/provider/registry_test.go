package provider_test

import (
	"context"
	"testing"

	"github.com/a-agmon/prism-cache/internal/provider"
	"github.com/a-agmon/prism-cache/internal/provider/mock"
)

func newMock(t *testing.T, name, sampleSize string) provider.Adapter {
	t.Helper()
	a, err := mock.New(name, map[string]string{"sample_size": sampleSize})
	if err != nil {
		t.Fatalf("mock.New: %v", err)
	}
	return a
}

func TestRegistryResolve(t *testing.T) {
	b := provider.NewBuilder()
	if err := b.Add("users", newMock(t, "users", "10")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	reg := b.Build()

	if _, ok := reg.Resolve("users"); !ok {
		t.Fatalf("expected users to resolve")
	}
	if _, ok := reg.Resolve("missing"); ok {
		t.Fatalf("expected missing provider to not resolve")
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	b := provider.NewBuilder()
	if err := b.Add("users", newMock(t, "users", "10")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := b.Add("users", newMock(t, "users", "5")); err == nil {
		t.Fatalf("expected duplicate name to be rejected")
	}
}

func TestRegistryHealthCheck(t *testing.T) {
	b := provider.NewBuilder()
	_ = b.Add("users", newMock(t, "users", "10"))
	_ = b.Add("accounts", newMock(t, "accounts", "5"))
	reg := b.Build()

	failures := reg.HealthCheck(context.Background())
	if len(failures) != 0 {
		t.Fatalf("expected no failures from mock adapters, got %v", failures)
	}
}
