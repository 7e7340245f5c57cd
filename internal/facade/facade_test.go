package facade_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a-agmon/prism-cache/internal/cache"
	"github.com/a-agmon/prism-cache/internal/facade"
	"github.com/a-agmon/prism-cache/internal/provider"
	"github.com/a-agmon/prism-cache/internal/provider/mock"
	"github.com/a-agmon/prism-cache/internal/record"
)

func newFacade(t *testing.T, sampleSize string) (*facade.Facade, *int32) {
	t.Helper()
	adapter, err := mock.New("users", map[string]string{"sample_size": sampleSize})
	if err != nil {
		t.Fatalf("mock.New: %v", err)
	}
	counted := &countingAdapter{Adapter: adapter}
	b := provider.NewBuilder()
	if err := b.Add("users", counted); err != nil {
		t.Fatalf("Add: %v", err)
	}
	reg := b.Build()
	c := cache.New(cache.Options{MaxEntries: 100, TTL: time.Hour})
	return facade.New(reg, c), &counted.calls
}

type countingAdapter struct {
	*mock.Adapter
	calls int32
}

func (c *countingAdapter) FetchFields(ctx context.Context, entity, id string, fields []string) (record.Data, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.Adapter.FetchFields(ctx, entity, id, fields)
}

func TestParseKeyRejectsMissingColon(t *testing.T) {
	if _, _, err := facade.ParseKey("noColonHere"); err == nil {
		t.Fatalf("expected error for key without ':'")
	}
}

func TestParseKeyKeepsExtraColonsInID(t *testing.T) {
	p, id, err := facade.ParseKey("users:a:b:c")
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	if p != "users" || id != "a:b:c" {
		t.Fatalf("got provider=%q id=%q", p, id)
	}
}

func TestGetUnknownProvider(t *testing.T) {
	f, _ := newFacade(t, "10")
	_, err := f.Get(context.Background(), "noprov:1")
	if err == nil {
		t.Fatalf("expected provider-not-found error")
	}
}

func TestGetHitAndMiss(t *testing.T) {
	f, _ := newFacade(t, "10")
	rec, err := f.Get(context.Background(), "users:03")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected a record for users:03")
	}
	if v, _ := rec.Get("name"); v != "user_03" {
		t.Fatalf("name = %q", v)
	}

	rec, err = f.Get(context.Background(), "users:99")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record for out-of-range id, got %+v", rec)
	}
}

func TestGetIsTransparentOnRepeat(t *testing.T) {
	f, calls := newFacade(t, "10")
	if _, err := f.Get(context.Background(), "users:03"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := f.Get(context.Background(), "users:03"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Fatalf("adapter invoked %d times across two GETs, want 1", got)
	}
}

func TestHgetProjectsField(t *testing.T) {
	f, _ := newFacade(t, "10")
	v, err := f.Hget(context.Background(), "users:03", "name")
	if err != nil {
		t.Fatalf("Hget: %v", err)
	}
	if v == nil || *v != "user_03" {
		t.Fatalf("got %v, want user_03", v)
	}

	v, err = f.Hget(context.Background(), "users:03", "does-not-exist")
	if err != nil {
		t.Fatalf("Hget: %v", err)
	}
	if v != nil {
		t.Fatalf("expected nil for missing field, got %v", *v)
	}
}
