package dispatcher_test

import (
	"context"
	"testing"
	"time"

	"github.com/a-agmon/prism-cache/internal/cache"
	"github.com/a-agmon/prism-cache/internal/dispatcher"
	"github.com/a-agmon/prism-cache/internal/facade"
	"github.com/a-agmon/prism-cache/internal/provider"
	"github.com/a-agmon/prism-cache/internal/provider/mock"
	"github.com/a-agmon/prism-cache/internal/resp"
)

func newDispatcher(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	adapter, err := mock.New("users", map[string]string{"sample_size": "10"})
	if err != nil {
		t.Fatalf("mock.New: %v", err)
	}
	b := provider.NewBuilder()
	if err := b.Add("users", adapter); err != nil {
		t.Fatalf("Add: %v", err)
	}
	reg := b.Build()
	c := cache.New(cache.Options{MaxEntries: 100, TTL: 300 * time.Second})
	return dispatcher.New(facade.New(reg, c))
}

func decodeOne(t *testing.T, wire string) resp.Command {
	t.Helper()
	cmd, n, err := resp.NewDecoder().Decode([]byte(wire))
	if err != nil {
		t.Fatalf("decode %q: %v", wire, err)
	}
	if n == 0 {
		t.Fatalf("decode %q: incomplete", wire)
	}
	return cmd
}

func TestScenarioGetHit(t *testing.T) {
	d := newDispatcher(t)
	cmd := decodeOne(t, "*2\r\n$3\r\nGET\r\n$8\r\nusers:03\r\n")
	reply, closeAfter := d.Dispatch(context.Background(), cmd)
	if closeAfter {
		t.Fatalf("GET must not close the connection")
	}
	want := "$58\r\n{\"id\":\"03\",\"name\":\"user_03\",\"email\":\"user_03@example.com\"}\r\n"
	if string(reply) != want {
		t.Fatalf("reply = %q, want %q", reply, want)
	}
}

func TestScenarioGetIsTransparentOnRepeat(t *testing.T) {
	d := newDispatcher(t)
	cmd := decodeOne(t, "*2\r\n$3\r\nGET\r\n$8\r\nusers:03\r\n")
	first, _ := d.Dispatch(context.Background(), cmd)
	second, _ := d.Dispatch(context.Background(), cmd)
	if string(first) != string(second) {
		t.Fatalf("repeated GET produced different replies: %q vs %q", first, second)
	}
}

func TestScenarioHget(t *testing.T) {
	d := newDispatcher(t)
	cmd := decodeOne(t, "*3\r\n$4\r\nHGET\r\n$8\r\nusers:03\r\n$4\r\nname\r\n")
	reply, _ := d.Dispatch(context.Background(), cmd)
	want := "$7\r\nuser_03\r\n"
	if string(reply) != want {
		t.Fatalf("reply = %q, want %q", reply, want)
	}
}

func TestScenarioGetOutOfRange(t *testing.T) {
	d := newDispatcher(t)
	cmd := decodeOne(t, "*2\r\n$3\r\nGET\r\n$8\r\nusers:99\r\n")
	reply, _ := d.Dispatch(context.Background(), cmd)
	if string(reply) != "$-1\r\n" {
		t.Fatalf("reply = %q, want null bulk", reply)
	}
}

func TestScenarioUnknownProvider(t *testing.T) {
	d := newDispatcher(t)
	cmd := decodeOne(t, "*2\r\n$3\r\nGET\r\n$8\r\nnoprov:1\r\n")
	reply, _ := d.Dispatch(context.Background(), cmd)
	want := "-ERR provider 'noprov' not found\r\n"
	if string(reply) != want {
		t.Fatalf("reply = %q, want %q", reply, want)
	}
}

func TestScenarioPing(t *testing.T) {
	d := newDispatcher(t)
	cmd := decodeOne(t, "*1\r\n$4\r\nPING\r\n")
	reply, _ := d.Dispatch(context.Background(), cmd)
	if string(reply) != "+PONG\r\n" {
		t.Fatalf("reply = %q, want +PONG", reply)
	}
}

func TestKeyWithoutColonIsCommandError(t *testing.T) {
	d := newDispatcher(t)
	cmd := decodeOne(t, "*2\r\n$3\r\nGET\r\n$7\r\nnocolon\r\n")
	reply, _ := d.Dispatch(context.Background(), cmd)
	if reply[0] != '-' {
		t.Fatalf("expected an error reply for a key without ':', got %q", reply)
	}
}

func TestArityMismatch(t *testing.T) {
	d := newDispatcher(t)
	cmd := decodeOne(t, "*1\r\n$3\r\nGET\r\n")
	reply, _ := d.Dispatch(context.Background(), cmd)
	if reply[0] != '-' {
		t.Fatalf("expected an arity error, got %q", reply)
	}
}

func TestUnknownCommand(t *testing.T) {
	d := newDispatcher(t)
	cmd := decodeOne(t, "*1\r\n$4\r\nNOPE\r\n")
	reply, _ := d.Dispatch(context.Background(), cmd)
	want := "-ERR unknown command 'NOPE'\r\n"
	if string(reply) != want {
		t.Fatalf("reply = %q, want %q", reply, want)
	}
}

func TestQuitClosesConnection(t *testing.T) {
	d := newDispatcher(t)
	cmd := decodeOne(t, "*1\r\n$4\r\nQUIT\r\n")
	reply, closeAfter := d.Dispatch(context.Background(), cmd)
	if !closeAfter {
		t.Fatalf("QUIT must close the connection")
	}
	if string(reply) != "+OK\r\n" {
		t.Fatalf("reply = %q, want +OK", reply)
	}
}

func TestCommandAdvertisesEmpty(t *testing.T) {
	d := newDispatcher(t)
	cmd := decodeOne(t, "*1\r\n$7\r\nCOMMAND\r\n")
	reply, _ := d.Dispatch(context.Background(), cmd)
	if string(reply) != "*0\r\n" {
		t.Fatalf("reply = %q, want empty array", reply)
	}
}
