// Package dispatcher maps decoded RESP commands to facade calls and shapes
// the RESP reply.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/a-agmon/prism-cache/internal/facade"
	"github.com/a-agmon/prism-cache/internal/provider"
	"github.com/a-agmon/prism-cache/internal/resp"
)

// Dispatcher executes decoded commands against a Facade and returns the
// encoded RESP reply, together with whether the connection should be
// closed after the reply is written (true only for QUIT).
type Dispatcher struct {
	facade *facade.Facade
}

// New builds a Dispatcher over f.
func New(f *facade.Facade) *Dispatcher {
	return &Dispatcher{facade: f}
}

// Dispatch executes cmd and returns the RESP-encoded reply plus whether the
// connection should close after it is sent.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd resp.Command) (reply []byte, closeAfter bool) {
	switch cmd.Verb {
	case "PING":
		return d.ping(cmd)
	case "COMMAND":
		return resp.EmptyArray(), false
	case "GET":
		return d.get(ctx, cmd)
	case "HGET":
		return d.hget(ctx, cmd)
	case "QUIT":
		return resp.SimpleString("OK"), true
	default:
		return errReply("ERR unknown command '" + cmd.Verb + "'"), false
	}
}

func (d *Dispatcher) ping(cmd resp.Command) ([]byte, bool) {
	switch len(cmd.Args) {
	case 0:
		return resp.SimpleString("PONG"), false
	case 1:
		return resp.BulkString(cmd.Args[0]), false
	default:
		return errReply("ERR wrong number of arguments for 'ping' command"), false
	}
}

func (d *Dispatcher) get(ctx context.Context, cmd resp.Command) ([]byte, bool) {
	if len(cmd.Args) != 1 {
		return errReply("ERR wrong number of arguments for 'get' command"), false
	}
	rec, err := d.facade.Get(ctx, string(cmd.Args[0]))
	if err != nil {
		return errorReply(err), false
	}
	if rec == nil {
		return resp.NullBulk(), false
	}
	body, marshalErr := json.Marshal(rec)
	if marshalErr != nil {
		return errReply(fmt.Sprintf("ERR backend: %v", marshalErr)), false
	}
	return resp.BulkString(body), false
}

func (d *Dispatcher) hget(ctx context.Context, cmd resp.Command) ([]byte, bool) {
	if len(cmd.Args) != 2 {
		return errReply("ERR wrong number of arguments for 'hget' command"), false
	}
	v, err := d.facade.Hget(ctx, string(cmd.Args[0]), string(cmd.Args[1]))
	if err != nil {
		return errorReply(err), false
	}
	if v == nil {
		return resp.NullBulk(), false
	}
	return resp.BulkString([]byte(*v)), false
}

// errorReply maps a facade/provider error to its wire shape per the error
// taxonomy: provider-not-found and key-grammar errors get their own
// messages, everything else is reported as a backend error.
func errorReply(err error) []byte {
	var notFound *facade.ErrProviderNotFound
	if errors.As(err, &notFound) {
		return errReply("ERR " + notFound.Error())
	}
	if errors.Is(err, facade.ErrKeyGrammar) {
		return errReply("ERR " + err.Error())
	}
	if errors.Is(err, provider.ErrMalformedID) || errors.Is(err, provider.ErrBackend) {
		return errReply(fmt.Sprintf("ERR backend: %v", err))
	}
	return errReply(fmt.Sprintf("ERR backend: %v", err))
}

func errReply(msg string) []byte {
	return resp.Error(msg)
}
