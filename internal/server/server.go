// Package server implements the RESP connection server: an accept loop
// that spawns one panic-isolated task per connection, and a bounded
// graceful shutdown.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/a-agmon/prism-cache/internal/dispatcher"
	"github.com/a-agmon/prism-cache/internal/resp"
	"github.com/a-agmon/prism-cache/internal/telemetry"
)

const readChunkSize = 4096

// Options configures a Server.
type Options struct {
	BindAddress     string
	Dispatcher      *dispatcher.Dispatcher
	Logger          telemetry.Logger
	ShutdownTimeout time.Duration
}

// Server accepts RESP connections and drives each one through decode ->
// dispatch -> encode -> write until the client disconnects or QUITs.
type Server struct {
	opts     Options
	listener net.Listener
	tasks    conc.WaitGroup
}

// New builds a Server. Call Serve to bind and start accepting.
func New(opts Options) *Server {
	opts.Logger = telemetry.Coalesce(opts.Logger)
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	return &Server{opts: opts}
}

// Serve binds BindAddress and accepts connections until ctx is canceled.
// It returns after graceful shutdown completes or the bound deadline
// expires, whichever comes first.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.BindAddress)
	if err != nil {
		return err
	}
	s.listener = ln
	s.opts.Logger.Info("listening", telemetry.Fields{"addr": ln.Addr().String()})

	acceptErrs := make(chan error, 1)
	go func() {
		acceptErrs <- s.acceptLoop(ctx)
	}()

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-acceptErrs:
		return err
	}
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.opts.Logger.Warn("accept failed", telemetry.Fields{"error": err.Error()})
			continue
		}
		s.tasks.Go(func() {
			s.handleConn(ctx, conn)
		})
	}
}

// shutdown stops accepting new connections and waits, up to
// ShutdownTimeout, for in-flight connection tasks to finish their current
// command and close. Tasks past the deadline are abandoned.
func (s *Server) shutdown() error {
	s.opts.Logger.Info("shutting down", telemetry.Fields{"timeout": s.opts.ShutdownTimeout.String()})
	_ = s.listener.Close()

	done := make(chan struct{})
	go func() {
		s.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(s.opts.ShutdownTimeout):
		s.opts.Logger.Warn("shutdown deadline exceeded, abandoning in-flight connections", nil)
		return nil
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	// On shutdown, expire pending reads so the task finishes the command it
	// is serving and then closes instead of waiting for the next request.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()
	log := s.opts.Logger.With(telemetry.Fields{"remote": conn.RemoteAddr().String()})
	log.Debug("connection accepted", nil)

	decoder := resp.NewDecoder()
	buf := make([]byte, 0, readChunkSize)
	chunk := make([]byte, readChunkSize)

	for {
		cmd, consumed, err := decoder.Decode(buf)
		if err != nil {
			log.Warn("malformed frame, closing connection", telemetry.Fields{"error": err.Error()})
			_, _ = conn.Write(resp.Error("ERR malformed"))
			return
		}
		if consumed == 0 {
			n, readErr := conn.Read(chunk)
			if n > 0 {
				buf = append(buf, chunk[:n]...)
			}
			if readErr != nil {
				if !errors.Is(readErr, io.EOF) {
					log.Debug("connection read error", telemetry.Fields{"error": readErr.Error()})
				}
				return
			}
			continue
		}
		buf = buf[consumed:]

		reply, closeAfter := s.opts.Dispatcher.Dispatch(ctx, cmd)
		if _, err := conn.Write(reply); err != nil {
			log.Debug("connection write error", telemetry.Fields{"error": err.Error()})
			return
		}
		if closeAfter {
			return
		}
	}
}
