package dapbackend

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/willibrandon/litedev/debugger"
	"github.com/willibrandon/litedev/observability"
)

// Dial connects to a debug adapter listening on address.
// Refused connections are retried per WithDialRetry, DefaultRetryConfig by default.
func Dial(ctx context.Context, address string, opts ...Option) (*Backend, error) {
	settings := Backend{retry: DefaultRetryConfig(), logger: observability.NewNullLogger()}
	for _, opt := range opts {
		opt(&settings)
	}
	conn, err := dialWithRetry(ctx, address, settings.retry, settings.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to debug adapter at %s: %w", address, err)
	}
	return New(conn, opts...), nil
}

// Spawn starts a debug adapter process and talks to it over its stdin and stdout.
func Spawn(command string, args []string, opts ...Option) (*Backend, error) {
	cmd := exec.Command(command, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start debug adapter %s: %w", command, err)
	}

	b := New(&stdioConn{reader: stdout, writer: stdin}, opts...)
	b.cmd = cmd
	return b, nil
}

// Factory returns a debugger.BackendFactory for adapter. An adapter of the
// form tcp://host:port is dialed; anything else is spawned with args.
func Factory(adapter string, args []string, opts ...Option) debugger.BackendFactory {
	return func() (debugger.Backend, error) {
		if address, ok := strings.CutPrefix(adapter, "tcp://"); ok {
			return Dial(context.Background(), address, opts...)
		}
		return Spawn(adapter, args, opts...)
	}
}

// stdioConn joins an adapter's stdout and stdin into one stream.
type stdioConn struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

func (s *stdioConn) Read(p []byte) (int, error) { return s.reader.Read(p) }

func (s *stdioConn) Write(p []byte) (int, error) { return s.writer.Write(p) }

func (s *stdioConn) Close() error {
	err1 := s.writer.Close()
	err2 := s.reader.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
