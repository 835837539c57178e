package dapbackend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryConfig_CalculateBackoff(t *testing.T) {
	rc := DefaultRetryConfig()

	first := rc.CalculateBackoff(0)
	assert.InDelta(t, float64(100*time.Millisecond), float64(first), float64(10*time.Millisecond))

	second := rc.CalculateBackoff(1)
	assert.InDelta(t, float64(200*time.Millisecond), float64(second), float64(20*time.Millisecond))

	capped := rc.CalculateBackoff(20)
	assert.LessOrEqual(t, capped, 2*time.Second+200*time.Millisecond)
}

func TestIsRetriable(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}

	assert.True(t, IsRetriable(refused))
	assert.True(t, IsRetriable(fmt.Errorf("dial: %w", refused)))
	assert.False(t, IsRetriable(context.Canceled))
	assert.False(t, IsRetriable(errors.New("no such host")))
	assert.False(t, IsRetriable(nil))
}

// freeAddress returns a loopback address nothing listens on.
func freeAddress(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestDial_WaitsForAdapter(t *testing.T) {
	addr := freeAddress(t)

	go func() {
		time.Sleep(150 * time.Millisecond)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return
		}
		defer ln.Close()
		if conn, err := ln.Accept(); err == nil {
			newFakeAdapter(conn)
		}
	}()

	backend, err := Dial(context.Background(), addr, WithDialRetry(RetryConfig{
		MaxRetries:     20,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		BackoffFactor:  2,
	}))
	require.NoError(t, err)
	defer backend.Close()
}

func TestDial_NoRetry(t *testing.T) {
	addr := freeAddress(t)

	start := time.Now()
	_, err := Dial(context.Background(), addr, WithDialRetry(RetryConfig{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to debug adapter at "+addr)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDial_Cancelled(t *testing.T) {
	addr := freeAddress(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := Dial(ctx, addr, WithDialRetry(RetryConfig{MaxRetries: 100, InitialBackoff: time.Second, MaxBackoff: time.Second, BackoffFactor: 1}))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
