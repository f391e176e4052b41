package supervisor

import (
	"bytes"
	"context"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafabd1/climatesense/pkg/logger"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newCapturingLogger() (logger.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return logger.NewLogger(&logger.Config{Level: logger.InfoLevel, Output: buf}), buf
}

func env(values map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := values[k]
		return v, ok
	}
}

func testConfig(worker []string, background ...[]string) Config {
	cfg := Config{
		CredentialEnv: "GOOGLE_API_KEY",
		Worker:        Process{Name: "agent", Command: worker},
		GracePeriod:   2 * time.Second,
		Stdout:        &bytes.Buffer{},
		Stderr:        &bytes.Buffer{},
	}
	for i, cmd := range background {
		name := "dashboard"
		if i > 0 {
			name = "job"
		}
		cfg.Background = append(cfg.Background, Process{Name: name, Command: cmd})
	}
	return cfg
}

func runWithTimeout(t *testing.T, s *Supervisor, ctx context.Context) (int, error) {
	t.Helper()
	type result struct {
		code int
		err  error
	}
	done := make(chan result, 1)
	go func() {
		code, err := s.Run(ctx)
		done <- result{code, err}
	}()
	select {
	case r := <-done:
		return r.code, r.err
	case <-time.After(15 * time.Second):
		t.Fatal("supervisor did not return")
		return 0, nil
	}
}

func TestSupervisor_CheckCredential(t *testing.T) {
	t.Run("Should warn when the credential is unset", func(t *testing.T) {
		log, buf := newCapturingLogger()
		s := New(testConfig([]string{"true"}), WithLogger(log), WithLookupEnv(env(nil)))

		assert.False(t, s.CheckCredential())
		assert.Contains(t, buf.String(), "Credential variable is not set")
		assert.Contains(t, buf.String(), "GOOGLE_API_KEY")
	})

	t.Run("Should warn when the credential is blank", func(t *testing.T) {
		log, buf := newCapturingLogger()
		s := New(testConfig([]string{"true"}), WithLogger(log), WithLookupEnv(env(map[string]string{"GOOGLE_API_KEY": "  "})))

		assert.False(t, s.CheckCredential())
		assert.Contains(t, buf.String(), "GOOGLE_API_KEY")
	})

	t.Run("Should stay quiet when the credential is present", func(t *testing.T) {
		log, buf := newCapturingLogger()
		s := New(testConfig([]string{"true"}), WithLogger(log), WithLookupEnv(env(map[string]string{"GOOGLE_API_KEY": "secret"})))

		assert.True(t, s.CheckCredential())
		assert.NotContains(t, buf.String(), "Credential variable is not set")
	})
}

func TestSupervisor_Run(t *testing.T) {
	quiet := WithLogger(logger.NewLogger(logger.TestConfig()))
	withKey := WithLookupEnv(env(map[string]string{"GOOGLE_API_KEY": "secret"}))

	t.Run("Should return zero when the worker succeeds", func(t *testing.T) {
		s := New(testConfig([]string{"sh", "-c", "exit 0"}), quiet, withKey)
		code, err := runWithTimeout(t, s, context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, code)
	})

	t.Run("Should propagate the worker's exit code", func(t *testing.T) {
		s := New(testConfig([]string{"sh", "-c", "exit 1"}), quiet, withKey)
		code, err := runWithTimeout(t, s, context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, code)
	})

	t.Run("Should still launch the worker without the credential", func(t *testing.T) {
		log, buf := newCapturingLogger()
		s := New(testConfig([]string{"sh", "-c", "exit 4"}), WithLogger(log), WithLookupEnv(env(nil)))
		code, err := runWithTimeout(t, s, context.Background())
		require.NoError(t, err)
		assert.Equal(t, 4, code)
		assert.Contains(t, buf.String(), "Credential variable is not set")
	})

	t.Run("Should return the status of whichever process exits first", func(t *testing.T) {
		s := New(testConfig([]string{"sleep", "30"}, []string{"sh", "-c", "exit 7"}), quiet, withKey)
		start := time.Now()
		code, err := runWithTimeout(t, s, context.Background())
		require.NoError(t, err)
		assert.Equal(t, 7, code)
		assert.Less(t, time.Since(start), 10*time.Second)
	})

	t.Run("Should not wait for the background job when the worker exits first", func(t *testing.T) {
		s := New(testConfig([]string{"sh", "-c", "exit 2"}, []string{"sleep", "30"}), quiet, withKey)
		code, err := runWithTimeout(t, s, context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, code)
	})

	t.Run("Should report a worker that cannot start", func(t *testing.T) {
		s := New(testConfig([]string{"/nonexistent/climatesense-worker"}), quiet, withKey)
		code, err := runWithTimeout(t, s, context.Background())
		require.Error(t, err)
		assert.Equal(t, ExitStartFailure, code)
	})

	t.Run("Should stop the running worker when a background job cannot start", func(t *testing.T) {
		started := make(chan string, 2)
		s := New(testConfig([]string{"sleep", "30"}, []string{"/nonexistent/climatesense-dashboard"}), quiet, withKey, WithStartedNotifier(started))

		start := time.Now()
		code, err := runWithTimeout(t, s, context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dashboard did not start")
		assert.Equal(t, ExitStartFailure, code)
		assert.Less(t, time.Since(start), 10*time.Second)

		require.Len(t, started, 1)
		assert.Equal(t, "agent", <-started)
	})

	t.Run("Should reject an empty worker command", func(t *testing.T) {
		s := New(testConfig(nil), quiet, withKey)
		code, err := s.Run(context.Background())
		require.Error(t, err)
		assert.Equal(t, ExitStartFailure, code)
	})

	t.Run("Should forward signals to the children", func(t *testing.T) {
		signals := make(chan os.Signal, 1)
		started := make(chan string, 2)
		s := New(testConfig([]string{"sleep", "30"}), quiet, withKey, WithSignals(signals), WithStartedNotifier(started))

		go func() {
			<-started
			signals <- syscall.SIGTERM
		}()
		code, err := runWithTimeout(t, s, context.Background())
		require.NoError(t, err)
		assert.Equal(t, 128+int(syscall.SIGTERM), code)
	})

	t.Run("Should stop the children when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		started := make(chan string, 2)
		s := New(testConfig([]string{"sleep", "30"}), quiet, withKey, WithStartedNotifier(started))

		go func() {
			<-started
			cancel()
		}()
		code, err := runWithTimeout(t, s, ctx)
		require.NoError(t, err)
		assert.Equal(t, 128+int(syscall.SIGTERM), code)
	})
}
