package task

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafabd1/climatesense/pkg/logger"
)

func newTestManager(t *testing.T, opts ...Option) ExecutionManager {
	t.Helper()
	opts = append([]Option{WithLogger(logger.NewLogger(logger.TestConfig())), WithGracePeriod(2 * time.Second)}, opts...)
	m := NewManager(opts...)
	t.Cleanup(func() {
		_ = m.Stop()
		m.Wait()
	})
	return m
}

func nextCompleted(t *testing.T, m ExecutionManager) TaskEvent {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev := <-m.Events():
			if ev.EventType == EventCompleted {
				return ev
			}
		case <-timeout:
			t.Fatal("timed out waiting for a completed event")
		}
	}
}

func TestManager_SubmitTask(t *testing.T) {
	t.Run("Should report a successful exit", func(t *testing.T) {
		m := newTestManager(t)
		id, err := m.SubmitTask(context.Background(), Spec{Name: "ok", Command: []string{"sh", "-c", "echo hello"}})
		require.NoError(t, err)

		ev := nextCompleted(t, m)
		assert.Equal(t, id, ev.TaskID)
		assert.Equal(t, StatusSuccess, ev.Status)
		assert.Equal(t, 0, ev.ExitCode)

		snapshot, err := m.GetTaskStatus(id)
		require.NoError(t, err)
		assert.Equal(t, "hello\n", snapshot.OutputBuffer.String())
		assert.NotZero(t, snapshot.PID)
	})

	t.Run("Should carry the child's exit code", func(t *testing.T) {
		m := newTestManager(t)
		_, err := m.SubmitTask(context.Background(), Spec{Command: []string{"sh", "-c", "exit 3"}})
		require.NoError(t, err)

		ev := nextCompleted(t, m)
		assert.Equal(t, StatusFailed, ev.Status)
		assert.Equal(t, 3, ev.ExitCode)
		assert.Error(t, ev.Error)
	})

	t.Run("Should map a signalled child to 128 plus the signal", func(t *testing.T) {
		m := newTestManager(t)
		_, err := m.SubmitTask(context.Background(), Spec{Command: []string{"sh", "-c", "kill -KILL $$"}})
		require.NoError(t, err)

		ev := nextCompleted(t, m)
		assert.Equal(t, 128+int(syscall.SIGKILL), ev.ExitCode)
		assert.Equal(t, syscall.SIGKILL, ev.Signal)
	})

	t.Run("Should return start failures synchronously", func(t *testing.T) {
		m := newTestManager(t)
		_, err := m.SubmitTask(context.Background(), Spec{Command: []string{"/nonexistent/climatesense-binary"}})
		require.Error(t, err)
	})

	t.Run("Should reject an empty command", func(t *testing.T) {
		m := newTestManager(t)
		_, err := m.SubmitTask(context.Background(), Spec{})
		require.Error(t, err)
	})

	t.Run("Should not block while the child runs", func(t *testing.T) {
		m := newTestManager(t)
		start := time.Now()
		id, err := m.SubmitTask(context.Background(), Spec{Command: []string{"sleep", "5"}})
		require.NoError(t, err)
		assert.Less(t, time.Since(start), 2*time.Second)
		require.NoError(t, m.CancelTask(id))
		ev := nextCompleted(t, m)
		assert.Equal(t, StatusCancelled, ev.Status)
	})
}

func TestManager_GracePeriod(t *testing.T) {
	t.Run("Should kill a cancelled task that ignores the stop signal", func(t *testing.T) {
		m := newTestManager(t, WithGracePeriod(500*time.Millisecond))
		id, err := m.SubmitTask(context.Background(), Spec{Command: []string{"sh", "-c", "trap '' TERM; exec sleep 30"}})
		require.NoError(t, err)
		time.Sleep(100 * time.Millisecond)

		start := time.Now()
		require.NoError(t, m.CancelTask(id))
		ev := nextCompleted(t, m)
		assert.Equal(t, StatusCancelled, ev.Status)
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("Should kill immediately with a zero grace period", func(t *testing.T) {
		m := newTestManager(t, WithGracePeriod(0))
		id, err := m.SubmitTask(context.Background(), Spec{Command: []string{"sh", "-c", "trap '' TERM; exec sleep 30"}})
		require.NoError(t, err)
		time.Sleep(100 * time.Millisecond)

		start := time.Now()
		require.NoError(t, m.CancelTask(id))
		ev := nextCompleted(t, m)
		assert.Equal(t, StatusCancelled, ev.Status)
		assert.Equal(t, 128+int(syscall.SIGKILL), ev.ExitCode)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestManager_Signals(t *testing.T) {
	t.Run("Should deliver signals to running tasks", func(t *testing.T) {
		m := newTestManager(t)
		id, err := m.SubmitTask(context.Background(), Spec{Command: []string{"sleep", "30"}})
		require.NoError(t, err)

		assert.Contains(t, m.GetRunningTasksSummary(), "sleep")
		assert.Equal(t, 1, m.SignalAll(syscall.SIGTERM))

		ev := nextCompleted(t, m)
		assert.Equal(t, id, ev.TaskID)
		assert.Equal(t, 128+int(syscall.SIGTERM), ev.ExitCode)
		assert.Empty(t, m.GetRunningTasksSummary())
	})

	t.Run("Should fail for unknown tasks", func(t *testing.T) {
		m := newTestManager(t)
		assert.ErrorIs(t, m.SendSignalToTask("missing", syscall.SIGTERM), ErrTaskNotFound)
		assert.ErrorIs(t, m.CancelTask("missing"), ErrTaskNotFound)
		_, err := m.GetTaskStatus("missing")
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}
