package task

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/rafabd1/climatesense/pkg/logger"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusSuccess   TaskStatus = "success"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
)

const (
	EventStarted   = "started"
	EventCompleted = "completed"
)

// ExitCodeUnknown is reported when a process ended without a usable status.
const ExitCodeUnknown = -1

var ErrTaskNotFound = errors.New("task not found")

// Spec describes a process to launch. Command is an argv; no shell is involved.
type Spec struct {
	Name    string
	Command []string
	Env     []string
	Dir     string
	Stdin   io.Reader
	// Stdout and Stderr default to a per-task capture buffer when nil.
	Stdout io.Writer
	Stderr io.Writer
}

// Task is a managed process.
type Task struct {
	ID           string
	Name         string
	Command      []string
	PID          int
	Status       TaskStatus
	StartTime    time.Time
	EndTime      time.Time
	ExitCode     int
	Signal       os.Signal
	OutputBuffer *bytes.Buffer
	Error        error

	ctx        context.Context
	cancelFunc context.CancelFunc
	cmd        *exec.Cmd
	mu         sync.RWMutex
}

// CommandString renders the argv for display.
func (t *Task) CommandString() string {
	return strings.Join(t.Command, " ")
}

// TaskEvent is a notification about a task's lifecycle.
type TaskEvent struct {
	TaskID    string
	TaskName  string
	EventType string
	Status    TaskStatus
	ExitCode  int
	Signal    os.Signal
	Error     error
}

// ExecutionManager launches processes and reports their termination.
type ExecutionManager interface {
	// SubmitTask starts the process and returns once it is running. Start
	// failures are returned synchronously; the process is waited on in the
	// background.
	SubmitTask(ctx context.Context, spec Spec) (string, error)
	GetTaskStatus(taskID string) (*Task, error)
	SendSignalToTask(taskID string, sig os.Signal) error
	// SignalAll delivers sig to every running task and returns how many were signalled.
	SignalAll(sig os.Signal) int
	CancelTask(taskID string) error
	Events() <-chan TaskEvent
	GetRunningTasksSummary() string
	// Wait blocks until every submitted task has been reaped.
	Wait()
	Stop() error
}

type manager struct {
	tasks      map[string]*Task
	tasksMu    sync.RWMutex
	eventChan  chan TaskEvent
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	stopSignal os.Signal
	grace      time.Duration
	log        logger.Logger
}

type Option func(*manager)

// WithStopSignal sets the signal sent when a task is cancelled.
func WithStopSignal(sig os.Signal) Option {
	return func(m *manager) {
		if sig != nil {
			m.stopSignal = sig
		}
	}
}

// WithGracePeriod bounds how long a cancelled task may take before it is
// killed. Zero kills cancelled tasks outright.
func WithGracePeriod(d time.Duration) Option {
	return func(m *manager) {
		if d >= 0 {
			m.grace = d
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(m *manager) {
		if l != nil {
			m.log = l
		}
	}
}

func NewManager(opts ...Option) ExecutionManager {
	m := &manager{
		tasks:      make(map[string]*Task),
		eventChan:  make(chan TaskEvent, 32),
		stopChan:   make(chan struct{}),
		stopSignal: syscall.SIGTERM,
		grace:      10 * time.Second,
		log:        logger.GetDefault(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *manager) Events() <-chan TaskEvent {
	return m.eventChan
}

func (m *manager) SubmitTask(ctx context.Context, spec Spec) (string, error) {
	if len(spec.Command) == 0 || spec.Command[0] == "" {
		return "", errors.New("task command cannot be empty")
	}
	select {
	case <-m.stopChan:
		return "", errors.New("execution manager is stopped")
	default:
	}

	taskID := uuid.New().String()
	taskCtx, cancelFunc := context.WithCancel(ctx)
	name := spec.Name
	if name == "" {
		name = spec.Command[0]
	}

	t := &Task{
		ID:           taskID,
		Name:         name,
		Command:      append([]string(nil), spec.Command...),
		Status:       StatusPending,
		OutputBuffer: new(bytes.Buffer),
		ctx:          taskCtx,
		cancelFunc:   cancelFunc,
	}

	cmd := exec.CommandContext(taskCtx, spec.Command[0], spec.Command[1:]...)
	cmd.Env = spec.Env
	cmd.Dir = spec.Dir
	cmd.Stdin = spec.Stdin
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = &lockedWriter{mu: &t.mu, w: t.OutputBuffer}
	}
	if cmd.Stderr == nil {
		cmd.Stderr = &lockedWriter{mu: &t.mu, w: t.OutputBuffer}
	}
	stopSignal := m.stopSignal
	cmd.Cancel = func() error {
		return cmd.Process.Signal(stopSignal)
	}
	if m.grace == 0 {
		cmd.Cancel = func() error {
			return cmd.Process.Kill()
		}
	}
	cmd.WaitDelay = m.grace

	if err := cmd.Start(); err != nil {
		cancelFunc()
		return "", errors.Wrapf(err, "failed to start %s", name)
	}

	t.mu.Lock()
	t.cmd = cmd
	t.PID = cmd.Process.Pid
	t.Status = StatusRunning
	t.StartTime = time.Now()
	t.mu.Unlock()

	m.tasksMu.Lock()
	m.tasks[taskID] = t
	m.tasksMu.Unlock()

	m.log.Debug("Task started", "task", name, "pid", t.PID, "command", t.CommandString())
	m.sendEvent(TaskEvent{TaskID: taskID, TaskName: name, EventType: EventStarted, Status: StatusRunning})

	m.wg.Add(1)
	go m.wait(t)

	return taskID, nil
}

func (m *manager) wait(t *Task) {
	defer m.wg.Done()

	err := t.cmd.Wait()
	code, sig := exitStatus(t.cmd.ProcessState, err)

	t.mu.Lock()
	t.EndTime = time.Now()
	t.ExitCode = code
	t.Signal = sig
	switch {
	case t.Status == StatusCancelled || errors.Is(t.ctx.Err(), context.Canceled):
		t.Status = StatusCancelled
		t.Error = err
	case err != nil:
		t.Status = StatusFailed
		t.Error = err
	default:
		t.Status = StatusSuccess
	}
	event := TaskEvent{
		TaskID:    t.ID,
		TaskName:  t.Name,
		EventType: EventCompleted,
		Status:    t.Status,
		ExitCode:  t.ExitCode,
		Signal:    t.Signal,
		Error:     t.Error,
	}
	t.mu.Unlock()

	m.log.Debug("Task completed", "task", t.Name, "status", event.Status, "exit_code", event.ExitCode)
	m.sendEvent(event)
	t.cancelFunc()
}

// exitStatus follows the shell convention: a child killed by signal N
// reports 128+N.
func exitStatus(state *os.ProcessState, waitErr error) (int, os.Signal) {
	if state == nil {
		return ExitCodeUnknown, nil
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal()), ws.Signal()
	}
	if code := state.ExitCode(); code >= 0 {
		return code, nil
	}
	if waitErr != nil {
		return ExitCodeUnknown, nil
	}
	return 0, nil
}

func (m *manager) sendEvent(event TaskEvent) {
	select {
	case m.eventChan <- event:
	case <-m.stopChan:
	}
}

func (m *manager) lookup(taskID string) (*Task, error) {
	m.tasksMu.RLock()
	t, ok := m.tasks[taskID]
	m.tasksMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrTaskNotFound, "task %q", taskID)
	}
	return t, nil
}

// GetTaskStatus returns a snapshot copy of the task.
func (m *manager) GetTaskStatus(taskID string) (*Task, error) {
	t, err := m.lookup(taskID)
	if err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return &Task{
		ID:           t.ID,
		Name:         t.Name,
		Command:      append([]string(nil), t.Command...),
		PID:          t.PID,
		Status:       t.Status,
		StartTime:    t.StartTime,
		EndTime:      t.EndTime,
		ExitCode:     t.ExitCode,
		Signal:       t.Signal,
		OutputBuffer: bytes.NewBuffer(append([]byte(nil), t.OutputBuffer.Bytes()...)),
		Error:        t.Error,
	}, nil
}

func (m *manager) SendSignalToTask(taskID string, sig os.Signal) error {
	t, err := m.lookup(taskID)
	if err != nil {
		return err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.Status != StatusRunning || t.cmd == nil || t.cmd.Process == nil {
		return errors.Errorf("cannot signal task %q: not running (%s)", taskID, t.Status)
	}
	return t.cmd.Process.Signal(sig)
}

func (m *manager) SignalAll(sig os.Signal) int {
	m.tasksMu.RLock()
	defer m.tasksMu.RUnlock()
	n := 0
	for _, t := range m.tasks {
		t.mu.RLock()
		if t.Status == StatusRunning && t.cmd != nil && t.cmd.Process != nil {
			// The child may have exited between the status check and delivery.
			if err := t.cmd.Process.Signal(sig); err == nil {
				n++
			}
		}
		t.mu.RUnlock()
	}
	return n
}

func (m *manager) CancelTask(taskID string) error {
	t, err := m.lookup(taskID)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status != StatusRunning && t.Status != StatusPending {
		return errors.Errorf("task %q is not in a cancellable state (%s)", taskID, t.Status)
	}
	t.Status = StatusCancelled
	t.cancelFunc()
	return nil
}

// GetRunningTasksSummary lists running tasks as "[name(pid): command]".
func (m *manager) GetRunningTasksSummary() string {
	m.tasksMu.RLock()
	defer m.tasksMu.RUnlock()

	var running []string
	for _, t := range m.tasks {
		t.mu.RLock()
		if t.Status == StatusRunning {
			cmd := t.CommandString()
			if len(cmd) > 40 {
				cmd = cmd[:40] + "..."
			}
			running = append(running, fmt.Sprintf("[%s(%d): %s]", t.Name, t.PID, cmd))
		}
		t.mu.RUnlock()
	}
	if len(running) == 0 {
		return ""
	}
	return "Running Tasks: " + strings.Join(running, ", ")
}

func (m *manager) Wait() {
	m.wg.Wait()
}

// Stop cancels every running task and stops event delivery.
func (m *manager) Stop() error {
	m.tasksMu.RLock()
	for _, t := range m.tasks {
		t.mu.Lock()
		if t.Status == StatusRunning || t.Status == StatusPending {
			t.Status = StatusCancelled
			t.cancelFunc()
		}
		t.mu.Unlock()
	}
	m.tasksMu.RUnlock()
	m.stopOnce.Do(func() { close(m.stopChan) })
	return nil
}

type lockedWriter struct {
	mu *sync.RWMutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
