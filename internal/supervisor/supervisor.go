// Package supervisor launches the worker and its companion background jobs,
// waits for the first of them to exit, and relays that exit status.
//
// Nothing is restarted. The first exit ends the supervisor and the outer
// runtime decides what happens next from the exit code.
package supervisor

import (
	"context"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/rafabd1/climatesense/internal/task"
	"github.com/rafabd1/climatesense/pkg/logger"
)

// ExitStartFailure is returned when a process could not be started at all.
const ExitStartFailure = 126

// Process is a command the supervisor launches.
type Process struct {
	Name    string
	Command []string
}

type Config struct {
	// CredentialEnv names the variable that must hold the LLM API key.
	CredentialEnv string
	Worker        Process
	// Background jobs run alongside the worker; any of them exiting first
	// ends the supervisor just like the worker would.
	Background  []Process
	GracePeriod time.Duration
	StopSignal  os.Signal
	Stdout      io.Writer
	Stderr      io.Writer
	Env         []string
}

type Supervisor struct {
	cfg       Config
	log       logger.Logger
	lookupEnv func(string) (string, bool)
	signals   <-chan os.Signal
	started   chan string
}

type Option func(*Supervisor)

func WithLogger(l logger.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.log = l
		}
	}
}

// WithLookupEnv replaces os.LookupEnv for the credential check.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(s *Supervisor) {
		if fn != nil {
			s.lookupEnv = fn
		}
	}
}

// WithSignals forwards every signal received on ch to all running children.
func WithSignals(ch <-chan os.Signal) Option {
	return func(s *Supervisor) {
		s.signals = ch
	}
}

// WithStartedNotifier receives each process name once it is running.
func WithStartedNotifier(ch chan string) Option {
	return func(s *Supervisor) {
		s.started = ch
	}
}

func New(cfg Config, opts ...Option) *Supervisor {
	if cfg.StopSignal == nil {
		cfg.StopSignal = syscall.SIGTERM
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	s := &Supervisor{
		cfg:       cfg,
		log:       logger.GetDefault(),
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "supervisor")
	return s
}

// CheckCredential warns when the credential variable is unset or blank. It
// never fails: the worker is expected to fail on its own if the key is
// really required.
func (s *Supervisor) CheckCredential() bool {
	name := s.cfg.CredentialEnv
	if name == "" {
		return true
	}
	value, ok := s.lookupEnv(name)
	if ok && strings.TrimSpace(value) != "" {
		return true
	}
	s.log.Warn("Credential variable is not set; starting the worker anyway", "variable", name)
	return false
}

// Run starts the worker and background jobs and blocks until the first of
// them exits, returning its exit status. Cancelling ctx asks the children to
// stop; the status of whichever exits first is still what Run returns.
func (s *Supervisor) Run(ctx context.Context) (int, error) {
	s.CheckCredential()

	if len(s.cfg.Worker.Command) == 0 {
		return ExitStartFailure, errors.New("no worker command configured")
	}

	mgr := task.NewManager(
		task.WithStopSignal(s.cfg.StopSignal),
		task.WithGracePeriod(s.cfg.GracePeriod),
		task.WithLogger(s.log),
	)
	childCtx, cancelChildren := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelChildren()
	defer s.teardown(mgr)

	processes := append([]Process{s.cfg.Worker}, s.cfg.Background...)
	for i, p := range processes {
		if _, err := mgr.SubmitTask(childCtx, task.Spec{
			Name:    p.Name,
			Command: p.Command,
			Env:     s.cfg.Env,
			Stdout:  s.cfg.Stdout,
			Stderr:  s.cfg.Stderr,
		}); err != nil {
			s.log.Error("Failed to start process", "process", p.Name, "error", err)
			if i == 0 {
				return ExitStartFailure, errors.Wrap(err, "worker did not start")
			}
			return ExitStartFailure, errors.Wrapf(err, "background process %s did not start", p.Name)
		}
		s.log.Info("Process started", "process", p.Name, "command", strings.Join(p.Command, " "))
		s.notifyStarted(p.Name)
	}

	first, err := s.waitFirstExit(ctx, mgr)
	if err != nil {
		return 1, err
	}

	code := first.ExitCode
	if code == task.ExitCodeUnknown {
		code = 1
	}
	s.log.Info("Process exited", "process", first.TaskName, "exit_code", code, "status", first.Status)
	return code, nil
}

// waitFirstExit is the wait-any step: it returns the first completed event and
// forwards signals to the children while waiting.
func (s *Supervisor) waitFirstExit(ctx context.Context, mgr task.ExecutionManager) (task.TaskEvent, error) {
	done := ctx.Done()
	for {
		select {
		case ev := <-mgr.Events():
			if ev.EventType == task.EventCompleted {
				return ev, nil
			}
		case sig, ok := <-s.signals:
			if !ok {
				s.signals = nil
				continue
			}
			n := mgr.SignalAll(sig)
			s.log.Info("Forwarded signal", "signal", sig.String(), "processes", n)
		case <-done:
			done = nil
			n := mgr.SignalAll(s.cfg.StopSignal)
			s.log.Info("Shutdown requested; stopping children", "signal", s.cfg.StopSignal.String(), "processes", n)
		}
	}
}

func (s *Supervisor) teardown(mgr task.ExecutionManager) {
	if summary := mgr.GetRunningTasksSummary(); summary != "" {
		s.log.Info("Stopping remaining processes", "tasks", summary)
	}
	if err := mgr.Stop(); err != nil {
		s.log.Warn("Failed to stop execution manager", "error", err)
	}
	mgr.Wait()
}

func (s *Supervisor) notifyStarted(name string) {
	if s.started == nil {
		return
	}
	select {
	case s.started <- name:
	default:
	}
}
