package commands

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Registry holds the registered slash commands.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
	}
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := cmd.Name()
	if _, exists := r.commands[name]; exists {
		return errors.Errorf("command '%s' already registered", name)
	}
	r.commands[name] = cmd
	return nil
}

func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, exists := r.commands[name]
	return cmd, exists
}

// GetAll returns all registered commands sorted by name.
func (r *Registry) GetAll() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmds := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name() < cmds[j].Name() })
	return cmds
}

// IsCommand reports whether line is a slash command.
func IsCommand(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "/")
}

// Dispatch parses "/name arg..." and runs the matching command.
func (r *Registry) Dispatch(ctx context.Context, line string, out io.Writer) error {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(fields) == 0 {
		return errors.Wrap(ErrUnknownCommand, "empty command")
	}
	name := strings.ToLower(fields[0])
	cmd, ok := r.Get(name)
	if !ok {
		return errors.Wrapf(ErrUnknownCommand, "/%s", name)
	}
	return cmd.Execute(ctx, fields[1:], out)
}
