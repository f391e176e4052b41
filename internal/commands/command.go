// Package commands holds the slash commands available in the watch TUI.
package commands

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/rafabd1/climatesense/internal/types"
)

var (
	// ErrExit is returned by /exit; the caller ends the session.
	ErrExit = errors.New("exit requested")
	// ErrUnknownCommand is returned for names nothing is registered under.
	ErrUnknownCommand = errors.New("unknown command")
)

// Command defines the interface for executable slash commands.
type Command interface {
	Name() string
	Description() string
	// Execute runs the command, writing output to out.
	Execute(ctx context.Context, args []string, out io.Writer) error
}

// LocationStore reads and writes the monitored location.
type LocationStore interface {
	Location(ctx context.Context, def string) string
	SetLocation(ctx context.Context, location string) error
}

// HistoryReader returns stored runs for a city in file order.
type HistoryReader interface {
	History(ctx context.Context, city string) ([]types.LogEntry, error)
}
