package commands

import (
	"context"
	"io"
)

// ExitCmd implements /exit.
type ExitCmd struct{}

func (c *ExitCmd) Name() string        { return "exit" }
func (c *ExitCmd) Description() string { return "Leaves the watch view." }
func (c *ExitCmd) Execute(context.Context, []string, io.Writer) error {
	return ErrExit
}
