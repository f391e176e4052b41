package commands

import (
	"context"
	"fmt"
	"io"
)

// HelpCmd implements /help.
type HelpCmd struct {
	Registry *Registry
}

func (c *HelpCmd) Name() string        { return "help" }
func (c *HelpCmd) Description() string { return "Shows available commands and descriptions." }
func (c *HelpCmd) Execute(_ context.Context, _ []string, out io.Writer) error {
	fmt.Fprintln(out, "Available commands:")
	for _, cmd := range c.Registry.GetAll() {
		fmt.Fprintf(out, "  /%-10s %s\n", cmd.Name(), cmd.Description())
	}
	return nil
}
