package commands

import (
	"context"
	"fmt"
	"io"
)

// RefreshCmd implements /refresh.
type RefreshCmd struct {
	Reload func()
}

func (c *RefreshCmd) Name() string        { return "refresh" }
func (c *RefreshCmd) Description() string { return "Reloads the latest report from the memory log." }
func (c *RefreshCmd) Execute(_ context.Context, _ []string, out io.Writer) error {
	if c.Reload != nil {
		c.Reload()
	}
	fmt.Fprintln(out, "Reloading latest report...")
	return nil
}
