package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// LocationCmd implements /location [City,CC].
type LocationCmd struct {
	Store           LocationStore
	DefaultLocation string
}

func (c *LocationCmd) Name() string { return "location" }
func (c *LocationCmd) Description() string {
	return "Shows or changes the monitored location. Usage: /location [City,CC]"
}

func (c *LocationCmd) Execute(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintf(out, "Monitoring %s\n", c.Store.Location(ctx, c.DefaultLocation))
		return nil
	}
	loc := strings.TrimSpace(strings.Join(args, " "))
	if err := c.Store.SetLocation(ctx, loc); err != nil {
		return errors.Wrap(err, "failed to update location")
	}
	fmt.Fprintf(out, "Location set to %s. The agent picks it up on its next run.\n", loc)
	return nil
}
