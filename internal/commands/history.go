package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/rafabd1/climatesense/internal/memory"
	"github.com/rafabd1/climatesense/pkg/utils"
)

const defaultHistoryLimit = 5

// HistoryCmd implements /history [n].
type HistoryCmd struct {
	Store           LocationStore
	Reports         HistoryReader
	DefaultLocation string
}

func (c *HistoryCmd) Name() string { return "history" }
func (c *HistoryCmd) Description() string {
	return "Lists recent runs for the monitored location. Usage: /history [n]"
}

func (c *HistoryCmd) Execute(ctx context.Context, args []string, out io.Writer) error {
	limit := defaultHistoryLimit
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return errors.Errorf("invalid count %q", args[0])
		}
		limit = n
	}

	city := c.Store.Location(ctx, c.DefaultLocation)
	entries, err := c.Reports.History(ctx, city)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(out, "No runs recorded for %s yet.\n", city)
		return nil
	}
	memory.SortNewestFirst(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	fmt.Fprintf(out, "Last %d run(s) for %s:\n", len(entries), city)
	for _, e := range entries {
		fmt.Fprintf(out, "  %s  %-8s %s\n",
			e.Timestamp.Local().Format(time.DateTime),
			e.RiskReport.RiskLevel,
			utils.Truncate(e.RiskReport.Reasoning, 60))
	}
	return nil
}
