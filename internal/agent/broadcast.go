package agent

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rafabd1/climatesense/internal/types"
)

var (
	rule = strings.Repeat("=", 40)

	bannerTitleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle       = lipgloss.NewStyle().Bold(true)
	levelStyles      = map[types.RiskLevel]lipgloss.Style{
		types.RiskLow:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		types.RiskModerate: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
		types.RiskHigh:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		types.RiskExtreme:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")),
	}
)

// Broadcaster prints the community alert banner and news digest.
type Broadcaster struct {
	Out io.Writer
}

func (b *Broadcaster) Broadcast(entry *types.LogEntry, now time.Time) {
	if b == nil || b.Out == nil {
		return
	}
	rr := entry.RiskReport
	level := string(rr.RiskLevel)
	if style, ok := levelStyles[rr.RiskLevel]; ok {
		level = style.Render(level)
	}
	trend := rr.Trend
	if trend == "" {
		trend = notAvailable
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n%s\n", rule)
	fmt.Fprintf(&sb, "%s\n", bannerTitleStyle.Render("🚨 CLIMATE-SENSE COMMUNITY ALERT 🚨"))
	fmt.Fprintf(&sb, "       TIME: %s\n", now.Format(time.DateTime))
	fmt.Fprintf(&sb, "%s\n\n", rule)
	fmt.Fprintf(&sb, "%s %s\n", labelStyle.Render("LOCATION:"), entry.City)
	fmt.Fprintf(&sb, "%s %s\n", labelStyle.Render("RISK LEVEL:"), level)
	fmt.Fprintf(&sb, "%s %s\n", labelStyle.Render("REASON:"), rr.Reasoning)
	fmt.Fprintf(&sb, "%s %s\n", labelStyle.Render("TREND:"), trend)
	fmt.Fprintf(&sb, "%s %s\n", labelStyle.Render("DETAILS:"), FormatDetails(rr.Details))
	fmt.Fprintf(&sb, "\n--- RECOMMENDED ACTIONS ---\n%s\n", entry.Recommendations)
	fmt.Fprintf(&sb, "\n%s\n", rule)
	fmt.Fprintf(&sb, "\n--- LATEST NEWS ANALYSIS ---\n%s\n", entry.AnalyzedNews)
	fmt.Fprintf(&sb, "%s\n\n", rule)

	_, _ = io.WriteString(b.Out, sb.String())
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
