// Package events defines the messages exchanged with the watch TUI.
package events

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rafabd1/climatesense/internal/types"
)

// ReportMsg carries the latest report for the monitored location.
type ReportMsg struct {
	Location string
	Entry    *types.LogEntry
	Err      error
	LoadedAt time.Time
}

// CommandOutputMsg carries what a slash command printed.
type CommandOutputMsg struct {
	Command string
	Content string
	Err     error
}

// TickMsg fires on the periodic refresh.
type TickMsg struct{}

// ReloadMsg asks for an immediate refresh.
type ReloadMsg struct{}

var (
	_ tea.Msg = ReportMsg{}
	_ tea.Msg = CommandOutputMsg{}
	_ tea.Msg = TickMsg{}
	_ tea.Msg = ReloadMsg{}
)
