// Package tui implements `climatesense watch`, a terminal view of the latest
// report with slash commands for steering the agent.
package tui

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/rafabd1/climatesense/internal/agent"
	"github.com/rafabd1/climatesense/internal/commands"
	"github.com/rafabd1/climatesense/internal/memory"
	"github.com/rafabd1/climatesense/internal/types"
	"github.com/rafabd1/climatesense/pkg/events"
)

// ReportStore is the memory log as the TUI sees it.
type ReportStore interface {
	commands.HistoryReader
	Latest(ctx context.Context, city string) (*types.LogEntry, error)
}

type Config struct {
	DefaultLocation string
	MemoryFile      string
	RefreshInterval time.Duration
}

type Model struct {
	ctx      context.Context
	cfg      Config
	control  commands.LocationStore
	reports  ReportStore
	registry *commands.Registry
	reload   chan struct{}

	viewport viewport.Model
	textarea textarea.Model
	ready    bool

	location string
	report   string
	loadedAt time.Time
	messages []string

	senderStyle lipgloss.Style
	outputStyle lipgloss.Style
	errorStyle  lipgloss.Style
	helpStyle   lipgloss.Style
	titleStyle  lipgloss.Style
}

// New builds the model and its command registry.
func New(ctx context.Context, cfg Config, control commands.LocationStore, reports ReportStore) *Model {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 30 * time.Second
	}
	if cfg.MemoryFile == "" {
		cfg.MemoryFile = "memory_log.json"
	}

	ta := textarea.New()
	ta.Placeholder = "Type a command, e.g. /help"
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 280
	ta.SetWidth(50)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	m := &Model{
		ctx:         ctx,
		cfg:         cfg,
		control:     control,
		reports:     reports,
		registry:    commands.NewRegistry(),
		reload:      make(chan struct{}, 1),
		textarea:    ta,
		location:    cfg.DefaultLocation,
		report:      "Loading latest report...",
		messages:    []string{"Welcome to ClimateSense! Type /help for commands."},
		senderStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
		outputStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		errorStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		helpStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		titleStyle:  lipgloss.NewStyle().Bold(true),
	}

	for _, cmd := range []commands.Command{
		&commands.LocationCmd{Store: control, DefaultLocation: cfg.DefaultLocation},
		&commands.RefreshCmd{Reload: m.RequestReload},
		&commands.HistoryCmd{Store: control, Reports: reports, DefaultLocation: cfg.DefaultLocation},
		&commands.HelpCmd{Registry: m.registry},
		&commands.ExitCmd{},
	} {
		// Names are fixed above and cannot collide.
		_ = m.registry.Register(cmd)
	}
	return m
}

// RequestReload schedules an immediate report reload.
func (m *Model) RequestReload() {
	select {
	case m.reload <- struct{}{}:
	default:
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.loadReport(), m.tick(), m.waitReload())
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.cfg.RefreshInterval, func(time.Time) tea.Msg { return events.TickMsg{} })
}

func (m *Model) waitReload() tea.Cmd {
	ctx, reload := m.ctx, m.reload
	return func() tea.Msg {
		select {
		case <-reload:
			return events.ReloadMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Model) loadReport() tea.Cmd {
	ctx, control, reports, def := m.ctx, m.control, m.reports, m.cfg.DefaultLocation
	return func() tea.Msg {
		loc := control.Location(ctx, def)
		entry, err := reports.Latest(ctx, loc)
		return events.ReportMsg{Location: loc, Entry: entry, Err: err, LoadedAt: time.Now()}
	}
}

func (m *Model) runCommand(line string) tea.Cmd {
	ctx, registry := m.ctx, m.registry
	return func() tea.Msg {
		var out bytes.Buffer
		err := registry.Dispatch(ctx, line, &out)
		return events.CommandOutputMsg{Command: line, Content: strings.TrimRight(out.String(), "\n"), Err: err}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		vpCmd tea.Cmd
		taCmd tea.Cmd
	)
	m.viewport, vpCmd = m.viewport.Update(msg)
	m.textarea, taCmd = m.textarea.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if input == "" {
				break
			}
			m.appendMessage(m.senderStyle.Render("> ") + input)
			if !commands.IsCommand(input) {
				m.appendMessage(m.helpStyle.Render("Commands start with '/'. Type /help for a list."))
				break
			}
			return m, m.runCommand(input)
		}

	case tea.WindowSizeMsg:
		headerHeight := lipgloss.Height(m.headerView())
		footerHeight := lipgloss.Height(m.footerView())
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.textarea.SetWidth(msg.Width)
		m.refreshContent()

	case events.ReportMsg:
		m.location = msg.Location
		m.loadedAt = msg.LoadedAt
		m.report = m.renderReport(msg)
		m.refreshContent()
		return m, nil

	case events.TickMsg:
		return m, tea.Batch(m.loadReport(), m.tick())

	case events.ReloadMsg:
		return m, tea.Batch(m.loadReport(), m.waitReload())

	case events.CommandOutputMsg:
		if errors.Is(msg.Err, commands.ErrExit) {
			return m, tea.Quit
		}
		if msg.Content != "" {
			m.appendMessage(m.outputStyle.Render(msg.Content))
		}
		if msg.Err != nil {
			m.appendMessage(m.errorStyle.Render("Error executing command: " + msg.Err.Error()))
		}
		return m, m.loadReport()
	}

	return m, tea.Batch(vpCmd, taCmd)
}

func (m *Model) renderReport(msg events.ReportMsg) string {
	switch {
	case errors.Is(msg.Err, memory.ErrNotFound):
		return m.errorStyle.Render(fmt.Sprintf("Error: '%s' not found.", m.cfg.MemoryFile)) + "\n" +
			m.helpStyle.Render("Please start the agent and wait for it to complete one cycle.")
	case errors.Is(msg.Err, memory.ErrNoEntries):
		return m.helpStyle.Render(fmt.Sprintf("No data found for '%s' in the log file. Waiting for the agent's next run.", msg.Location))
	case msg.Err != nil:
		return m.errorStyle.Render("Error loading data: " + msg.Err.Error())
	case msg.Entry == nil:
		return m.helpStyle.Render("No report available.")
	}
	var sb strings.Builder
	b := &agent.Broadcaster{Out: &sb}
	b.Broadcast(msg.Entry, msg.Entry.Timestamp.Local())
	return strings.Trim(sb.String(), "\n")
}

func (m *Model) appendMessage(s string) {
	m.messages = append(m.messages, s)
	m.refreshContent()
}

func (m *Model) content() string {
	return m.report + "\n\n" + strings.Join(m.messages, "\n")
}

func (m *Model) refreshContent() {
	m.viewport.SetContent(m.content())
	m.viewport.GotoBottom()
}

func (m *Model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}
	return fmt.Sprintf("%s\n%s\n%s", m.headerView(), m.viewport.View(), m.footerView())
}

func (m *Model) headerView() string {
	title := m.titleStyle.Render("ClimateSense Watch: " + m.location)
	if !m.loadedAt.IsZero() {
		title += m.helpStyle.Render("  (updated " + m.loadedAt.Format("15:04:05") + ")")
	}
	line := strings.Repeat("─", max(m.viewport.Width, 0))
	return lipgloss.JoinVertical(lipgloss.Left, title, line)
}

func (m *Model) footerView() string {
	return m.textarea.View()
}

// Run starts the program and blocks until the user leaves or ctx ends.
func Run(ctx context.Context, cfg Config, control commands.LocationStore, reports ReportStore) error {
	m := New(ctx, cfg, control, reports)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "watch view failed")
	}
	return nil
}
