package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafabd1/climatesense/internal/memory"
	"github.com/rafabd1/climatesense/internal/types"
	"github.com/rafabd1/climatesense/pkg/events"
)

type fakeControl struct {
	location string
}

func (f *fakeControl) Location(_ context.Context, def string) string {
	if f.location == "" {
		return def
	}
	return f.location
}

func (f *fakeControl) SetLocation(_ context.Context, loc string) error {
	f.location = loc
	return nil
}

type fakeReports struct {
	entries []types.LogEntry
	err     error
}

func (f *fakeReports) History(_ context.Context, city string) ([]types.LogEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return memory.FilterCity(f.entries, city), nil
}

func (f *fakeReports) Latest(ctx context.Context, city string) (*types.LogEntry, error) {
	history, err := f.History(ctx, city)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, errors.Wrapf(memory.ErrNoEntries, "%q", city)
	}
	memory.SortNewestFirst(history)
	return &history[0], nil
}

func newTestModel(reports *fakeReports) (*Model, *fakeControl) {
	control := &fakeControl{}
	m := New(context.Background(), Config{DefaultLocation: "Kochi,IN", RefreshInterval: time.Hour}, control, reports)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, control
}

func enter(t *testing.T, m *Model, line string) tea.Cmd {
	t.Helper()
	m.textarea.SetValue(line)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func TestModel_Report(t *testing.T) {
	t.Run("Should render the latest report", func(t *testing.T) {
		reports := &fakeReports{entries: []types.LogEntry{{
			Timestamp:       types.NewTimestamp(time.Now()),
			City:            "Kochi,IN",
			RiskReport:      types.RiskReport{RiskLevel: types.RiskHigh, Reasoning: "Extreme heat"},
			Recommendations: "Stay indoors.",
		}}}
		m, _ := newTestModel(reports)

		msg := m.loadReport()()
		m.Update(msg)

		assert.Contains(t, m.content(), "Extreme heat")
		assert.Contains(t, m.content(), "Stay indoors.")
		assert.Contains(t, m.View(), "ClimateSense Watch: Kochi,IN")
	})

	t.Run("Should explain a missing memory file", func(t *testing.T) {
		m, _ := newTestModel(&fakeReports{err: memory.ErrNotFound})
		m.Update(m.loadReport()())
		assert.Contains(t, m.content(), "'memory_log.json' not found")
	})

	t.Run("Should explain a city without data", func(t *testing.T) {
		m, _ := newTestModel(&fakeReports{})
		m.Update(m.loadReport()())
		assert.Contains(t, m.content(), "No data found for 'Kochi,IN'")
	})
}

func TestModel_Commands(t *testing.T) {
	t.Run("Should run slash commands and reload afterwards", func(t *testing.T) {
		m, control := newTestModel(&fakeReports{})

		cmd := enter(t, m, "/location London,GB")
		require.NotNil(t, cmd)
		out, ok := cmd().(events.CommandOutputMsg)
		require.True(t, ok)
		assert.Equal(t, "London,GB", control.location)

		_, next := m.Update(out)
		assert.Contains(t, m.content(), "Location set to London,GB")
		require.NotNil(t, next)
		report, ok := next().(events.ReportMsg)
		require.True(t, ok)
		assert.Equal(t, "London,GB", report.Location)
	})

	t.Run("Should show command errors", func(t *testing.T) {
		m, _ := newTestModel(&fakeReports{})
		out := enter(t, m, "/bogus")()
		m.Update(out)
		assert.Contains(t, m.content(), "Error executing command")
	})

	t.Run("Should hint when input is not a command", func(t *testing.T) {
		m, _ := newTestModel(&fakeReports{})
		enter(t, m, "hello")
		assert.Contains(t, m.content(), "Commands start with '/'")
	})

	t.Run("Should quit on /exit", func(t *testing.T) {
		m, _ := newTestModel(&fakeReports{})
		out := enter(t, m, "/exit")()
		_, cmd := m.Update(out)
		require.NotNil(t, cmd)
		_, quit := cmd().(tea.QuitMsg)
		assert.True(t, quit)
	})

	t.Run("Should queue a reload on /refresh", func(t *testing.T) {
		m, _ := newTestModel(&fakeReports{})
		m.Update(enter(t, m, "/refresh")())

		msg := m.waitReload()()
		assert.IsType(t, events.ReloadMsg{}, msg)
	})
}
