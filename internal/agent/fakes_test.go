package agent

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/rafabd1/climatesense/internal/notify"
	"github.com/rafabd1/climatesense/internal/types"
	"github.com/rafabd1/climatesense/pkg/search"
)

// fakeLLM returns a fixed answer and records every prompt.
type fakeLLM struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string
}

func (f *fakeLLM) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

type fakeHistory struct {
	entries []types.LogEntry
	err     error
}

func (f *fakeHistory) History(_ context.Context, city string) ([]types.LogEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []types.LogEntry
	for _, e := range f.entries {
		if types.SameCity(e.City, city) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeWeather struct {
	current     *types.CurrentWeather
	currentErr  error
	forecast    *types.Forecast
	forecastErr error
}

func (f *fakeWeather) Current(context.Context, string) (*types.CurrentWeather, error) {
	return f.current, f.currentErr
}

func (f *fakeWeather) Forecast(context.Context, string) (*types.Forecast, error) {
	return f.forecast, f.forecastErr
}

type fakeSearcher struct {
	results []search.Result
	err     error
	queries []search.Query
}

func (f *fakeSearcher) Search(_ context.Context, q search.Query) ([]search.Result, error) {
	f.queries = append(f.queries, q)
	return f.results, f.err
}

type fakeControl struct{ location string }

func (f *fakeControl) Location(_ context.Context, def string) string {
	if f.location == "" {
		return def
	}
	return f.location
}

type fakeMemory struct {
	mu      sync.Mutex
	entries []types.LogEntry
}

func (f *fakeMemory) Append(_ context.Context, e types.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeMemory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeSender struct {
	err  error
	sent []notify.Message
}

func (f *fakeSender) Send(_ context.Context, msg notify.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func weatherWith(description string, wind, temp float64) *types.CurrentWeather {
	w := &types.CurrentWeather{Weather: []types.Condition{{Description: description, Icon: "10d"}}}
	w.Wind.Speed = wind
	w.Main.Temp = temp
	return w
}

var errLLM = errors.New("quota exceeded")
