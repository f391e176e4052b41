package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafabd1/climatesense/internal/types"
)

func entry(city string, level types.RiskLevel, at time.Time) types.LogEntry {
	return types.LogEntry{
		Timestamp:  types.NewTimestamp(at),
		City:       city,
		RiskReport: types.RiskReport{RiskLevel: level, Reasoning: string(level)},
	}
}

func TestStore_Append(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Should create the file and append in order", func(t *testing.T) {
		s := NewStore(filepath.Join(t.TempDir(), "memory_log.json"))
		require.NoError(t, s.Append(ctx, entry("Kochi,IN", types.RiskLow, base)))
		require.NoError(t, s.Append(ctx, entry("Kochi,IN", types.RiskHigh, base.Add(time.Hour))))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, types.RiskLow, got[0].RiskReport.RiskLevel)
		assert.Equal(t, types.RiskHigh, got[1].RiskReport.RiskLevel)
	})

	t.Run("Should indent the file with four spaces", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "memory_log.json")
		s := NewStore(path)
		require.NoError(t, s.Append(ctx, entry("Kochi,IN", types.RiskLow, base)))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "\n    {\n        \"timestamp\"")
	})

	t.Run("Should start a new log when the file is corrupt", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "memory_log.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		s := NewStore(path)

		require.NoError(t, s.Append(ctx, entry("Kochi,IN", types.RiskModerate, base)))
		got, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, types.RiskModerate, got[0].RiskReport.RiskLevel)
	})

	t.Run("Should rewrite the existing file in place", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "memory_log.json")
		require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))
		before, err := os.Stat(path)
		require.NoError(t, err)

		require.NoError(t, NewStore(path).Append(ctx, entry("Kochi,IN", types.RiskLow, base)))

		after, err := os.Stat(path)
		require.NoError(t, err)
		assert.True(t, os.SameFile(before, after), "memory file was replaced instead of rewritten")
		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), ".tmp")
		}
	})

	t.Run("Should keep fields it does not model on earlier entries", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "memory_log.json")
		old := `[{"timestamp":"2025-03-01T09:00:00Z","city":"Kochi,IN","risk_report":{"risk_level":"LOW"},` +
			`"raw_data":{"visibility":10000,"clouds":{"all":75},"timezone":19800,"wind":{"speed":3.1,"gust":7.2}}}]`
		require.NoError(t, os.WriteFile(path, []byte(old), 0o644))

		require.NoError(t, NewStore(path).Append(ctx, entry("Kochi,IN", types.RiskHigh, base)))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var raw []map[string]any
		require.NoError(t, json.Unmarshal(data, &raw))
		require.Len(t, raw, 2)
		rawData, ok := raw[0]["raw_data"].(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 10000, rawData["visibility"])
		assert.EqualValues(t, 19800, rawData["timezone"])
		assert.Equal(t, map[string]any{"all": float64(75)}, rawData["clouds"])
		assert.EqualValues(t, 7.2, rawData["wind"].(map[string]any)["gust"])
		assert.Equal(t, "HIGH", raw[1]["risk_report"].(map[string]any)["risk_level"])
	})

	t.Run("Should not drop history over an entry with unexpected types", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "memory_log.json")
		old := `[{"timestamp":"2025-03-01T08:00:00Z","city":"Kochi,IN"},` +
			`{"timestamp":"2025-03-01T09:00:00Z","city":"Kochi,IN","raw_data":{"main":{"humidity":"80"}}}]`
		require.NoError(t, os.WriteFile(path, []byte(old), 0o644))

		require.NoError(t, NewStore(path).Append(ctx, entry("Kochi,IN", types.RiskLow, base)))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var raw []json.RawMessage
		require.NoError(t, json.Unmarshal(data, &raw))
		assert.Len(t, raw, 3)
		assert.Contains(t, string(raw[1]), `"humidity": "80"`)
	})

	t.Run("Should start a new log when the file is not an array", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "memory_log.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"city":"Kochi,IN"}`), 0o644))

		require.NoError(t, NewStore(path).Append(ctx, entry("Kochi,IN", types.RiskLow, base)))
		got, err := NewStore(path).Load(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("Should return read errors instead of resetting the log", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "memory_log.json")
		require.NoError(t, os.Mkdir(path, 0o755))

		err := NewStore(path).Append(ctx, entry("Kochi,IN", types.RiskLow, base))
		require.Error(t, err)
		info, statErr := os.Stat(path)
		require.NoError(t, statErr)
		assert.True(t, info.IsDir())
	})

	t.Run("Should keep every entry under concurrent appends", func(t *testing.T) {
		s := NewStore(filepath.Join(t.TempDir(), "memory_log.json"))
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.Append(ctx, entry("Kochi,IN", types.RiskLow, base.Add(time.Duration(i)*time.Minute))))
			}()
		}
		wg.Wait()

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 8)
	})
}

func TestStore_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("Should report a missing file", func(t *testing.T) {
		s := NewStore(filepath.Join(t.TempDir(), "missing.json"))
		_, err := s.Load(ctx)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Should fail on a corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "memory_log.json")
		require.NoError(t, os.WriteFile(path, []byte("[{"), 0o644))
		_, err := NewStore(path).Load(ctx)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("Should read files written by older loops", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "memory_log.json")
		raw := []map[string]any{{
			"timestamp":       "2025-11-16T10:30:00.123456",
			"city":            "Kerala,IN",
			"risk_report":     map[string]any{"risk_level": "MODERATE", "reasoning": "Rain reported. Monitor conditions.", "trend": "No trend data available.", "details": map[string]any{"temp_c": 26.1, "wind_speed_ms": 3.2, "description": "light rain"}},
			"recommendations": "- Carry an umbrella",
			"analyzed_news":   "No relevant local safety news found.",
			"forecast_data":   map[string]any{"error": "timeout"},
		}}
		data, err := json.Marshal(raw)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0o644))

		got, err := NewStore(path).Load(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "light rain", got[0].RiskReport.Details.Description)
		assert.Empty(t, got[0].ForecastData.Daily)
	})
}

func TestStore_History(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Should filter cities case-insensitively and find the latest", func(t *testing.T) {
		s := NewStore(filepath.Join(t.TempDir(), "memory_log.json"))
		require.NoError(t, s.Append(ctx, entry("Kochi,IN", types.RiskLow, base.Add(2*time.Hour))))
		require.NoError(t, s.Append(ctx, entry("London,GB", types.RiskHigh, base.Add(3*time.Hour))))
		require.NoError(t, s.Append(ctx, entry("kochi,in", types.RiskModerate, base.Add(time.Hour))))

		history, err := s.History(ctx, "KOCHI,IN")
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, types.RiskLow, history[0].RiskReport.RiskLevel)

		latest, err := s.Latest(ctx, "Kochi,IN")
		require.NoError(t, err)
		assert.Equal(t, types.RiskLow, latest.RiskReport.RiskLevel)

		_, err = s.Latest(ctx, "Paris,FR")
		assert.ErrorIs(t, err, ErrNoEntries)
	})
}
