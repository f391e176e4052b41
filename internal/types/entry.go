package types

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// LogEntry is one record of memory_log.json.
type LogEntry struct {
	Timestamp       Timestamp       `json:"timestamp"`
	City            string          `json:"city"`
	RiskReport      RiskReport      `json:"risk_report"`
	Recommendations string          `json:"recommendations"`
	AnalyzedNews    string          `json:"analyzed_news"`
	RawData         *CurrentWeather `json:"raw_data,omitempty"`
	ForecastData    *Forecast       `json:"forecast_data"`
}

// Timestamp marshals as RFC 3339 and also accepts the naive ISO-8601 form
// ("2025-11-16T10:00:00.123456") found in older memory files.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// ParseTimestamp tries RFC 3339 first, then naive layouts in local time.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, errors.Errorf("unrecognised timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "timestamp must be a string")
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// CityMain returns the part of a "City,CC" location before the first comma.
func CityMain(location string) string {
	city, _, _ := strings.Cut(location, ",")
	return strings.TrimSpace(city)
}

// SameCity compares locations case-insensitively.
func SameCity(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
