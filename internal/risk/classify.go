// Package risk turns current conditions into a coarse risk level.
package risk

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rafabd1/climatesense/internal/types"
)

const (
	highWind    = 15.0
	extremeWind = 20.0
)

// Classify applies the rules in order; the first match decides the level.
func Classify(w *types.CurrentWeather) types.RiskReport {
	description := w.Description()
	var wind, temp float64
	if w != nil {
		wind = w.Wind.Speed
		temp = w.Main.Temp
	}

	report := types.RiskReport{
		RiskLevel: types.RiskLow,
		Reasoning: "Conditions are calm.",
		Details: types.RiskDetails{
			TempC:       temp,
			WindSpeedMS: wind,
			Description: description,
		},
	}

	desc := strings.ToLower(description)
	rain := strings.Contains(desc, "rain")
	switch {
	case strings.Contains(desc, "thunderstorm") || strings.Contains(desc, "squalls"):
		report.RiskLevel = types.RiskHigh
		report.Reasoning = "Active thunderstorm or squalls reported."
	case rain && wind > highWind:
		report.RiskLevel = types.RiskHigh
		report.Reasoning = fmt.Sprintf("Heavy rain combined with high wind speed (%s m/s).", formatSpeed(wind))
	case rain:
		report.RiskLevel = types.RiskModerate
		report.Reasoning = "Rain reported. Monitor conditions."
	case wind > extremeWind:
		report.RiskLevel = types.RiskHigh
		report.Reasoning = fmt.Sprintf("Extreme wind speed (%s m/s) detected.", formatSpeed(wind))
	case wind > highWind:
		report.RiskLevel = types.RiskModerate
		report.Reasoning = fmt.Sprintf("High wind speed (%s m/s) detected.", formatSpeed(wind))
	}
	return report
}

func formatSpeed(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
