package types

import (
	"strings"
)

// RiskLevel is the coarse hazard classification of current conditions.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskExtreme  RiskLevel = "EXTREME"
	RiskUnknown  RiskLevel = "UNKNOWN"
)

// Ordinal returns 0..3 for known levels and -1 otherwise.
func (r RiskLevel) Ordinal() int {
	switch r {
	case RiskLow:
		return 0
	case RiskModerate:
		return 1
	case RiskHigh:
		return 2
	case RiskExtreme:
		return 3
	default:
		return -1
	}
}

// ParseRiskLevel is case-insensitive; unknown input yields RiskUnknown.
func ParseRiskLevel(s string) RiskLevel {
	level := RiskLevel(strings.ToUpper(strings.TrimSpace(s)))
	if level.Ordinal() < 0 {
		return RiskUnknown
	}
	return level
}

type RiskDetails struct {
	TempC       float64 `json:"temp_c"`
	WindSpeedMS float64 `json:"wind_speed_ms"`
	Description string  `json:"description"`
}

type RiskReport struct {
	RiskLevel RiskLevel   `json:"risk_level"`
	Reasoning string      `json:"reasoning"`
	Trend     string      `json:"trend,omitempty"`
	Details   RiskDetails `json:"details"`
}

// CurrentWeather is the part of the OpenWeatherMap /weather payload that
// ClimateSense consumes and persists.
type CurrentWeather struct {
	Coord   Coord       `json:"coord"`
	Weather []Condition `json:"weather"`
	Main    MainReading `json:"main"`
	Wind    Wind        `json:"wind"`
	Sys     Sys         `json:"sys"`
	Name    string      `json:"name,omitempty"`
	Dt      int64       `json:"dt,omitempty"`
}

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Condition struct {
	ID          int    `json:"id,omitempty"`
	Main        string `json:"main,omitempty"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type MainReading struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Pressure  float64 `json:"pressure,omitempty"`
	Humidity  float64 `json:"humidity"`
}

type Wind struct {
	Speed float64 `json:"speed"`
	Deg   float64 `json:"deg,omitempty"`
}

type Sys struct {
	Country string `json:"country,omitempty"`
	Sunrise int64  `json:"sunrise,omitempty"`
	Sunset  int64  `json:"sunset,omitempty"`
}

// Description returns the first condition's description, or "unknown".
func (w *CurrentWeather) Description() string {
	if w == nil || len(w.Weather) == 0 || w.Weather[0].Description == "" {
		return "unknown"
	}
	return w.Weather[0].Description
}

// Icon returns the first condition's icon code, or "".
func (w *CurrentWeather) Icon() string {
	if w == nil || len(w.Weather) == 0 {
		return ""
	}
	return w.Weather[0].Icon
}

// DailyForecast is one calendar day folded from 3-hour forecast slots.
type DailyForecast struct {
	Dt      int64   `json:"dt"`
	TempMin float64 `json:"temp_min"`
	TempMax float64 `json:"temp_max"`
	Icon    string  `json:"icon"`
	Pop     float64 `json:"pop"`
}

type Forecast struct {
	Daily []DailyForecast `json:"daily"`
}
