package dashboard

import (
	"math"
	"strconv"
	"time"
)

var weatherIcons = map[string]string{
	"01d": "☀️", "01n": "🌙",
	"02d": "⛅", "02n": "☁️",
	"03d": "☁️", "03n": "☁️",
	"04d": "☁️", "04n": "☁️",
	"09d": "🌧️", "09n": "🌧️",
	"10d": "🌦️", "10n": "🌧️",
	"11d": "⛈️", "11n": "⛈️",
	"13d": "❄️", "13n": "❄️",
	"50d": "🌫️", "50n": "🌫️",
}

// WeatherIcon maps an OpenWeatherMap icon code to an emoji.
func WeatherIcon(code string) string {
	if icon, ok := weatherIcons[code]; ok {
		return icon
	}
	return "🤷"
}

func formatUnix(ts int64, loc *time.Location, layout string) string {
	if ts == 0 {
		return "N/A"
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(ts, 0).In(loc).Format(layout)
}

// FormatTime renders a Unix timestamp as "03:04 PM".
func FormatTime(ts int64, loc *time.Location) string {
	return formatUnix(ts, loc, "03:04 PM")
}

// FormatDay renders a Unix timestamp as "Mon, Jan 02".
func FormatDay(ts int64, loc *time.Location) string {
	return formatUnix(ts, loc, "Mon, Jan 02")
}

// FormatHour renders a Unix timestamp as "03 PM".
func FormatHour(ts int64, loc *time.Location) string {
	return formatUnix(ts, loc, "03 PM")
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatRounded(v float64) string {
	return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(math.Round(p*100), 'f', 0, 64) + "%"
}
