package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/rafabd1/climatesense/internal/types"
)

const forecastDays = 5

type notice struct {
	Level string
	Text  string
}

type forecastCard struct {
	Day  string
	Icon string
	Max  string
	Min  string
	Pop  string
}

type newsItem struct {
	Headline string
	Summary  string
	Text     string
}

type historyRow struct {
	Timestamp       string
	City            string
	RiskLevel       string
	Reason          string
	Trend           string
	Recommendations string
	News            string
}

type pageData struct {
	Location string
	Title    string
	LoadedAt string
	Flash    string
	Notices  []notice

	HasData   bool
	RiskLevel string
	RiskClass string
	Reason    string
	Trend     string
	Icon      string

	Temperature string
	FeelsLike   string
	Wind        string
	Humidity    string
	Description string

	Country   string
	Sunrise   string
	Sunset    string
	Latitude  string
	Longitude string

	Recommendations string
	NewsWarning     string
	News            []newsItem
	Forecast        []forecastCard
	ForecastNotice  string
	History         []historyRow
}

func buildPage(snap *Snapshot, memoryFile string, nextRun time.Duration, loc *time.Location, now time.Time) pageData {
	page := pageData{
		Location: snap.Location,
		Title:    snap.Location,
		LoadedAt: now.In(loc).Format("15:04:05"),
	}

	if snap.Latest == nil {
		switch {
		case snap.FileMissing:
			page.Notices = []notice{
				{"error", fmt.Sprintf("Error: '%s' not found.", memoryFile)},
				{"info", "Please start the agent and wait for it to complete one cycle."},
				{"warning", "Also check the agent's output to ensure there are no errors (like invalid API keys)."},
			}
		case snap.Err != nil:
			page.Notices = []notice{{"error", "Error loading data: " + snap.Err.Error()}}
		default:
			page.Notices = []notice{
				{"warning", fmt.Sprintf("No data found for '%s' in the log file.", snap.Location)},
				{"info", fmt.Sprintf("The backend is set to process this location. Please wait for its next run (this can be up to %d minutes) and then click 'Refresh Data'.", int(nextRun.Minutes()))},
			}
		}
		return page
	}

	e := snap.Latest
	rr := e.RiskReport
	page.HasData = true
	if e.City != "" {
		page.Title = e.City
	}
	page.RiskLevel = string(rr.RiskLevel)
	if page.RiskLevel == "" {
		page.RiskLevel = string(types.RiskUnknown)
	}
	page.RiskClass = strings.ToLower(page.RiskLevel)
	page.Reason = orNA(rr.Reasoning)
	page.Trend = orNA(rr.Trend)
	page.Temperature = formatNumber(rr.Details.TempC) + " °C"
	page.Wind = formatNumber(rr.Details.WindSpeedMS) + " m/s"
	page.Description = orNA(rr.Details.Description)
	page.Recommendations = e.Recommendations
	if page.Recommendations == "" {
		page.Recommendations = "No actions required."
	}

	page.FeelsLike, page.Humidity = "N/A", "N/A"
	page.Country, page.Latitude, page.Longitude = "N/A", "N/A", "N/A"
	page.Sunrise, page.Sunset = "N/A", "N/A"
	page.Icon = WeatherIcon("")
	if raw := e.RawData; raw != nil {
		page.Icon = WeatherIcon(raw.Icon())
		page.FeelsLike = formatNumber(raw.Main.FeelsLike) + " °C"
		page.Humidity = formatNumber(raw.Main.Humidity) + "%"
		page.Country = orNA(raw.Sys.Country)
		page.Sunrise = FormatTime(raw.Sys.Sunrise, loc)
		page.Sunset = FormatTime(raw.Sys.Sunset, loc)
		page.Latitude = formatNumber(raw.Coord.Lat)
		page.Longitude = formatNumber(raw.Coord.Lon)
	}

	page.NewsWarning, page.News = newsSection(e.AnalyzedNews)
	page.Forecast, page.ForecastNotice = forecastSection(e.ForecastData, loc)

	for _, h := range snap.History {
		page.History = append(page.History, historyRow{
			Timestamp:       h.Timestamp.In(loc).Format(time.DateTime),
			City:            h.City,
			RiskLevel:       orNA(string(h.RiskReport.RiskLevel)),
			Reason:          orNA(h.RiskReport.Reasoning),
			Trend:           orNA(h.RiskReport.Trend),
			Recommendations: h.Recommendations,
			News:            h.AnalyzedNews,
		})
	}
	return page
}

func newsSection(news string) (string, []newsItem) {
	if news == "" {
		news = "No relevant local safety news found."
	}
	if strings.Contains(news, "No relevant") || strings.Contains(news, "Error analyzing") {
		return news, nil
	}
	var items []newsItem
	for _, line := range strings.Split(news, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if headline, summary, ok := strings.Cut(line, ":"); ok {
			items = append(items, newsItem{Headline: strings.TrimSpace(headline), Summary: strings.TrimSpace(summary)})
			continue
		}
		items = append(items, newsItem{Text: line})
	}
	return "", items
}

func forecastSection(f *types.Forecast, loc *time.Location) ([]forecastCard, string) {
	if f == nil {
		return nil, "No forecast data available in the log. (The forecast fetch may have failed or is still running.)"
	}
	if len(f.Daily) == 0 {
		return nil, "Daily forecast data is missing from the log."
	}
	days := f.Daily[:min(len(f.Daily), forecastDays)]
	cards := make([]forecastCard, 0, len(days))
	for _, d := range days {
		cards = append(cards, forecastCard{
			Day:  FormatDay(d.Dt, loc),
			Icon: WeatherIcon(d.Icon),
			Max:  formatRounded(d.TempMax) + "°",
			Min:  formatRounded(d.TempMin) + "°",
			Pop:  formatPercent(d.Pop),
		})
	}
	return cards, ""
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
