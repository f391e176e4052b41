package agent

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/rafabd1/climatesense/internal/metrics"
	"github.com/rafabd1/climatesense/internal/risk"
	"github.com/rafabd1/climatesense/internal/types"
	"github.com/rafabd1/climatesense/pkg/logger"
	"github.com/rafabd1/climatesense/pkg/search"
)

// ErrWeatherUnavailable means the current conditions could not be fetched;
// the run is skipped.
var ErrWeatherUnavailable = errors.New("current weather unavailable")

// WeatherSource fetches conditions for a "City,CC" location.
type WeatherSource interface {
	Current(ctx context.Context, city string) (*types.CurrentWeather, error)
	Forecast(ctx context.Context, city string) (*types.Forecast, error)
}

// NewsOptions shape the news query.
type NewsOptions struct {
	Language     string
	PageSize     int
	LookbackDays int
}

// Pipeline runs one analysis of a location from fetch to summaries.
type Pipeline struct {
	Weather     WeatherSource
	News        search.Searcher
	NewsOptions NewsOptions
	Trend       *TrendForecaster
	Recommender *Recommender
	Analyzer    *NewsAnalyzer
	Metrics     *metrics.Metrics
	Now         func() time.Time
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Analyze builds a log entry for city. When withHistory is false the trend
// step is skipped, as for on-demand lookups.
func (p *Pipeline) Analyze(ctx context.Context, city string, withHistory bool) (*types.LogEntry, error) {
	log := logger.FromContext(ctx).With("city", city)
	ctx = logger.ContextWithLogger(ctx, log)
	started := p.now()

	current, err := p.Weather.Current(ctx, city)
	p.Metrics.RecordExternalCall("weather", err)
	if err != nil {
		return nil, errors.Wrap(ErrWeatherUnavailable, err.Error())
	}

	forecast, err := p.Weather.Forecast(ctx, city)
	p.Metrics.RecordExternalCall("forecast", err)
	if err != nil {
		log.Warn("Continuing without forecast", "error", err)
		forecast = nil
	}

	report := risk.Classify(current)
	log.Info("Risk classified", "risk_level", report.RiskLevel)

	if withHistory && p.Trend != nil {
		report.Trend = p.Trend.Forecast(ctx, city, report)
	} else {
		report.Trend = OnDemandTrend
	}

	entry := &types.LogEntry{
		Timestamp:    types.NewTimestamp(started),
		City:         city,
		RiskReport:   report,
		RawData:      current,
		ForecastData: forecast,
	}
	entry.Recommendations = p.Recommender.Recommend(ctx, report)

	articles := p.fetchNews(ctx, city, report.Details.Description)
	entry.AnalyzedNews = p.Analyzer.Analyze(ctx, articles)
	return entry, nil
}

func (p *Pipeline) fetchNews(ctx context.Context, city, description string) []search.Result {
	log := logger.FromContext(ctx)
	if p.News == nil {
		return nil
	}
	query := search.Query{
		Text:     search.WeatherQuery(city, description),
		Language: p.NewsOptions.Language,
		PageSize: p.NewsOptions.PageSize,
	}
	if p.NewsOptions.LookbackDays > 0 {
		query.From = p.now().AddDate(0, 0, -p.NewsOptions.LookbackDays)
	}
	log.Info("Fetching relevant news", "query", query.Text)
	articles, err := p.News.Search(ctx, query)
	p.Metrics.RecordExternalCall("news", err)
	if err != nil {
		log.Error("News fetch failed", "error", err)
		return nil
	}
	log.Info("Found potentially relevant articles", "articles", len(articles))
	return articles
}
