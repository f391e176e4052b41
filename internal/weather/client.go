// Package weather fetches current conditions and forecasts from OpenWeatherMap.
package weather

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/rafabd1/climatesense/internal/types"
	"github.com/rafabd1/climatesense/pkg/logger"
)

const DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

// APIError is a non-2xx answer from the weather service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return "weather api returned " + http.StatusText(e.StatusCode)
	}
	return "weather api returned " + http.StatusText(e.StatusCode) + ": " + e.Message
}

type Config struct {
	APIKey  string
	BaseURL string
	Units   string
	Timeout time.Duration
	// Location is used to assign forecast slots to calendar days.
	Location *time.Location
}

type Client struct {
	http     *resty.Client
	apiKey   string
	units    string
	location *time.Location
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Units == "" {
		cfg.Units = "metric"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(retryCondition)
	return &Client{
		http:     client,
		apiKey:   cfg.APIKey,
		units:    cfg.Units,
		location: cfg.Location,
	}
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests
}

type errorBody struct {
	Message string `json:"message"`
}

func (c *Client) get(ctx context.Context, path, city string, out any) error {
	var apiErr errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":     city,
			"appid": c.apiKey,
			"units": c.units,
		}).
		SetResult(out).
		SetError(&apiErr).
		Get(path)
	if err != nil {
		return errors.Wrapf(err, "request %s for %s", path, city)
	}
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Message: apiErr.Message}
	}
	return nil
}

// Current returns the current conditions for a "City,CC" location.
func (c *Client) Current(ctx context.Context, city string) (*types.CurrentWeather, error) {
	log := logger.FromContext(ctx)
	log.Info("Fetching current weather", "city", city)
	var out types.CurrentWeather
	if err := c.get(ctx, "/weather", city, &out); err != nil {
		log.Error("Current weather fetch failed", "city", city, "error", err)
		return nil, err
	}
	return &out, nil
}

// Forecast fetches the 5-day/3-hour forecast and folds it into daily summaries.
func (c *Client) Forecast(ctx context.Context, city string) (*types.Forecast, error) {
	log := logger.FromContext(ctx)
	log.Info("Fetching 5-day forecast", "city", city)
	var out ForecastResponse
	if err := c.get(ctx, "/forecast", city, &out); err != nil {
		log.Error("Forecast fetch failed", "city", city, "error", err)
		return nil, err
	}
	forecast := SummarizeForecast(&out, c.location)
	log.Info("Processed forecast days", "city", city, "days", len(forecast.Daily))
	return forecast, nil
}
