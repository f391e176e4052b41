package providers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/rafabd1/climatesense/pkg/search"
)

const DefaultNewsAPIBaseURL = "https://newsapi.org/v2"

// NewsAPIError carries the error code and message returned by NewsAPI.
type NewsAPIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *NewsAPIError) Error() string {
	return "newsapi " + strconv.Itoa(e.StatusCode) + " " + e.Code + ": " + e.Message
}

// NewsAPIProvider implements search.Searcher over the NewsAPI /everything endpoint.
type NewsAPIProvider struct {
	client *resty.Client
}

var _ search.Searcher = (*NewsAPIProvider)(nil)

func NewNewsAPIProvider(apiKey, baseURL string, timeout time.Duration) *NewsAPIProvider {
	if baseURL == "" {
		baseURL = DefaultNewsAPIBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("X-Api-Key", apiKey)
	return &NewsAPIProvider{client: client}
}

type newsAPIResponse struct {
	Status       string           `json:"status"`
	Code         string           `json:"code"`
	Message      string           `json:"message"`
	TotalResults int              `json:"totalResults"`
	Articles     []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
}

func (p *NewsAPIProvider) Search(ctx context.Context, query search.Query) ([]search.Result, error) {
	params := map[string]string{
		"q":      query.Text,
		"sortBy": "relevancy",
	}
	if !query.From.IsZero() {
		params["from"] = query.From.Format(time.DateOnly)
	}
	if query.Language != "" {
		params["language"] = query.Language
	}
	if query.PageSize > 0 {
		params["pageSize"] = strconv.Itoa(query.PageSize)
	}

	var body newsAPIResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&body).
		SetError(&body).
		Get("/everything")
	if err != nil {
		return nil, errors.Wrap(err, "newsapi request")
	}
	if resp.IsError() || body.Status == "error" {
		status := resp.StatusCode()
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		return nil, &NewsAPIError{StatusCode: status, Code: body.Code, Message: body.Message}
	}

	results := make([]search.Result, 0, len(body.Articles))
	for _, a := range body.Articles {
		results = append(results, search.Result{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			Source:      a.Source.Name,
			PublishedAt: a.PublishedAt,
		})
	}
	return results, nil
}
