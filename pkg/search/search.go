package search

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Searcher defines the interface for performing searches.
type Searcher interface {
	Search(ctx context.Context, query Query) ([]Result, error)
}

// Query is a provider-neutral search request.
type Query struct {
	Text     string
	From     time.Time
	Language string
	PageSize int
}

// Result represents a single search result.
type Result struct {
	Title       string
	Description string
	URL         string
	Source      string
	PublishedAt time.Time
}

// WeatherQuery builds the local-safety news query for a "City,CC" location
// and the current weather description.
func WeatherQuery(location, description string) string {
	city, _, _ := strings.Cut(location, ",")
	return fmt.Sprintf(`"%s" AND ("weather" OR "flood" OR "storm" OR "rain" OR "%s")`,
		strings.TrimSpace(city), description)
}
