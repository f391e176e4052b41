package dashboard

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
)

const DefaultGeoIPURL = "http://ip-api.com/json/"

// Geolocator resolves the host's approximate location from its public IP.
type Geolocator struct {
	client *resty.Client
	url    string
	cache  *lru.LRU[string, string]
}

func NewGeolocator(url string, ttl time.Duration) *Geolocator {
	if url == "" {
		url = DefaultGeoIPURL
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Geolocator{
		client: resty.New().SetTimeout(10 * time.Second),
		url:    url,
		cache:  lru.NewLRU[string, string](1, nil, ttl),
	}
}

type ipAPIResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	City        string `json:"city"`
	CountryCode string `json:"countryCode"`
}

// Locate returns "City,CC" for the caller's public IP.
func (g *Geolocator) Locate(ctx context.Context) (string, error) {
	if loc, ok := g.cache.Get(g.url); ok {
		return loc, nil
	}
	var body ipAPIResponse
	resp, err := g.client.R().SetContext(ctx).SetResult(&body).Get(g.url)
	if err != nil {
		return "", errors.Wrap(err, "ip geolocation")
	}
	if resp.IsError() {
		return "", errors.Errorf("ip geolocation returned %d", resp.StatusCode())
	}
	if body.Status == "fail" {
		return "", errors.Errorf("ip geolocation failed: %s", body.Message)
	}
	if body.City == "" || body.CountryCode == "" {
		return "", errors.New("ip geolocation returned no city")
	}
	loc := body.City + "," + body.CountryCode
	g.cache.Add(g.url, loc)
	return loc, nil
}
