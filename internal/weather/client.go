package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kumanofoo/tako/internal/astro"
	"github.com/kumanofoo/tako/internal/cache"
	"github.com/kumanofoo/tako/internal/domain"
	"github.com/kumanofoo/tako/internal/takotime"
)

// DefaultBaseURL is the weather service root.
const DefaultBaseURL = "https://www.jma.go.jp/bosai"

// Client fetches observations and forecasts over HTTP and converts them
// into demand. Responses are cached so the scheduler's retry loop and the
// trading bots do not hammer the upstream.
type Client struct {
	httpClient *http.Client
	baseURL    string
	stations   *Stations
	cache      cache.Cache
	ttl        time.Duration
	sales      SalesParams
	clock      takotime.Clock
}

// ClientConfig configures a Client. Zero values take defaults; Cache nil
// means an in-process cache with a 10 minute sweep.
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Cache      cache.Cache
	CacheTTL   time.Duration
	Sales      SalesParams
	Clock      takotime.Clock
}

func NewClient(stations *Stations, cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewMemory(10 * time.Minute)
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.Sales == (SalesParams{}) {
		cfg.Sales = DefaultSalesParams()
	}
	if cfg.Clock == nil {
		cfg.Clock = takotime.SystemClock{}
	}
	return &Client{
		httpClient: cfg.HTTPClient,
		baseURL:    cfg.BaseURL,
		stations:   stations,
		cache:      cfg.Cache,
		ttl:        cfg.CacheTTL,
		sales:      cfg.Sales,
		clock:      cfg.Clock,
	}
}

// fetch returns the body at url, serving from cache while fresh.
func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	if body, ok, err := c.cache.Get(ctx, url); err == nil && ok {
		return body, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %s", url, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, url, body, c.ttl); err != nil {
		return nil, err
	}
	return body, nil
}

type observationBody struct {
	SunshineHours *float64 `json:"sunshine_hours"`
	RainfallMM    *float64 `json:"rainfall_mm"`
}

// Observations returns the station's daily observation with the day
// length filled in from the station's latitude. Missing rainfall reads
// as zero, the service's way of reporting a dry day.
func (c *Client) Observations(ctx context.Context, station string) (Observation, error) {
	meta, ok := c.stations.Meta(station)
	if !ok {
		return Observation{}, fmt.Errorf("%w: unknown station %s", domain.ErrNoDemand, station)
	}

	body, err := c.fetch(ctx, fmt.Sprintf("%s/observation/%s.json", c.baseURL, url.PathEscape(station)))
	if err != nil {
		return Observation{}, fmt.Errorf("%w: %v", domain.ErrNoDemand, err)
	}
	var obs observationBody
	if err := json.Unmarshal(body, &obs); err != nil {
		return Observation{}, fmt.Errorf("%w: parse observation: %v", domain.ErrNoDemand, err)
	}
	if obs.SunshineHours == nil {
		return Observation{}, fmt.Errorf("%w: %s reported no sunshine duration", domain.ErrNoDemand, station)
	}
	var rainfall float64
	if obs.RainfallMM != nil {
		rainfall = *obs.RainfallMM
	}

	today := takotime.DayFloor(c.clock.Now())
	return Observation{
		SunshineHours:  *obs.SunshineHours,
		RainfallMM:     rainfall,
		DayLengthHours: astro.DayLength(today, meta.Latitude),
	}, nil
}

// Demand returns the day's sales cap and weather label for the area.
func (c *Client) Demand(ctx context.Context, area string) (int64, string, error) {
	obs, err := c.Observations(ctx, area)
	if err != nil {
		return 0, "", err
	}
	if obs.DayLengthHours <= c.sales.CorrectionHours {
		return 0, "", fmt.Errorf("%w: day length %.1fh too short to normalize",
			domain.ErrNoDemand, obs.DayLengthHours)
	}
	return c.sales.Sales(obs), c.sales.Label(obs), nil
}
