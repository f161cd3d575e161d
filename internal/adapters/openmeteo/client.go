package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/adityak74/weatherweave/internal/core/domain"
)

// DefaultBaseURL is the public forecast endpoint.
const DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

const currentFields = "temperature_2m,precipitation,cloud_cover,weather_code"

// Client fetches current conditions from open-meteo. It implements
// domain.WeatherSource.
type Client struct {
	client  *http.Client
	baseURL string
	circuit *gobreaker.CircuitBreaker
}

func NewClient(baseURL string, client *http.Client) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &Client{
		client:  client,
		baseURL: baseURL,
		circuit: cb,
	}
}

type currentResponse struct {
	Current *struct {
		Time          string   `json:"time"`
		Temperature   *float64 `json:"temperature_2m"`
		Precipitation *float64 `json:"precipitation"`
		CloudCover    *float64 `json:"cloud_cover"`
		WeatherCode   *float64 `json:"weather_code"`
	} `json:"current"`
}

// Current issues one GET for the coordinates. Failures wrap
// domain.ErrWeatherFetch.
func (c *Client) Current(ctx context.Context, at domain.Coordinates) (domain.WeatherSnapshot, error) {
	res, err := c.circuit.Execute(func() (interface{}, error) {
		return c.fetch(ctx, at)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.WeatherSnapshot{}, fmt.Errorf("%w: open-meteo circuit open: %w", domain.ErrWeatherFetch, err)
		}
		return domain.WeatherSnapshot{}, err
	}
	return res.(domain.WeatherSnapshot), nil
}

func (c *Client) fetch(ctx context.Context, at domain.Coordinates) (domain.WeatherSnapshot, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(at.Latitude, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(at.Longitude, 'f', -1, 64))
	values.Set("current", currentFields)
	values.Set("temperature_unit", "fahrenheit")
	values.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+values.Encode(), nil)
	if err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("%w: failed to create request: %w", domain.ErrWeatherFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("%w: failed to call open-meteo: %w", domain.ErrWeatherFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.WeatherSnapshot{}, fmt.Errorf("%w: open-meteo returned status %d: %s", domain.ErrWeatherFetch, resp.StatusCode, string(body))
	}

	var payload currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("%w: failed to decode open-meteo response: %w", domain.ErrWeatherFetch, err)
	}

	cur := payload.Current
	if cur == nil || cur.Temperature == nil || cur.Precipitation == nil || cur.CloudCover == nil || cur.WeatherCode == nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("%w: open-meteo response missing current fields", domain.ErrWeatherFetch)
	}

	return domain.WeatherSnapshot{
		Temperature:   *cur.Temperature,
		Precipitation: *cur.Precipitation,
		CloudCover:    clampPercent(int(*cur.CloudCover)),
		WeatherCode:   int(*cur.WeatherCode),
		CapturedAt:    time.Now(),
	}, nil
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
