package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/yegors/geofs-atc/pkg/logger"
)

// ErrNoMETAR is returned when the station has no recent observation
var ErrNoMETAR = errors.New("no METAR data")

// Client handles HTTP requests to the weather API
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new weather API client
func NewClient(config Config, log *logger.Logger) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.RequestTimeoutSeconds) * time.Second,
		},
		logger: log.Named("weather-client"),
	}
}

// FetchMETAR fetches the latest METAR for the specified airport
func (c *Client) FetchMETAR(ctx context.Context, airportCode string) (*METAR, error) {
	u := fmt.Sprintf("%s/metar?ids=%s&format=json", c.config.APIBaseURL, url.QueryEscape(airportCode))

	var result []METAR // API returns an array
	if err := c.fetchWithRetry(ctx, u, airportCode, &result); err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoMETAR, airportCode)
	}

	// First entry is the latest observation
	m := result[0]
	m.FetchedAt = time.Now()
	return &m, nil
}

// fetchWithRetry performs HTTP request with retry logic and exponential backoff
func (c *Client) fetchWithRetry(ctx context.Context, u string, airportCode string, target any) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoffDuration := time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
			c.logger.Info("Retrying METAR fetch",
				logger.String("airport", airportCode),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", backoffDuration))
			select {
			case <-time.After(backoffDuration):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = c.fetchOnce(ctx, u, target)
		if lastErr == nil {
			if attempt > 0 {
				c.logger.Info("Successfully fetched METAR after retries",
					logger.String("airport", airportCode),
					logger.Int("attempts_needed", attempt+1))
			}
			return nil
		}

		c.logger.Warn("METAR request failed, may retry",
			logger.String("airport", airportCode),
			logger.Error(lastErr),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", c.config.MaxRetries+1))
	}

	return lastErr
}

func (c *Client) fetchOnce(ctx context.Context, u string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request to weather API: %w", err)
	}
	defer resp.Body.Close()

	// aviationweather.gov answers 204 when the station has nothing recent
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("error decoding weather data: %w", err)
	}
	return nil
}
