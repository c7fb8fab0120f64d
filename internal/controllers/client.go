package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/yegors/geofs-atc/pkg/logger"
)

// Fetcher retrieves a persona for a seed
type Fetcher interface {
	FetchPersona(ctx context.Context, seed string) (Persona, error)
}

// ClientConfig configures the persona HTTP client
type ClientConfig struct {
	BaseURL       string
	Gender        string
	Nationalities string
	Timeout       time.Duration
}

// Client fetches personas from a randomuser.me compatible service
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new persona client
func NewClient(config ClientConfig, log *logger.Logger) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: log.Named("persona-client"),
	}
}

type randomUserResponse struct {
	Results []struct {
		Gender string `json:"gender"`
		Name   struct {
			First string `json:"first"`
			Last  string `json:"last"`
		} `json:"name"`
		Dob struct {
			Age int `json:"age"`
		} `json:"dob"`
		Nat string `json:"nat"`
	} `json:"results"`
}

// FetchPersona implements Fetcher. Any non-2xx status aborts the attempt.
func (c *Client) FetchPersona(ctx context.Context, seed string) (Persona, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return Persona{}, fmt.Errorf("invalid persona url: %w", err)
	}
	q := u.Query()
	if c.config.Gender != "" {
		q.Set("gender", c.config.Gender)
	}
	if c.config.Nationalities != "" {
		q.Set("nat", c.config.Nationalities)
	}
	q.Set("seed", seed)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Persona{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Persona{}, fmt.Errorf("error making request to persona service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Persona{}, fmt.Errorf("persona service returned status %d", resp.StatusCode)
	}

	var body randomUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Persona{}, fmt.Errorf("error decoding persona: %w", err)
	}
	if len(body.Results) == 0 {
		return Persona{}, fmt.Errorf("persona service returned no results")
	}

	r := body.Results[0]
	c.logger.Debug("Fetched persona",
		logger.String("seed", seed),
		logger.String("name", r.Name.First+" "+r.Name.Last))

	return Persona{
		FirstName:   r.Name.First,
		LastName:    r.Name.Last,
		Age:         r.Dob.Age,
		Gender:      r.Gender,
		Nationality: r.Nat,
	}, nil
}
