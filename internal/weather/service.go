package weather

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/yegors/geofs-atc/pkg/logger"
)

// Fetcher retrieves the latest METAR for a station
type Fetcher interface {
	FetchMETAR(ctx context.Context, airportCode string) (*METAR, error)
}

// Service caches METARs per airport
type Service struct {
	fetcher Fetcher
	cache   *expirable.LRU[string, *METAR]
	group   singleflight.Group
	logger  *logger.Logger
}

// NewService creates a new weather service
func NewService(fetcher Fetcher, config Config, log *logger.Logger) *Service {
	size := config.CacheSize
	if size <= 0 {
		size = 64
	}
	ttl := time.Duration(config.CacheExpiryMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Service{
		fetcher: fetcher,
		cache:   expirable.NewLRU[string, *METAR](size, nil, ttl),
		logger:  log.Named("weather-service"),
	}
}

// Latest returns the cached METAR for an airport, fetching it when missing
// or expired. Stations without a report return (nil, nil).
func (s *Service) Latest(ctx context.Context, airportCode string) (*METAR, error) {
	if m, ok := s.cache.Get(airportCode); ok {
		return m, nil
	}

	v, err, _ := s.group.Do(airportCode, func() (any, error) {
		m, err := s.fetcher.FetchMETAR(ctx, airportCode)
		if errors.Is(err, ErrNoMETAR) {
			// Cache the miss too so we don't hammer the API for small fields
			s.cache.Add(airportCode, nil)
			return (*METAR)(nil), nil
		}
		if err != nil {
			return nil, err
		}
		s.cache.Add(airportCode, m)
		s.logger.Debug("METAR cached",
			logger.String("airport", airportCode),
			logger.String("raw", m.Raw))
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*METAR), nil
}

// Purge empties the cache
func (s *Service) Purge() {
	s.cache.Purge()
}
