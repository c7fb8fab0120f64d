package controllers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/yegors/geofs-atc/pkg/logger"
)

// resolvedTTL keeps a persona a little past its calendar day so a slot
// resolved just before midnight is still there when the pilot talks.
const resolvedTTL = 26 * time.Hour

// Registry lazily materializes one persona per airport per day
type Registry struct {
	fetcher  Fetcher
	group    singleflight.Group
	resolved *expirable.LRU[Key, Persona]

	mu       sync.Mutex
	failures map[Key]failure
	cooldown time.Duration

	fetchTimeout time.Duration
	now          func() time.Time
	logger       *logger.Logger
}

type failure struct {
	at  time.Time
	err error
}

// NewRegistry creates a controller registry
func NewRegistry(fetcher Fetcher, cacheSize int, cooldown, fetchTimeout time.Duration, log *logger.Logger) *Registry {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	return &Registry{
		fetcher:      fetcher,
		resolved:     expirable.NewLRU[Key, Persona](cacheSize, nil, resolvedTTL),
		failures:     make(map[Key]failure),
		cooldown:     cooldown,
		fetchTimeout: fetchTimeout,
		now:          time.Now,
		logger:       log.Named("controllers"),
	}
}

// Today returns the key for code on the current calendar day
func (r *Registry) Today(code string) Key {
	return KeyFor(code, r.now())
}

// Get returns the persona for a key and its status. It never fetches.
func (r *Registry) Get(key Key) (Persona, Status) {
	if p, ok := r.resolved.Get(key); ok {
		return p, StatusResolved
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, failed := r.failures[key]; failed {
		return Persona{}, StatusFailed
	}
	return Persona{}, StatusPending
}

// LastError returns the error of the most recent failed fetch for key
func (r *Registry) LastError(key Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.failures[key]; ok {
		return f.err
	}
	return nil
}

// Resolve returns the persona for key, fetching it if needed. Concurrent
// callers for the same key share one request. After a failure the key is
// left alone until the cooldown passes.
func (r *Registry) Resolve(ctx context.Context, key Key) (Persona, error) {
	if p, ok := r.resolved.Get(key); ok {
		return p, nil
	}
	if err := r.coolingDown(key); err != nil {
		return Persona{}, err
	}

	v, err, _ := r.group.Do(key.Seed(), func() (any, error) {
		// Another caller may have finished while we queued
		if p, ok := r.resolved.Get(key); ok {
			return p, nil
		}

		fetchCtx := ctx
		if r.fetchTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(ctx, r.fetchTimeout)
			defer cancel()
		}

		p, err := r.fetcher.FetchPersona(fetchCtx, key.Seed())
		if err != nil {
			r.recordFailure(key, err)
			return Persona{}, err
		}

		r.resolved.Add(key, p)
		r.clearFailure(key)
		r.logger.Info("Controller on duty",
			logger.String("airport", key.Code),
			logger.String("date", key.Date),
			logger.String("name", p.FullName()),
			logger.Int("age", p.Age))
		return p, nil
	})
	if err != nil {
		return Persona{}, err
	}
	return v.(Persona), nil
}

// ResolveAsync starts a background resolve and returns immediately
func (r *Registry) ResolveAsync(key Key) {
	if _, ok := r.resolved.Get(key); ok {
		return
	}
	go func() {
		if _, err := r.Resolve(context.Background(), key); err != nil {
			r.logger.Debug("Background persona resolve did not complete",
				logger.String("airport", key.Code),
				logger.Error(err))
		}
	}()
}

// Reset drops every persona and failure record
func (r *Registry) Reset() {
	r.resolved.Purge()
	r.mu.Lock()
	r.failures = make(map[Key]failure)
	r.mu.Unlock()
}

func (r *Registry) coolingDown(key Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.failures[key]
	if !ok {
		return nil
	}
	if r.now().Sub(f.at) < r.cooldown {
		return fmt.Errorf("%w: %v", ErrCoolingDown, f.err)
	}
	return nil
}

func (r *Registry) recordFailure(key Key, err error) {
	now := r.now()

	r.mu.Lock()
	r.failures[key] = failure{at: now, err: err}
	// Failures from previous days can never be retried, drop them
	for k := range r.failures {
		if k.Date != key.Date {
			delete(r.failures, k)
		}
	}
	r.mu.Unlock()

	r.logger.Warn("Persona fetch failed",
		logger.String("airport", key.Code),
		logger.String("date", key.Date),
		logger.Duration("retry_after", r.cooldown),
		logger.Error(err))
}

func (r *Registry) clearFailure(key Key) {
	r.mu.Lock()
	delete(r.failures, key)
	r.mu.Unlock()
}
