package telemetry

import (
	"errors"
	"sync"
	"time"

	"github.com/yegors/geofs-atc/pkg/logger"
)

// ErrNoTelemetry is returned before the overlay has sent its first snapshot
var ErrNoTelemetry = errors.New("no telemetry received yet")

// Store holds the latest snapshot sent by the overlay
type Store struct {
	mu      sync.RWMutex
	latest  Snapshot
	has     bool
	updates int64
	now     func() time.Time
	logger  *logger.Logger
}

// NewStore creates an empty store
func NewStore(log *logger.Logger) *Store {
	return &Store{
		now:    time.Now,
		logger: log.Named("telemetry"),
	}
}

// Update replaces the latest snapshot. A zero ReceivedAt is stamped with now.
func (s *Store) Update(snap Snapshot) {
	if snap.ReceivedAt.IsZero() {
		snap.ReceivedAt = s.now()
	}

	s.mu.Lock()
	first := !s.has
	s.latest = snap
	s.has = true
	s.updates++
	s.mu.Unlock()

	if first {
		s.logger.Info("First telemetry received",
			logger.Float64("lat", snap.Lat),
			logger.Float64("lon", snap.Lon),
			logger.String("aircraft", snap.Aircraft))
	}
}

// Latest returns the most recent snapshot
func (s *Store) Latest() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.has {
		return Snapshot{}, ErrNoTelemetry
	}
	return s.latest, nil
}

// Updates returns how many snapshots were received this session
func (s *Store) Updates() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updates
}

// Reset forgets the latest snapshot
func (s *Store) Reset() {
	s.mu.Lock()
	s.latest = Snapshot{}
	s.has = false
	s.updates = 0
	s.mu.Unlock()
}
