// Package proximity watches the aircraft position and keeps track of which
// airport the pilot would be talking to.
package proximity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yegors/geofs-atc/internal/airports"
	"github.com/yegors/geofs-atc/internal/controllers"
	"github.com/yegors/geofs-atc/internal/narration"
	"github.com/yegors/geofs-atc/internal/telemetry"
	"github.com/yegors/geofs-atc/internal/websocket"
	"github.com/yegors/geofs-atc/pkg/logger"
)

// TelemetrySource supplies the latest aircraft state
type TelemetrySource interface {
	Latest() (telemetry.Snapshot, error)
}

// Prewarmer starts controller lookups ahead of the first call
type Prewarmer interface {
	Today(code string) controllers.Key
	ResolveAsync(key controllers.Key)
}

// FrequencySource reports the manually tuned airport, "" when untuned
type FrequencySource interface {
	Frequency() string
}

// Poller periodically resolves the airport in contact
type Poller struct {
	telemetry   TelemetrySource
	registry    *airports.Registry
	controllers Prewarmer
	frequency   FrequencySource
	sink        narration.Sink
	pub         narration.Publisher
	interval    time.Duration

	mu      sync.RWMutex
	current airports.Fix
	has     bool

	logger *logger.Logger
}

// Config wires a Poller. Frequency and Publisher are optional.
type Config struct {
	Telemetry   TelemetrySource
	Registry    *airports.Registry
	Controllers Prewarmer
	Frequency   FrequencySource
	Sink        narration.Sink
	Publisher   narration.Publisher
	Interval    time.Duration
}

// NewPoller creates a poller; Interval defaults to 500ms
func NewPoller(cfg Config, log *logger.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	return &Poller{
		telemetry:   cfg.Telemetry,
		registry:    cfg.Registry,
		controllers: cfg.Controllers,
		frequency:   cfg.Frequency,
		sink:        cfg.Sink,
		pub:         cfg.Publisher,
		interval:    cfg.Interval,
		logger:      log.Named("proximity"),
	}
}

// Run ticks until ctx is done
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("Starting proximity poller", logger.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Proximity poller stopped")
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Tick runs one pass: find the airport in contact, announce it if it
// changed and make sure its controller is being looked up
func (p *Poller) Tick() {
	snap, err := p.telemetry.Latest()
	if err != nil {
		if !errors.Is(err, telemetry.ErrNoTelemetry) {
			p.logger.Warn("Failed to read telemetry", logger.Error(err))
		}
		return
	}

	if p.frequency != nil {
		if code := p.frequency.Frequency(); code != "" {
			// Tuned: the pilot chose the airport, only keep its controller warm
			p.controllers.ResolveAsync(p.controllers.Today(code))
			p.forget()
			return
		}
	}

	fix, err := p.registry.Nearest(snap.Lat, snap.Lon)
	if err != nil {
		p.logger.Debug("No nearest airport", logger.Error(err))
		return
	}

	if p.transition(fix) {
		p.announce(fix)
	}
	p.controllers.ResolveAsync(p.controllers.Today(fix.Code()))
}

// transition stores fix and reports whether the airport changed
func (p *Poller) transition(fix airports.Fix) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	changed := !p.has || p.current.Code() != fix.Code()
	p.current = fix
	p.has = true
	return changed
}

func (p *Poller) announce(fix airports.Fix) {
	name := fix.Airport.DisplayName()
	p.logger.Info("New nearest airport",
		logger.String("airport", fix.Code()),
		logger.Float64("distance_km", fix.DistanceKm))

	p.sink.Notice(narration.Notice{
		Level: narration.LevelInfo,
		Title: "New airport: " + fix.Code(),
		Text:  "You are now in range of " + name + ". You will now talk to them.",
	})

	if p.pub != nil {
		p.pub.Broadcast(&websocket.Message{
			Type: websocket.MessageTypeAirportChanged,
			Data: map[string]any{
				"code":        fix.Code(),
				"name":        name,
				"distance_km": fix.DistanceKm,
				"bearing_deg": fix.BearingDeg,
			},
		})
	}
}

// Current returns the last nearest airport, false before the first fix or
// while a frequency is tuned
func (p *Poller) Current() (airports.Fix, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, p.has
}

func (p *Poller) forget() {
	p.mu.Lock()
	p.current = airports.Fix{}
	p.has = false
	p.mu.Unlock()
}

// Reset forgets the current airport so the next tick announces again
func (p *Poller) Reset() {
	p.forget()
}
