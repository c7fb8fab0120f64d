package atcchat

import (
	"sync"

	"github.com/yegors/geofs-atc/internal/airports"
)

// Frequency holds the manually tuned airport, if any
type Frequency struct {
	mu       sync.RWMutex
	registry *airports.Registry
	code     string
}

// NewFrequency creates an untuned frequency selector
func NewFrequency(registry *airports.Registry) *Frequency {
	return &Frequency{registry: registry}
}

// Tune sets the frequency to the airport with code. Unknown codes return
// airports.ErrUnknownFrequency and leave the current frequency alone.
func (f *Frequency) Tune(code string) (airports.Airport, error) {
	ap, err := f.registry.Lookup(code)
	if err != nil {
		return airports.Airport{}, err
	}

	f.mu.Lock()
	f.code = ap.Code
	f.mu.Unlock()
	return ap, nil
}

// Get returns the tuned code, "" when untuned
func (f *Frequency) Get() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.code
}

// Clear returns to nearest-airport mode
func (f *Frequency) Clear() {
	f.mu.Lock()
	f.code = ""
	f.mu.Unlock()
}
