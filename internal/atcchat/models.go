package atcchat

import (
	"errors"
	"time"

	"github.com/yegors/geofs-atc/internal/ai"
	"github.com/yegors/geofs-atc/internal/telemetry"
)

// Talk failures. Each one is also narrated to the pilot as a notice.
var (
	ErrEmptyMessage       = errors.New("empty pilot message")
	ErrNoFrequency        = errors.New("no airport to contact")
	ErrOutOfRange         = errors.New("airport out of range")
	ErrAirportClosed      = errors.New("no controller on duty")
	ErrFrequencyBusy      = errors.New("frequency busy")
	ErrServiceUnavailable = errors.New("chat service unavailable")
	ErrNoTelemetry        = telemetry.ErrNoTelemetry
)

// Mode says how the contacted airport is chosen
type Mode string

const (
	ModeNearest Mode = "nearest" // nothing tuned, talk to the closest airport
	ModeTuned   Mode = "tuned"
)

// TalkResult describes a completed exchange
type TalkResult struct {
	RequestID  string    `json:"request_id"`
	Airport    string    `json:"airport"`
	Mode       Mode      `json:"mode"`
	DistanceKm float64   `json:"distance_km"`
	Controller string    `json:"controller"`
	Reply      string    `json:"reply"`
	RepliedAt  time.Time `json:"replied_at"`
}

// ContextView is a read-only copy of one airport's conversation
type ContextView struct {
	Airport  string           `json:"airport"`
	Messages []ai.ChatMessage `json:"messages"`
}

// Status summarizes the session
type Status struct {
	Mode      Mode     `json:"mode"`
	Frequency string   `json:"frequency,omitempty"`
	Contexts  []string `json:"contexts"`
	InFlight  []string `json:"in_flight"`
	Provider  string   `json:"provider"`
}
