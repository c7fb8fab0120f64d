package narration

import (
	"time"

	"github.com/yegors/geofs-atc/internal/websocket"
	"github.com/yegors/geofs-atc/pkg/logger"
)

// Publisher pushes a message to every connected overlay
type Publisher interface {
	Broadcast(message *websocket.Message)
}

// Durations controls how long the overlay keeps each banner on screen
type Durations struct {
	ATC    time.Duration
	Pilot  time.Duration
	Notice time.Duration
}

// DefaultDurations returns the stock banner durations
func DefaultDurations() Durations {
	return Durations{
		ATC:    15 * time.Second,
		Pilot:  10 * time.Second,
		Notice: 10 * time.Second,
	}
}

// Broadcaster turns narration events into WebSocket messages for the overlay
type Broadcaster struct {
	pub       Publisher
	durations Durations
	logger    *logger.Logger
}

// NewBroadcaster creates a broadcaster. Zero durations fall back to the defaults.
func NewBroadcaster(pub Publisher, d Durations, log *logger.Logger) *Broadcaster {
	def := DefaultDurations()
	if d.ATC <= 0 {
		d.ATC = def.ATC
	}
	if d.Pilot <= 0 {
		d.Pilot = def.Pilot
	}
	if d.Notice <= 0 {
		d.Notice = def.Notice
	}
	return &Broadcaster{
		pub:       pub,
		durations: d,
		logger:    log.Named("narration"),
	}
}

func (b *Broadcaster) ATCMessage(code, text string) {
	b.logger.Info("ATC transmission", logger.String("airport", code), logger.String("text", text))
	b.pub.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeATCMessage,
		Data: map[string]any{
			"airport":     code,
			"title":       ATCTitle(code),
			"text":        text,
			"speak":       true,
			"duration_ms": b.durations.ATC.Milliseconds(),
		},
	})
}

func (b *Broadcaster) PilotMessage(title, text string) {
	b.logger.Info("Pilot transmission", logger.String("title", title), logger.String("text", text))
	b.pub.Broadcast(&websocket.Message{
		Type: websocket.MessageTypePilotMessage,
		Data: map[string]any{
			"title":       title,
			"text":        text,
			"duration_ms": b.durations.Pilot.Milliseconds(),
		},
	})
}

func (b *Broadcaster) Notice(n Notice) {
	b.logger.Debug("Notice",
		logger.String("level", string(n.Level)),
		logger.String("title", n.Title))
	b.pub.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeNotice,
		Data: map[string]any{
			"level":       string(n.Level),
			"title":       n.Title,
			"text":        n.Text,
			"duration_ms": b.durations.Notice.Milliseconds(),
		},
	})
}

func (b *Broadcaster) PlayStatic() {
	b.pub.Broadcast(&websocket.Message{
		Type: websocket.MessageTypePlayStatic,
		Data: map[string]any{},
	})
}
