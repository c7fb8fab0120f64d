package atcchat

import (
	"context"
	"errors"
	"fmt"

	"github.com/yegors/geofs-atc/internal/websocket"
	"github.com/yegors/geofs-atc/pkg/logger"
)

// WebSocketHandler handles talk, tune and speech_error messages from the overlay
type WebSocketHandler struct {
	ctx     context.Context
	service *Service
	logger  *logger.Logger
}

// NewWebSocketHandler creates a handler. Talks started from it are
// cancelled when ctx is done.
func NewWebSocketHandler(ctx context.Context, service *Service, log *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		ctx:     ctx,
		service: service,
		logger:  log.Named("atc-chat-ws-handler"),
	}
}

// HandleMessage handles incoming WebSocket messages
func (h *WebSocketHandler) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	switch messageType {
	case websocket.MessageTypeTalk:
		text, _ := data["text"].(string)
		// The reply can take seconds; keep the read pump free
		go func() {
			if _, err := h.service.Talk(h.ctx, text); err != nil && !isNarrated(err) {
				h.logger.Error("Talk failed", logger.String("client_id", client.ID()), logger.Error(err))
			}
		}()
		return nil

	case websocket.MessageTypeTune:
		code, _ := data["code"].(string)
		if _, err := h.service.Tune(code); err != nil {
			return fmt.Errorf("tune %q: %w", code, err)
		}
		return nil

	case websocket.MessageTypeSpeechError:
		reason, _ := data["error"].(string)
		h.service.SpeechError(reason)
		return nil

	default:
		h.logger.Debug("Unhandled message type", logger.String("type", messageType))
		return nil
	}
}

// isNarrated reports whether the pilot has already been told about err
func isNarrated(err error) bool {
	for _, target := range []error{
		ErrEmptyMessage, ErrNoFrequency, ErrOutOfRange, ErrAirportClosed,
		ErrFrequencyBusy, ErrServiceUnavailable, ErrNoTelemetry,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
