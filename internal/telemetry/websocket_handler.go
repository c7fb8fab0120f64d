package telemetry

import (
	"encoding/json"
	"fmt"

	"github.com/yegors/geofs-atc/internal/websocket"
	"github.com/yegors/geofs-atc/pkg/logger"
)

// WebSocketHandler feeds telemetry messages from the overlay into the store
type WebSocketHandler struct {
	store  *Store
	logger *logger.Logger
}

// NewWebSocketHandler creates a new WebSocket message handler
func NewWebSocketHandler(store *Store, log *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		store:  store,
		logger: log.Named("telemetry-ws-handler"),
	}
}

// HandleMessage handles incoming WebSocket messages
func (h *WebSocketHandler) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	if messageType != websocket.MessageTypeTelemetry {
		h.logger.Debug("Unhandled message type", logger.String("type", messageType))
		return nil
	}

	snap, err := DecodeSnapshot(data)
	if err != nil {
		return err
	}
	h.store.Update(snap)
	return nil
}

// DecodeSnapshot converts a loosely typed message payload into a Snapshot
func DecodeSnapshot(data map[string]any) (Snapshot, error) {
	var snap Snapshot
	raw, err := json.Marshal(data)
	if err != nil {
		return snap, fmt.Errorf("failed to marshal telemetry payload: %w", err)
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, fmt.Errorf("invalid telemetry payload: %w", err)
	}
	return snap, nil
}
