package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/geofs-atc/pkg/logger"
)

type received struct {
	clientID string
	msgType  string
	data     map[string]any
}

type chanHandler chan received

func (h chanHandler) HandleMessage(client *Client, messageType string, data map[string]any) error {
	h <- received{clientID: client.ID(), msgType: messageType, data: data}
	return nil
}

func startServer(t *testing.T, handler MessageHandler) (*Server, *websocket.Conn) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s := NewServer(logger.NewNop(), []string{"https://www.geo-fs.com"})
	s.SetMessageHandler(handler)
	go s.Run(ctx)

	ts := httptest.NewServer(http.HandlerFunc(s.HandleConnection))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	return s, conn
}

func TestServerChecksOrigin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewServer(logger.NewNop(), []string{"https://www.geo-fs.com"})
	go s.Run(ctx)
	ts := httptest.NewServer(http.HandlerFunc(s.HandleConnection))
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://WWW.GEO-FS.COM"}})
	require.NoError(t, err)
	conn.Close()
}

func TestOriginAllowed(t *testing.T) {
	list := []string{"https://www.geo-fs.com"}
	assert.True(t, OriginAllowed(list, "https://www.geo-fs.com"))
	assert.False(t, OriginAllowed(list, "https://geo-fs.com.evil.example"))
	assert.False(t, OriginAllowed(nil, "https://www.geo-fs.com"))
	assert.True(t, OriginAllowed([]string{"*"}, "https://anything.example"))
}

func TestServerDispatchesIncomingMessages(t *testing.T) {
	telemetry := make(chanHandler, 1)
	talk := make(chanHandler, 1)
	_, conn := startServer(t, HandlerMux{
		MessageTypeTelemetry: telemetry,
		MessageTypeTalk:      talk,
	})

	require.NoError(t, conn.WriteJSON(Message{Type: MessageTypeTalk, Data: map[string]any{"text": "request taxi"}}))
	require.NoError(t, conn.WriteJSON(Message{Type: "unknown", Data: nil}))
	require.NoError(t, conn.WriteJSON(Message{Type: MessageTypeTelemetry, Data: map[string]any{"lat": 40.0}}))

	select {
	case got := <-talk:
		assert.Equal(t, MessageTypeTalk, got.msgType)
		assert.Equal(t, "request taxi", got.data["text"])
		assert.NotEmpty(t, got.clientID)
	case <-time.After(2 * time.Second):
		t.Fatal("talk message not dispatched")
	}

	select {
	case got := <-telemetry:
		assert.Equal(t, 40.0, got.data["lat"])
	case <-time.After(2 * time.Second):
		t.Fatal("telemetry message not dispatched")
	}
}

func TestServerBroadcast(t *testing.T) {
	s, conn := startServer(t, nil)

	s.Broadcast(&Message{Type: MessageTypePlayStatic, Data: map[string]any{}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got Message
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, MessageTypePlayStatic, got.Type)
}

func TestServerUnregistersOnDisconnect(t *testing.T) {
	s, conn := startServer(t, nil)
	conn.Close()
	assert.Eventually(t, func() bool { return s.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
