package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ura-call-bridge/internal/domain/models"
)

func dialSocket(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func register(t *testing.T, conn *websocket.Conn, id string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{"event": "register", "data": id}))
}

func TestStreamDeliversEventsAfterRegister(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	conn := dialSocket(t, srv)
	register(t, conn, "agent-1001")
	require.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	f.hub.Broadcast(models.CallEvent{
		Event: models.CallEventCallerJoined,
		Data:  models.CallEventData{CallerNumber: "21999990000", Extension: "1001"},
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.CallEvent
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, models.CallEventCallerJoined, got.Event)
	assert.Equal(t, "21999990000", got.Data.CallerNumber)
}

func TestStreamReRegisterClosesOldConnection(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	first := dialSocket(t, srv)
	register(t, first, "agent-1001")
	require.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	second := dialSocket(t, srv)
	register(t, second, "agent-1001")

	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "unexpected error: %v", err)

	assert.Equal(t, 1, f.hub.ClientCount())
	f.hub.Broadcast(models.CallEvent{Event: models.CallEventCallerLeft})

	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.CallEvent
	require.NoError(t, second.ReadJSON(&got))
	assert.Equal(t, models.CallEventCallerLeft, got.Event)
}

func TestStreamUnregistersOnDisconnect(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	conn := dialSocket(t, srv)
	register(t, conn, "agent-1001")
	require.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return f.hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestOriginAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/socket", nil)
	assert.True(t, originAllowed(req, []string{"painel.example.com"}))

	req.Header.Set("Origin", "https://painel.example.com")
	assert.True(t, originAllowed(req, []string{"painel.example.com"}))
	assert.True(t, originAllowed(req, []string{"https://painel.example.com"}))
	assert.False(t, originAllowed(req, []string{"other.example.com"}))
	assert.True(t, originAllowed(req, []string{"*"}))
}
