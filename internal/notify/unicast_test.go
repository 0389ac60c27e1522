package notify

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newUpgradeServer starts an httptest server that upgrades every request to
// a websocket connection and hands the server-side connection to onConnect.
func newUpgradeServer(t *testing.T, onConnect func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		onConnect(conn)
	}))
	return srv
}

func dialClient(t *testing.T, serverURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSendFillDeliversToRegisteredConnection(t *testing.T) {
	var serverConn *websocket.Conn
	ready := make(chan struct{})

	srv := newUpgradeServer(t, func(c *websocket.Conn) {
		serverConn = c
		close(ready)
	})
	t.Cleanup(srv.Close)

	clientConn := dialClient(t, srv.URL)
	<-ready

	hub := NewUnicastHub(zap.NewNop())
	hub.Register("alice", serverConn)

	hub.SendFill("alice", FillNotification{NotificationID: "n1", Notification: "closedTrades"})

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got FillNotification
	require.NoError(t, clientConn.ReadJSON(&got))
	assert.Equal(t, "n1", got.NotificationID)
}

func TestSendFillToUnregisteredUserIsNoop(t *testing.T) {
	hub := NewUnicastHub(zap.NewNop())
	assert.NotPanics(t, func() {
		hub.SendFill("nobody", FillNotification{NotificationID: "n1"})
	})
}

func TestDeregisterRemovesConnection(t *testing.T) {
	var serverConn *websocket.Conn
	ready := make(chan struct{})

	srv := newUpgradeServer(t, func(c *websocket.Conn) {
		serverConn = c
		close(ready)
	})
	t.Cleanup(srv.Close)

	clientConn := dialClient(t, srv.URL)
	<-ready

	hub := NewUnicastHub(zap.NewNop())
	hub.Register("alice", serverConn)
	hub.Deregister("alice")

	hub.SendFill("alice", FillNotification{NotificationID: "n1"})

	clientConn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := clientConn.ReadMessage()
	assert.Error(t, err, "no frame should arrive once deregistered")
}
