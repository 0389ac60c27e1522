package server

import (
	"bufio"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/crossx-exchange/crossx/internal/account"
	"github.com/crossx-exchange/crossx/internal/book"
	"github.com/crossx-exchange/crossx/internal/idgen"
	"github.com/crossx-exchange/crossx/internal/market"
	"github.com/crossx-exchange/crossx/internal/matching"
	"github.com/crossx-exchange/crossx/internal/metrics"
	"github.com/crossx-exchange/crossx/internal/notify"
	"github.com/crossx-exchange/crossx/internal/orderservice"
	"github.com/crossx-exchange/crossx/internal/protocol"
	"github.com/crossx-exchange/crossx/internal/ratelimit"
	"github.com/crossx-exchange/crossx/internal/registry"
	"github.com/crossx-exchange/crossx/internal/stops"
	"github.com/crossx-exchange/crossx/internal/tradelog"
)

type noopUnicaster struct{}

func (noopUnicaster) SendFill(string, notify.FillNotification) {}

type noopBroadcaster struct{}

func (noopBroadcaster) PublishThreshold(notify.ThresholdAlert) {}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	acct, err := account.New(db, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, acct.Register("alice", "hunter2"))

	b := book.New()
	e := matching.New(b)
	log, err := tradelog.Open(filepath.Join(t.TempDir(), "trades.json"), 5, zap.NewNop())
	require.NoError(t, err)
	fanout := notify.New(noopUnicaster{}, noopBroadcaster{}, zap.NewNop())
	m := metrics.New(prometheus.NewRegistry())
	svc := orderservice.New(b, e, stops.New(), registry.New(), idgen.New(1), market.New(), log, fanout, m, zap.NewNop())

	limiter := ratelimit.New(1000, 3, time.Minute)
	unicast := notify.NewUnicastHub(zap.NewNop())

	srv, err := New("127.0.0.1:0", 4, 0, svc, acct, limiter, unicast, "test-secret", zap.NewNop())
	require.NoError(t, err)

	go srv.Serve()
	t.Cleanup(func() { srv.Close() })
	return srv
}

type client struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dial(t *testing.T, srv *Server) *client {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &client{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *client) send(t *testing.T, req protocol.Request) {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	data = append(data, '\n')
	_, err = c.conn.Write(data)
	require.NoError(t, err)
}

func (c *client) recv(t *testing.T, dst any) {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	line, err := c.reader.ReadBytes('\n')
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(line, dst))
}

func TestLoginSucceedsWithValidCredentials(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv)

	c.send(t, protocol.Request{Operation: protocol.OpLogin, Values: map[string]any{"username": "alice", "password": "hunter2"}})
	var resp protocol.LoginResponse
	c.recv(t, &resp)
	assert.Equal(t, orderservice.CodeOK, resp.Response)
	assert.NotEmpty(t, resp.FillsToken, "login must mint a token the client uses to open the unicast fills websocket")
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv)

	c.send(t, protocol.Request{Operation: protocol.OpLogin, Values: map[string]any{"username": "alice", "password": "wrong"}})
	var resp protocol.StatusResponse
	c.recv(t, &resp)
	assert.Equal(t, orderservice.CodeNotAuthorizedOrFail, resp.Response)
}

func TestLoginTwiceRejectsSecondAttempt(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv)

	c.send(t, protocol.Request{Operation: protocol.OpLogin, Values: map[string]any{"username": "alice", "password": "hunter2"}})
	var first protocol.StatusResponse
	c.recv(t, &first)

	c.send(t, protocol.Request{Operation: protocol.OpLogin, Values: map[string]any{"username": "alice", "password": "hunter2"}})
	var second protocol.StatusResponse
	c.recv(t, &second)
	assert.Equal(t, orderservice.CodeAlreadyLoggedIn, second.Response)
}

func TestInsertLimitOrderRequiresLogin(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv)

	c.send(t, protocol.Request{Operation: protocol.OpInsertLimitOrder, Values: map[string]any{"type": "bid", "size": 1, "price": 100}})
	var resp protocol.StatusResponse
	c.recv(t, &resp)
	assert.Equal(t, orderservice.CodeNotAuthorizedOrFail, resp.Response)
}

func TestInsertLimitOrderAfterLoginReturnsOrderID(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv)

	c.send(t, protocol.Request{Operation: protocol.OpLogin, Values: map[string]any{"username": "alice", "password": "hunter2"}})
	var loginResp protocol.StatusResponse
	c.recv(t, &loginResp)
	require.Equal(t, orderservice.CodeOK, loginResp.Response)

	c.send(t, protocol.Request{Operation: protocol.OpInsertLimitOrder, Values: map[string]any{"type": "bid", "size": 10, "price": 100}})
	var orderResp protocol.OrderIDResponse
	c.recv(t, &orderResp)
	assert.NotEqual(t, orderservice.InvalidOrderID, orderResp.OrderID)
}

func TestInsertLimitOrderRejectsMalformedValues(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv)

	c.send(t, protocol.Request{Operation: protocol.OpLogin, Values: map[string]any{"username": "alice", "password": "hunter2"}})
	var loginResp protocol.StatusResponse
	c.recv(t, &loginResp)
	require.Equal(t, orderservice.CodeOK, loginResp.Response)

	c.send(t, protocol.Request{Operation: protocol.OpInsertLimitOrder, Values: map[string]any{"type": "sideways", "size": 10, "price": 100}})
	var resp protocol.StatusResponse
	c.recv(t, &resp)
	assert.Equal(t, orderservice.CodeMalformed, resp.Response)
}

func TestUnknownOperationReturnsMalformed(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv)

	c.send(t, protocol.Request{Operation: "doesNotExist"})
	var resp protocol.StatusResponse
	c.recv(t, &resp)
	assert.Equal(t, orderservice.CodeMalformed, resp.Response)
}

func TestCancelOrderRequiresLogin(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv)

	c.send(t, protocol.Request{Operation: protocol.OpCancelOrder, Values: map[string]any{"orderId": 1}})
	var resp protocol.StatusResponse
	c.recv(t, &resp)
	assert.Equal(t, orderservice.CodeNotAuthorizedOrFail, resp.Response)
}
