// Unicast hub for per-user fill notifications, adapted from the teacher's
// internal/api/websocket/pairs_ws.go connection-registry pattern: a map of
// live connections keyed by identity (there, pair subscriptions; here,
// username), guarded by a dedicated mutex, with a registration call made
// on connect/login and a cleanup on disconnect/logout.
package notify

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// UnicastHub fans fill notifications out to each user's currently
// registered websocket connection. A user with no registered connection
// simply misses the push (spec.md's push channels are best-effort; the
// sender already has the order id from the synchronous response).
type UnicastHub struct {
	logger *zap.Logger

	mu    sync.RWMutex
	conns map[string]*registeredConn // user -> connection
}

type registeredConn struct {
	id   string
	conn *websocket.Conn
}

// NewUnicastHub creates an empty hub.
func NewUnicastHub(logger *zap.Logger) *UnicastHub {
	return &UnicastHub{logger: logger, conns: make(map[string]*registeredConn)}
}

// Register associates user with conn, replacing any previous connection
// for that user (spec.md: login implicitly registers (user, transport)
// for unicast fills).
func (h *UnicastHub) Register(user string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[user] = &registeredConn{id: uuid.NewString(), conn: conn}
}

// Deregister removes user's connection (logout, or connection drop).
func (h *UnicastHub) Deregister(user string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, user)
}

// SendFill implements Unicaster.
func (h *UnicastHub) SendFill(user string, n FillNotification) {
	h.mu.RLock()
	rc, ok := h.conns[user]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if err := rc.conn.WriteJSON(n); err != nil {
		h.logger.Warn("failed to deliver fill notification", zap.String("user", user), zap.Error(err))
		h.Deregister(user)
	}
}
