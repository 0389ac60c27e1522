// Package server implements the TCP listener for the external interface
// (spec.md §6): line-delimited JSON request/response frames on a
// reliable byte stream. Accepted connections are handed to a
// panjf2000/ants worker pool (spec.md §5 "parallel workers with shared
// memory"), grounded on the teacher's internal/architecture/fx/workerpool
// factory pattern, adapted from a named-pool factory down to the single
// pool this single-instrument server needs.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/crossx-exchange/crossx/internal/account"
	"github.com/crossx-exchange/crossx/internal/apperrors"
	"github.com/crossx-exchange/crossx/internal/domain"
	"github.com/crossx-exchange/crossx/internal/notify"
	"github.com/crossx-exchange/crossx/internal/orderservice"
	"github.com/crossx-exchange/crossx/internal/protocol"
	"github.com/crossx-exchange/crossx/internal/ratelimit"
)

// fillsTokenTTL bounds how long a login's websocket registration token
// remains usable to open the unicast fills connection.
const fillsTokenTTL = 24 * time.Hour

// fillsClaims is the payload minted on login and verified by
// internal/adminhttp's unicast websocket upgrade handler; both sides
// share the admin JWT secret.
type fillsClaims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// Server accepts TCP connections and dispatches each request frame to
// OrderService/account.Service.
type Server struct {
	listener net.Listener
	pool     *ants.Pool

	svc     *orderservice.Service
	acct    *account.Service
	limiter *ratelimit.Limiter
	unicast *notify.UnicastHub

	fillsTokenSecret string
	socketTimeout    time.Duration
	logger           *zap.Logger
}

// New creates a Server bound to addr (e.g. ":9000"), with a worker pool
// of the given size. Per-user fill/threshold notifications travel over
// the separate websocket unicast hub (internal/notify): handleLogin mints
// a fillsTokenSecret-signed token the client uses to open that connection,
// and handleLogout removes the user's registration from unicast.
func New(addr string, poolSize int, socketTimeout time.Duration, svc *orderservice.Service, acct *account.Service, limiter *ratelimit.Limiter, unicast *notify.UnicastHub, fillsTokenSecret string, logger *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	pool, err := ants.NewPool(poolSize, ants.WithPanicHandler(func(i any) {
		logger.Error("connection handler panicked", zap.Any("panic", i))
	}))
	if err != nil {
		ln.Close()
		return nil, err
	}
	return &Server{
		listener: ln, pool: pool, svc: svc, acct: acct,
		limiter: limiter, unicast: unicast, fillsTokenSecret: fillsTokenSecret,
		socketTimeout: socketTimeout, logger: logger,
	}, nil
}

// Addr returns the bound listener address, mostly for tests.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Serve blocks accepting connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		c := conn
		if submitErr := s.pool.Submit(func() { s.handleConn(c) }); submitErr != nil {
			s.logger.Error("failed to submit connection to worker pool", zap.Error(submitErr))
			c.Close()
		}
	}
}

// Close stops accepting new connections and releases the worker pool.
func (s *Server) Close() error {
	s.pool.Release()
	return s.listener.Close()
}

// session is the per-connection login state.
type session struct {
	user     string
	loggedIn bool
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	sess := &session{}
	reader := bufio.NewReader(conn)

	for {
		if s.socketTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.socketTimeout))
		}
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}

		var req protocol.Request
		if err := json.Unmarshal(line, &req); err != nil {
			writeLine(conn, protocol.StatusResponse{Response: orderservice.CodeMalformed, ErrorMessage: "malformed request"})
			continue
		}

		s.dispatch(conn, sess, req)
	}
}

func (s *Server) dispatch(conn net.Conn, sess *session, req protocol.Request) {
	switch req.Operation {
	case protocol.OpLogin:
		s.handleLogin(conn, sess, req)
	case protocol.OpLogout:
		s.handleLogout(conn, sess)
	case protocol.OpUpdateCredentials:
		s.handleUpdateCredentials(conn, sess, req)
	case protocol.OpInsertLimitOrder:
		s.handleInsertLimit(conn, sess, req)
	case protocol.OpInsertMarketOrder:
		s.handleInsertMarket(conn, sess, req)
	case protocol.OpInsertStopOrder:
		s.handleInsertStop(conn, sess, req)
	case protocol.OpCancelOrder:
		s.handleCancel(conn, sess, req)
	case protocol.OpGetPriceHistory:
		s.handleGetPriceHistory(conn, req)
	case protocol.OpRegisterPriceAlert:
		s.handleRegisterPriceAlert(conn, sess, req)
	default:
		writeLine(conn, protocol.StatusResponse{Response: orderservice.CodeMalformed, ErrorMessage: "unknown operation"})
	}
}

func (s *Server) handleLogin(conn net.Conn, sess *session, req protocol.Request) {
	var v protocol.LoginValues
	if !decodeValues(conn, req, &v) {
		return
	}
	if sess.loggedIn {
		writeLine(conn, protocol.StatusResponse{Response: orderservice.CodeAlreadyLoggedIn, ErrorMessage: "already logged in"})
		return
	}
	if s.limiter.IsLockedOut(v.Username) {
		writeLine(conn, protocol.StatusResponse{Response: orderservice.CodeOther, ErrorMessage: "account locked out"})
		return
	}

	err := s.acct.ValidateCredentials(v.Username, v.Password)
	if err != nil {
		s.limiter.RecordLoginFailure(v.Username)
		code := orderservice.CodeNotAuthorizedOrFail
		if apperrors.Is(err, apperrors.ErrUserNotFound) {
			code = orderservice.CodeDuplicateOrNotFound
		}
		writeLine(conn, protocol.StatusResponse{Response: code, ErrorMessage: "invalid credentials"})
		return
	}

	s.limiter.ClearLoginFailures(v.Username)
	sess.user = v.Username
	sess.loggedIn = true

	token, err := s.mintFillsToken(v.Username)
	if err != nil {
		s.logger.Warn("failed to mint fills token", zap.Error(err))
	}
	writeLine(conn, protocol.LoginResponse{Response: orderservice.CodeOK, FillsToken: token})
}

func (s *Server) handleLogout(conn net.Conn, sess *session) {
	if sess.loggedIn {
		s.unicast.Deregister(sess.user)
	}
	sess.loggedIn = false
	sess.user = ""
	writeLine(conn, protocol.StatusResponse{Response: orderservice.CodeOK})
}

// mintFillsToken signs a short-lived token identifying user, which the
// client presents to internal/adminhttp's unicast websocket upgrade
// handler to register its fills connection (spec.md §6: login implicitly
// registers the connection for unicast fills).
func (s *Server) mintFillsToken(user string) (string, error) {
	claims := fillsClaims{
		Subject: user,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(fillsTokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.fillsTokenSecret))
}

func (s *Server) handleUpdateCredentials(conn net.Conn, sess *session, req protocol.Request) {
	var v protocol.UpdateCredentialsValues
	if !decodeValues(conn, req, &v) {
		return
	}
	if sess.loggedIn {
		writeLine(conn, protocol.StatusResponse{Response: orderservice.CodeAlreadyLoggedIn, ErrorMessage: "log out before updating credentials"})
		return
	}
	if err := s.acct.UpdatePassword(v.Username, v.OldPassword, v.NewPassword); err != nil {
		writeLine(conn, protocol.StatusResponse{Response: orderservice.CodeOther, ErrorMessage: "update failed"})
		return
	}
	writeLine(conn, protocol.StatusResponse{Response: orderservice.CodeOK})
}

func (s *Server) handleInsertLimit(conn net.Conn, sess *session, req protocol.Request) {
	if !requireLogin(conn, sess) {
		return
	}
	var v protocol.InsertLimitOrderValues
	if !decodeValues(conn, req, &v) {
		return
	}
	if !s.allowOrder(conn, sess.user) {
		return
	}
	id := s.svc.InsertLimit(sess.user, parseSide(v.Type), v.Size, v.Price)
	writeLine(conn, protocol.OrderIDResponse{OrderID: id})
}

func (s *Server) handleInsertMarket(conn net.Conn, sess *session, req protocol.Request) {
	if !requireLogin(conn, sess) {
		return
	}
	var v protocol.InsertMarketOrderValues
	if !decodeValues(conn, req, &v) {
		return
	}
	if !s.allowOrder(conn, sess.user) {
		return
	}
	id := s.svc.InsertMarket(sess.user, parseSide(v.Type), v.Size)
	writeLine(conn, protocol.OrderIDResponse{OrderID: id})
}

func (s *Server) handleInsertStop(conn net.Conn, sess *session, req protocol.Request) {
	if !requireLogin(conn, sess) {
		return
	}
	var v protocol.InsertStopOrderValues
	if !decodeValues(conn, req, &v) {
		return
	}
	if !s.allowOrder(conn, sess.user) {
		return
	}
	id := s.svc.InsertStop(sess.user, parseSide(v.Type), v.Size, v.Price)
	writeLine(conn, protocol.OrderIDResponse{OrderID: id})
}

// allowOrder enforces the per-user order submission rate limit
// (internal/ratelimit), writing a rejection response when exceeded.
func (s *Server) allowOrder(conn net.Conn, user string) bool {
	if s.limiter.AllowOrder(context.Background(), user) {
		return true
	}
	writeLine(conn, protocol.OrderIDResponse{OrderID: orderservice.InvalidOrderID})
	return false
}

func (s *Server) handleCancel(conn net.Conn, sess *session, req protocol.Request) {
	if !requireLogin(conn, sess) {
		return
	}
	var v protocol.CancelOrderValues
	if !decodeValues(conn, req, &v) {
		return
	}
	code := s.svc.Cancel(sess.user, v.OrderID)
	writeLine(conn, protocol.StatusResponse{Response: code})
}

func (s *Server) handleGetPriceHistory(conn net.Conn, req protocol.Request) {
	var v protocol.GetPriceHistoryValues
	if !decodeValues(conn, req, &v) {
		return
	}
	hist, err := s.svc.GetPriceHistory(v.Month)
	if err != nil {
		writeLine(conn, protocol.StatusResponse{Response: orderservice.CodeMalformed, ErrorMessage: err.Error()})
		return
	}
	writeLine(conn, hist)
}

func (s *Server) handleRegisterPriceAlert(conn net.Conn, sess *session, req protocol.Request) {
	if !requireLogin(conn, sess) {
		return
	}
	var v protocol.RegisterPriceAlertValues
	if !decodeValues(conn, req, &v) {
		return
	}
	if !s.svc.RegisterPriceAlert(sess.user, v.ThresholdPrice) {
		writeLine(conn, protocol.StatusResponse{Response: orderservice.CodeNotAuthorizedOrFail, ErrorMessage: "threshold must exceed current market price"})
		return
	}
	writeLine(conn, protocol.RegisterPriceAlertResponse{
		Response: orderservice.CodeOK,
		MulticastInfo: protocol.MulticastInfo{
			MulticastAddress: "", // server writes to a pub/sub subject, not IP multicast; see DESIGN.md
			MulticastPort:    0,
			ActiveUsers:      0,
		},
	})
}

func requireLogin(conn net.Conn, sess *session) bool {
	if sess.loggedIn {
		return true
	}
	writeLine(conn, protocol.StatusResponse{Response: orderservice.CodeNotAuthorizedOrFail, ErrorMessage: "not logged in"})
	return false
}

func decodeValues(conn net.Conn, req protocol.Request, dst any) bool {
	raw, err := json.Marshal(req.Values)
	if err != nil {
		writeLine(conn, protocol.StatusResponse{Response: orderservice.CodeMalformed, ErrorMessage: "malformed values"})
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		writeLine(conn, protocol.StatusResponse{Response: orderservice.CodeMalformed, ErrorMessage: "malformed values"})
		return false
	}
	if err := protocol.Validate(dst); err != nil {
		writeLine(conn, protocol.StatusResponse{Response: orderservice.CodeMalformed, ErrorMessage: err.Error()})
		return false
	}
	return true
}

func parseSide(t string) domain.Side {
	if t == "bid" {
		return domain.Bid
	}
	return domain.Ask
}

func writeLine(conn net.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	data = append(data, '\n')
	conn.Write(data)
}
