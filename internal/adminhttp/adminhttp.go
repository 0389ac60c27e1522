// Package adminhttp is the admin/ops HTTP surface (spec.md §12): health,
// Prometheus scrape, price history and book-depth introspection, behind a
// JWT bearer check. Grounded on the teacher's gin-gonic HTTP stack and
// internal/api/middleware.SecurityMiddleware.JWTAuth, adapted from
// golang-jwt/jwt/v5's ParseWithClaims as used in internal/hft/middleware.
package adminhttp

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/crossx-exchange/crossx/internal/book"
	"github.com/crossx-exchange/crossx/internal/notify"
	"github.com/crossx-exchange/crossx/internal/orderservice"
)

// Server wraps a gin engine plus the underlying net/http.Server so it can
// be started/stopped as an fx lifecycle hook, mirroring how the TCP
// listener is managed in internal/server.
type Server struct {
	engine  *gin.Engine
	http    *http.Server
	unicast *notify.UnicastHub
	logger  *zap.Logger
}

// Claims is the token payload minted for admin sessions.
type Claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// New builds the admin HTTP surface over svc/book, securing every route
// except /healthz with a JWT bearer check against secret. unicastPath
// (cfg.Notify.UnicastPath) is upgraded to a per-user fills websocket,
// authenticated with the fillsToken internal/server mints on login,
// rather than the Authorization-header bearer check the other routes use
// (a browser websocket client cannot set arbitrary request headers).
func New(addr, jwtSecret string, svc *orderservice.Service, b *book.PriceBook, unicast *notify.UnicastHub, unicastPath string, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET(unicastPath, unicastHandler(jwtSecret, unicast, logger))

	authorized := engine.Group("/")
	authorized.Use(jwtAuth(jwtSecret, logger))
	authorized.GET("/metrics", gin.WrapH(promhttp.Handler()))
	authorized.GET("/v1/price-history/:month", priceHistoryHandler(svc))
	authorized.GET("/v1/book/:side", bookDepthHandler(b))

	return &Server{
		engine:  engine,
		http:    &http.Server{Addr: addr, Handler: engine},
		unicast: unicast,
		logger:  logger,
	}
}

// Start begins serving in a background goroutine; errors after shutdown
// are swallowed (http.ErrServerClosed).
func (s *Server) Start() {
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("admin http server stopped unexpectedly", zap.Error(err))
		}
	}()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func jwtAuth(secret string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			logger.Warn("admin auth rejected token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set("subject", claims.Subject)
		c.Next()
	}
}

func priceHistoryHandler(svc *orderservice.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		hist, err := svc.GetPriceHistory(c.Param("month"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, hist)
	}
}

var unicastUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// unicastHandler authenticates a fills token passed as the "token" query
// parameter (internal/server's handleLogin mints it), upgrades to a
// websocket, and registers the connection with unicast for the lifetime
// of the socket, deregistering on close. Grounded on the teacher's
// internal/api/websocket/pairs_ws.go connection-lifecycle loop.
func unicastHandler(jwtSecret string, unicast *notify.UnicastHub, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := &Claims{}
		token, err := jwt.ParseWithClaims(c.Query("token"), claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired fills token"})
			return
		}

		conn, err := unicastUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("unicast websocket upgrade failed", zap.Error(err))
			return
		}

		user := claims.Subject
		unicast.Register(user, conn)
		defer unicast.Deregister(user)

		// The client only receives fills on this connection; block on
		// reads purely to notice when it closes.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

func bookDepthHandler(b *book.PriceBook) gin.HandlerFunc {
	return func(c *gin.Context) {
		side := c.Param("side")
		if side != "bid" && side != "ask" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "side must be bid or ask"})
			return
		}
		bidSide := side == "bid"
		c.JSON(http.StatusOK, gin.H{
			"side":          side,
			"totalLiquidity": b.TotalLiquidity(bidSide),
		})
	}
}
