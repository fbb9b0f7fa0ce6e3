// Package server assembles the HTTP API.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/huudong03uet/credit-scoring/internal/access"
	"github.com/huudong03uet/credit-scoring/internal/auth"
	"github.com/huudong03uet/credit-scoring/internal/collateral"
	"github.com/huudong03uet/credit-scoring/internal/identity"
	"github.com/huudong03uet/credit-scoring/internal/loan"
	"github.com/huudong03uet/credit-scoring/internal/metrics"
	"github.com/huudong03uet/credit-scoring/internal/scoring"
	"github.com/huudong03uet/credit-scoring/internal/token"
	"github.com/huudong03uet/credit-scoring/internal/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-ID"

// Deps are the services the router exposes. Explainer may be nil.
type Deps struct {
	Access     access.Controller
	Identity   identity.Service
	Metrics    metrics.Service
	Tokens     token.Service
	Collateral collateral.Service
	Loans      loan.Service
	Scoring    scoring.Service
	Explainer  scoring.Explainer
	Hub        *websocket.Hub
	Auth       *auth.AuthMiddleware

	AllowedOrigins []string
	Clock          clockwork.Clock
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger())
	router.Use(auth.SecurityHeaders())
	router.Use(auth.CORS(d.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": d.Clock.Now().Unix(),
			"service":   "credit-scoring-api",
		})
	})

	requireAuth := d.Auth.RequireAuth()
	v1 := router.Group("/api/v1")
	{
		access.NewHandler(d.Access).RegisterRoutes(v1, requireAuth)
		identity.NewHandler(d.Identity).RegisterRoutes(v1, requireAuth)
		metrics.NewHandler(d.Metrics).RegisterRoutes(v1, requireAuth)
		token.NewHandler(d.Tokens).RegisterRoutes(v1, requireAuth)
		collateral.NewHandler(d.Collateral).RegisterRoutes(v1, requireAuth)
		loan.NewHandler(d.Loans).RegisterRoutes(v1, requireAuth)
		scoring.NewHandler(d.Scoring, d.Explainer).RegisterRoutes(v1, requireAuth)
	}

	if d.Hub != nil {
		websocket.NewHandler(d.Hub, d.AllowedOrigins).RegisterRoutes(router)
	}
	return router
}

// RequestID tags each request with an id, reusing the caller's if sent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs one line per request through logrus
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		fields := logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"request_id": c.GetString("request_id"),
			"client_ip":  c.ClientIP(),
		}
		entry := logrus.WithFields(fields)
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Debug("Request served")
		}
	}
}
