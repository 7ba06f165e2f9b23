package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"universo_lite/internal/auth"
	"universo_lite/internal/config"
	"universo_lite/internal/events"
	"universo_lite/internal/http/handlers"
	"universo_lite/internal/ratelimit"
)

// NewRouter wires every route. Public endpoints (auth, connectors) are
// rate-limited by client IP; everything under /api/v1 additionally requires
// a valid JWT and is rate-limited per user.
func NewRouter(db *gorm.DB, cfg config.Config, hub *events.Hub, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	rl := ratelimit.New(cfg.RateRPS, cfg.RateBurst)
	authMW := auth.JWT(db, cfg.JWTSecret)

	// Public routes
	public := r.Group("/api/v1", rl.Middleware())
	{
		public.POST("/auth/register", handlers.Register(db))
		public.POST("/auth/login", handlers.Login(db, cfg.JWTSecret, cfg.JWTTTL))
		public.POST("/auth/logout", handlers.Logout())
		public.POST("/connectors/register", handlers.RegisterConnector(db, hub))
		public.POST("/connectors/heartbeat", handlers.ConnectorHeartbeat(db, hub))
	}

	api := r.Group("/api/v1", authMW, rl.Middleware())
	{
		api.GET("/me", handlers.Me(db))

		// Clusters
		api.GET("/clusters", handlers.ListClusters(db))
		api.POST("/clusters", handlers.CreateCluster(db, hub))
		api.GET("/clusters/:id", handlers.GetCluster(db))
		api.PATCH("/clusters/:id", handlers.RequireClusterPerm(db, "clusters:write"), handlers.UpdateCluster(db, hub))
		api.DELETE("/clusters/:id", handlers.RequireClusterPerm(db, "clusters:delete"), handlers.DeleteCluster(db, hub))

		// Members
		api.GET("/clusters/:id/members", handlers.RequireClusterPerm(db, "members:read"), handlers.ListMembers(db))
		api.POST("/clusters/:id/members", handlers.RequireClusterPerm(db, "members:write"), handlers.AddMember(db, hub))
		api.PATCH("/clusters/:id/members/:userID", handlers.RequireClusterPerm(db, "members:write"), handlers.UpdateMemberRole(db, hub))
		api.DELETE("/clusters/:id/members/:userID", handlers.RequireClusterPerm(db, "members:write"), handlers.RemoveMember(db, hub))

		// Domains
		api.GET("/domains", handlers.ListDomains(db))
		api.POST("/domains", handlers.CreateDomain(db, hub))
		api.GET("/domains/:id", handlers.GetDomain(db))
		api.PATCH("/domains/:id", handlers.UpdateDomain(db, hub))
		api.DELETE("/domains/:id", handlers.DeleteDomain(db, hub))
		api.POST("/clusters/:id/domains/:domainID", handlers.RequireClusterPerm(db, "domains:write"), handlers.AttachDomain(db, hub))
		api.DELETE("/clusters/:id/domains/:domainID", handlers.RequireClusterPerm(db, "domains:write"), handlers.DetachDomain(db, hub))

		// Resources
		api.GET("/resources", handlers.ListResources(db))
		api.POST("/resources", handlers.CreateResource(db, hub))
		api.GET("/resources/:id", handlers.GetResource(db))
		api.PATCH("/resources/:id", handlers.UpdateResource(db, hub))
		api.DELETE("/resources/:id", handlers.DeleteResource(db, hub))
		api.POST("/domains/:id/resources/:resourceID", handlers.AttachResource(db, hub))
		api.DELETE("/domains/:id/resources/:resourceID", handlers.DetachResource(db, hub))

		// Connector tokens
		api.POST("/clusters/:id/tokens", handlers.RequireClusterPerm(db, "tokens:write"), handlers.CreateConnectorToken(db))

		// Audit trail
		api.GET("/audit", handlers.ListAudit(db))

		// Realtime change feed
		api.GET("/ws/events", handlers.EventsWS(db, hub))
	}

	return r
}

// requestLog logs each request with method, path, status and latency.
func requestLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
