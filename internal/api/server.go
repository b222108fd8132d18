package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"clubsite/internal/config"
	"clubsite/internal/content"
	"clubsite/internal/db"
	"clubsite/internal/linker"
	"clubsite/internal/redis"
	"clubsite/internal/security"
)

type Server struct {
	log     *slog.Logger
	db      *db.DB
	redis   *redis.Client
	linker  *linker.Service
	store   linker.AccountStore
	content *content.Store
	cfg     config.Config
	router  *gin.Engine

	// in-process fallback when redis can't serve the rate limit
	fallback *security.LimiterStore
}

func NewServer(log *slog.Logger, dbConn *db.DB, redisClient *redis.Client, svc *linker.Service, store linker.AccountStore, contentStore *content.Store, cfg config.Config) *Server {
	s := &Server{
		log:      log,
		db:       dbConn,
		redis:    redisClient,
		linker:   svc,
		store:    store,
		content:  contentStore,
		cfg:      cfg,
		router:   gin.New(),
		fallback: security.NewLimiterStore(rate.Limit(1), 60, 10*time.Minute),
	}

	gin.SetMode(gin.ReleaseMode)
	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())
	r.Use(s.rateLimitMiddleware())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", s.health)
		v1.GET("/discord/member-count", s.memberCount)
		v1.GET("/events", s.listEvents)
		v1.GET("/posts", s.listPosts)

		// account linking requires a site session
		linked := v1.Group("/discord")
		linked.Use(s.sessionMiddleware())
		{
			linked.GET("/profile", s.profile)
			linked.POST("/link", s.link)
			linked.POST("/unlink", s.unlink)
		}

		// content management is restricted to the team
		admin := v1.Group("/admin")
		admin.Use(s.adminAuthMiddleware())
		{
			admin.POST("/events", s.createEvent)
			admin.PUT("/events/:id", s.updateEvent)
			admin.DELETE("/events/:id", s.deleteEvent)
			admin.POST("/posts", s.createPost)
			admin.PUT("/posts/:id", s.updatePost)
			admin.DELETE("/posts/:id", s.deletePost)
		}
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	dbStatus := "connected"
	if err := s.db.Pool.Ping(ctx); err != nil {
		dbStatus = "disconnected"
	}

	redisStatus := "connected"
	if err := s.redis.RDB().Ping(ctx).Err(); err != nil {
		redisStatus = "disconnected"
	}

	status := "healthy"
	if dbStatus != "connected" || redisStatus != "connected" {
		status = "unhealthy"
	}

	response := gin.H{
		"status":   status,
		"database": dbStatus,
		"redis":    redisStatus,
	}

	if status == "unhealthy" {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}
