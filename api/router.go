package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/dctmfoo/AIResearchScribe/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler carries the collaborators of the HTTP surface.
type Handler struct {
	Generator ArticleGenerator
	Articles  ArticleStore
	Speech    SpeechSynthesizer
	Auth      Authenticator
	Limiter   Limiter
	Logger    *zap.Logger
}

// NewRouter wires middleware and routes. Generation and speech are rate limited
// because every call costs provider credit.
func NewRouter(cfg *config.Config, h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(RequestID())
	router.Use(RequestLogger(h.Logger))
	router.Use(Recovery(h.Logger))
	router.Use(corsMiddleware(cfg.FrontendOrigins))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", APIKeyAuth(cfg.MetricsAPIKey), gin.WrapH(promhttp.Handler()))

	auth := router.Group("/api/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
	}

	policy := RateLimitPolicy{Anonymous: cfg.RateLimitAnonymous, Authenticated: cfg.RateLimitAuthenticated}

	articles := router.Group("/api/articles")
	articles.Use(OptionalAuth(h.Auth))
	{
		articles.POST("/generate", RateLimit("generate", h.Limiter, policy, h.Logger), h.generateArticle)
		articles.GET("", h.listArticles)
		articles.PATCH("/bulk/archive", h.bulkArchiveArticles)
		articles.GET("/:id", h.getArticle)
		articles.GET("/:id/citations", h.getCitations)
		articles.GET("/:id/bibliography", h.getBibliography)
		articles.POST("/:id/speech", RateLimit("speech", h.Limiter, policy, h.Logger), h.synthesizeSpeech)
		articles.PATCH("/:id/archive", h.archiveArticle)
	}

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	// browsers refuse credentials with a wildcard origin
	allowCreds := !(len(allowed) == 1 && allowed[0] == "*")

	return cors.New(cors.Config{
		AllowOrigins:     allowed,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader, "Retry-After"},
		AllowCredentials: allowCreds,
		MaxAge:           12 * time.Hour,
	})
}
