package handler

import (
	"slices"
	"time"

	"github.com/SergeiKhy/shuffle/internal/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Links     *LinkHandler
	Redirects *RedirectHandler
	Dashboard *DashboardHandler
	Auth      *AuthHandler
	Health    *HealthHandler

	RateLimiter *middleware.RateLimiter
	AdminAuth   *middleware.AdminAuth
	CORSOrigins []string
	Logger      *zap.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(Templates)

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Middleware для логгирования
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	})

	if len(cfg.CORSOrigins) > 0 {
		corsConfig := cors.Config{
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
			ExposeHeaders:    []string{"Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}
		if slices.Contains(cfg.CORSOrigins, "*") {
			corsConfig.AllowAllOrigins = true
			corsConfig.AllowCredentials = false
		} else {
			corsConfig.AllowOrigins = cfg.CORSOrigins
		}
		router.Use(cors.New(corsConfig))
	}

	// Rate limiting для всех запросов
	if cfg.RateLimiter != nil {
		router.Use(cfg.RateLimiter.Middleware())
	}

	// API v.1
	v1 := router.Group("/api/v1")
	{
		if cfg.Health != nil {
			v1.GET("/health", cfg.Health.Health)
		}
		if cfg.Auth != nil {
			v1.POST("/auth/login", cfg.Auth.Login)
		}

		// Админские эндпоинты защищены API ключом или JWT
		admin := v1.Group("")
		if cfg.AdminAuth != nil {
			admin.Use(cfg.AdminAuth.Middleware())
		}

		if cfg.Links != nil {
			admin.GET("/links", cfg.Links.ListLinks)
			admin.POST("/links", cfg.Links.CreateLink)
			admin.GET("/links/:id", cfg.Links.GetLink)
			admin.PUT("/links/:id", cfg.Links.UpdateLink)
			admin.DELETE("/links/:id", cfg.Links.DeleteLink)
			admin.GET("/links/:id/pixel", cfg.Links.DiagnosePixel)
		}

		if cfg.Dashboard != nil {
			admin.GET("/dashboard/stats", cfg.Dashboard.Stats)
			admin.GET("/dashboard/search", cfg.Dashboard.Search)
			admin.GET("/dashboard/export", cfg.Dashboard.Export)
		}
	}

	// Редиректы без аутентификации
	if cfg.Redirects != nil {
		router.GET("/r", cfg.Redirects.RedirectQuery)
		router.GET("/p/:code", cfg.Redirects.Landing)
		router.GET("/:code", cfg.Redirects.Redirect)
	}

	return router
}
