package router

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-kiosk/internal/config"
	"github.com/stemsi/exstem-kiosk/internal/handler"
	"github.com/stemsi/exstem-kiosk/internal/middleware"
	"github.com/stemsi/exstem-kiosk/internal/response"
	"github.com/stemsi/exstem-kiosk/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	WS            *handler.WSHandler
	Admin         *handler.AdminHandler
	Exam          *handler.ExamHandler
	Monitor       *handler.MonitorHandler
	System        *handler.SystemHandler
}

// Deps carries the services the middlewares need.
type Deps struct {
	Auth         *service.AuthService
	Sessions     *service.ExamSessionService
	LoginLimiter gin.HandlerFunc
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(deps Deps, handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// The live monitor flushes per event, so it stays uncompressed.
	brotliCfg := middleware.DefaultBrotliConfig
	brotliCfg.Skipper = func(c *gin.Context) bool {
		return strings.HasSuffix(c.Request.URL.Path, "/monitor")
	}
	router.Use(middleware.BrotliWithConfig(brotliCfg))

	router.GET("/health", handlers.System.Health)

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	publicAPI := router.Group("/api/v1")
	{
		publicAPI.GET("/exam", middleware.CacheControl(10), handlers.Exam.GetPublishedExam)
	}

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	if deps.LoginLimiter != nil {
		auth.Use(deps.LoginLimiter)
	}
	{
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/admin/login", handlers.Auth.AdminLogin)
	}

	// ─── 2. Student Group (JWT + Active Session) ───────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.NoStore(),
		middleware.RequireStudentJWT(deps.Auth),
		middleware.RequireActiveSession(deps.Sessions),
	)
	{
		studentAPI.GET("/session", handlers.StudentPortal.GetSession)
		studentAPI.GET("/paper", handlers.StudentPortal.GetPaper)
		studentAPI.PUT("/answers/:field", handlers.StudentPortal.SetAnswer)
		studentAPI.POST("/save", handlers.StudentPortal.Save)
		studentAPI.POST("/events", handlers.StudentPortal.ReportEvent)
		studentAPI.POST("/submit", handlers.StudentPortal.Submit)
		studentAPI.POST("/submit/retry", handlers.StudentPortal.RetrySubmit)
		studentAPI.GET("/result", handlers.StudentPortal.DownloadResult)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireStudentJWT(deps.Auth),
		middleware.RequireActiveSession(deps.Sessions),
	)
	{
		ws.GET("/student/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.NoStore(), middleware.RequireAdminJWT(deps.Auth))
	{
		adminAPI.GET("/publish", handlers.Admin.GetPublished)
		adminAPI.POST("/publish", handlers.Admin.Publish)
		adminAPI.DELETE("/publish", handlers.Admin.ClearPublished)

		adminAPI.GET("/export/config", handlers.Admin.ExportConfig)
		adminAPI.GET("/export/submissions.csv", handlers.Admin.ExportSubmissions)

		adminAPI.GET("/submissions", handlers.Admin.ListSubmissions)
		adminAPI.GET("/sessions", handlers.Admin.ListSessions)

		adminAPI.GET("/monitor", handlers.Monitor.MonitorSSE)
		adminAPI.GET("/system", handlers.System.Status)
	}

	return router
}
