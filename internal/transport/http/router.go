package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	jwtpkg "backendmanager/console/internal/auth/jwt"
	"backendmanager/console/internal/config"
	"backendmanager/console/internal/dashboard"
	"backendmanager/console/internal/dashboard/views"
	"backendmanager/console/internal/health"
	"backendmanager/console/internal/middleware"
	"backendmanager/console/internal/monitoring"
	"backendmanager/console/internal/websocket"
)

// AuthBridge 会话查找与登录流程，由 auth.Bridge 实现
type AuthBridge interface {
	middleware.SessionLookup
	SignInFlow
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config     *config.Config
	Console    *dashboard.Service
	Auth       AuthBridge
	JWTManager *jwtpkg.Manager
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger

	// 为 nil 时不注册 /ws
	WebSocketHub *websocket.Hub
	// 存活与就绪检查，/health 使用 Reporter 的详细报告
	Health   *health.Checker
	Reporter *monitoring.HealthChecker
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}

	router := gin.New()

	monitor := middleware.NewMonitoringMiddleware(metrics, logger)
	router.Use(monitor.PanicRecovery())
	router.Use(monitor.HTTPMetrics())
	router.Use(middleware.RequestLogger(logger.Named("http")))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	console := NewConsoleHandler(deps.Console, logger)
	authHandler := NewAuthHandler(deps.Auth, deps.JWTManager, CookieConfig{
		Name:   deps.Config.Session.CookieName,
		Secure: deps.Config.Session.SecureCookie,
	}, logger)
	sessionAuth := middleware.NewSessionAuth(deps.JWTManager, deps.Auth, deps.Config.Session.CookieName, logger)

	// 健康检查与指标
	router.GET("/health", func(c *gin.Context) {
		if deps.Reporter == nil {
			c.JSON(http.StatusOK, gin.H{"status": monitoring.HealthStatusHealthy})
			return
		}
		report := deps.Reporter.CheckHealth(c.Request.Context())
		status := http.StatusOK
		if report.Status == monitoring.HealthStatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	})
	if deps.Health != nil {
		router.GET("/health/live", gin.WrapF(deps.Health.Live))
		router.GET("/health/ready", gin.WrapF(deps.Health.Ready))
	}
	router.GET("/metrics", gin.WrapH(metrics.HTTPHandler()))

	// 静态资源
	router.StaticFS("/static", http.FS(views.Static()))

	// ========== Auth Routes ==========
	authRoutes := router.Group("/auth")
	{
		authRoutes.GET("/callback", authHandler.Callback)
		authRoutes.POST("/session", authHandler.CreateSession)
	}

	// ========== Console Routes ==========
	consoleRoutes := router.Group("")
	consoleRoutes.Use(sessionAuth.RequireSession())
	{
		consoleRoutes.GET("/", console.Page)
		consoleRoutes.GET("/sections/:section", console.Section)
		consoleRoutes.GET("/rejections/:id", console.RejectionDetails)
		consoleRoutes.POST("/actions/:action", console.Action)
		consoleRoutes.POST("/actions/:action/:id", console.Action)
		consoleRoutes.PUT("/settings", middleware.ValidateContentType("application/json"), console.SaveSettings)
		consoleRoutes.POST("/refresh", console.Refresh)
		consoleRoutes.GET("/notifications", console.Notifications)
		consoleRoutes.POST("/logout", authHandler.Logout)

		if deps.WebSocketHub != nil {
			consoleRoutes.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub, middleware.SessionID))
		}
	}

	// ========== API Routes ==========
	apiRoutes := router.Group("/api")
	apiRoutes.Use(sessionAuth.RequireSession())
	{
		apiRoutes.GET("/state", console.State)
		apiRoutes.GET("/audit", console.Audit)
	}

	return router
}
