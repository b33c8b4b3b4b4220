package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/fallenleaves/config"
	"github.com/cppla/fallenleaves/controllers"
	"github.com/cppla/fallenleaves/metrics"
	"github.com/cppla/fallenleaves/middleware"
	"github.com/cppla/fallenleaves/services"
	"github.com/cppla/fallenleaves/utils"
)

// authPerMinute bounds login/register attempts per client.
const authPerMinute = 10

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, svc *services.Services) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	accessLog := utils.NewAccessLogger(cfg)
	r.Use(utils.RequestID())
	r.Use(utils.Ginzap(accessLog))
	r.Use(utils.RecoveryWithZap(accessLog, true))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", utils.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", utils.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		// wildcard origins cannot be combined with credentials
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	authController := controllers.NewAuthController(db)
	habitController := controllers.NewHabitController(svc.Habits, svc.Evaluator)
	insightController := controllers.NewInsightController(svc.Insights)
	dashboardController := controllers.NewDashboardController(svc.Dashboard)
	configController := controllers.NewConfigController(svc.Habits)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", middleware.RateLimit(authPerMinute), authController.Register)
	authGroup.POST("/login", middleware.RateLimit(authPerMinute), authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/profile", middleware.AuthRequired(), authController.UpdateProfile)

	// Public catalog endpoints
	api.GET("/habit-kinds", configController.GetHabitKinds)
	api.GET("/features", configController.GetFeatures)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())

	protected.GET("/habits", habitController.ListHabits)
	protected.POST("/habits", habitController.CreateHabit)
	protected.GET("/habits/:id", habitController.GetHabit)
	protected.PATCH("/habits/:id/goal", habitController.UpdateGoal)
	protected.POST("/habits/:id/entries", habitController.AddEntry)
	protected.PUT("/habits/:id/entries", habitController.EditEntries)
	protected.GET("/habits/:id/entries/by-insight", habitController.EntriesByInsight)
	protected.GET("/habits/:id/insight", insightController.ActiveInsight)
	protected.POST("/habits/:id/insight/regenerate", insightController.Regenerate)
	protected.GET("/insights", insightController.ListInsights)
	protected.GET("/dashboard", dashboardController.GetDashboard)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
