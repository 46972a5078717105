package router

import (
	"user-api/internal/api/handlers"
	"user-api/internal/api/middleware"
	"user-api/internal/domain/user"
	"user-api/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Dependencies are the collaborators the HTTP layer is built from.
// Idempotency may be nil.
type Dependencies struct {
	UserService  user.UserService
	Idempotency  *service.IdempotencyService
	HealthChecks map[string]handlers.HealthChecker
	Version      string
}

func NewRouter(deps Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(cors.New(corsConfig()))
	r.Use(gin.Recovery())

	userHandler := handlers.NewUserHandler(deps.UserService)
	healthHandler := handlers.NewHealthHandler(deps.Version, deps.HealthChecks)

	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/ready", healthHandler.ReadinessCheck)
	r.GET("/live", healthHandler.LivenessCheck)

	users := r.Group(handlers.UsersRoute)
	{
		users.GET("", userHandler.ListUsers)
		users.POST("", middleware.Idempotency(deps.Idempotency), userHandler.CreateUser)
		users.GET("/:id", userHandler.GetUser)
		users.HEAD("/:id", userHandler.HeadUser)
		users.PUT("/:id", userHandler.UpdateUser)
		users.PATCH("/:id", userHandler.PatchUser)
		users.DELETE("/:id", userHandler.DeleteUser)
	}
	return r
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.AllowMethods = []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Accept", "Authorization", middleware.IdempotencyKeyHeader, middleware.RequestIDHeader)
	cfg.ExposeHeaders = []string{"Location", "X-Pagination", middleware.RequestIDHeader}
	return cfg
}
