package app

import (
	"github.com/phaniteluguti/Edutech-mvp-sub000/docs"
	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/config"
	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/middleware"
	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/model"
	"github.com/phaniteluguti/Edutech-mvp-sub000/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	a.registerPublicRoutes(router, c)

	// catalog browsing works anonymously; a valid token upgrades the
	// view (teachers and admins also see unpublished tests)
	browse := router.Group("/api")
	browse.Use(middleware.TryAuthMiddleware(cfg))
	{
		browse.GET("/mock-tests", c.mockTest.ListTests)
		browse.GET("/mock-tests/:id", c.mockTest.GetTest)
	}

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
		public.POST("/auth/forgot-password", c.auth.ForgotPassword)
		public.POST("/auth/reset-password", c.auth.ResetPassword)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/profile", c.auth.GetProfile)

	// attempt lifecycle
	rg.POST("/mock-tests/:id/attempts/start", c.attempt.Start)
	rg.GET("/attempts/:id", c.attempt.Status)
	rg.PUT("/attempts/:id/answers", c.attempt.SaveAnswer)
	rg.POST("/attempts/:id/submit", c.attempt.Submit)
	rg.GET("/attempts/:id/results", c.attempt.GetResults)
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.POST("/mock-tests", c.mockTest.CreateTest)
		teacher.PUT("/mock-tests/:id", c.mockTest.UpdateTest)
		teacher.DELETE("/mock-tests/:id", c.mockTest.DeleteTest)
		teacher.GET("/mock-tests/:id/attempts", c.mockTest.ListAttempts)
		teacher.POST("/attempts/:id/reset", c.mockTest.ResetAttempt)
	}
}
