package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/config"
	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/controller"
	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/repository"
	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/service"
	"github.com/phaniteluguti/Edutech-mvp-sub000/pkg/database"
	"github.com/phaniteluguti/Edutech-mvp-sub000/pkg/logger"
	"github.com/phaniteluguti/Edutech-mvp-sub000/pkg/monitoring"
	"github.com/phaniteluguti/Edutech-mvp-sub000/pkg/security"
	"github.com/phaniteluguti/Edutech-mvp-sub000/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services
}

type repositories struct {
	user     *repository.UserRepository
	mockTest *repository.MockTestRepository
	attempt  *repository.AttemptRepository
}

type services struct {
	token   *service.TokenService
	auth    *service.AuthService
	catalog *service.CatalogService
	attempt *service.AttemptService
	results *service.ResultsService
}

type controllers struct {
	auth     *controller.AuthController
	mockTest *controller.MockTestController
	attempt  *controller.AttemptController
	health   *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:     repository.NewUserRepository(db),
		mockTest: repository.NewMockTestRepository(db),
		attempt:  repository.NewAttemptRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.token = service.NewTokenService(rdb)
	s.auth = service.NewAuthService(repos.user, s.token, cfg)
	s.catalog = service.NewCatalogService(repos.mockTest, rdb)

	// The lifecycle takes its collaborators as interfaces so tests can
	// swap in fake clocks and in-memory stores.
	s.attempt = service.NewAttemptService(repos.attempt, s.catalog, service.SystemClock{})
	s.results = service.NewResultsService(repos.attempt, s.catalog)

	return s
}

func (a *App) initControllers(s *services, repos *repositories, db *gorm.DB) *controllers {
	return &controllers{
		auth:     controller.NewAuthController(s.auth),
		mockTest: controller.NewMockTestController(s.catalog, repos.attempt),
		attempt:  controller.NewAttemptController(s.attempt, s.results),
		health:   controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 1000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks runs the expired-attempt sweep. Attempts whose
// deadline passed are funneled through the normal submit path; a client
// that beats the sweep to it just wins the race.
func (a *App) startBackgroundTasks(s *services) {
	if !a.Config.Attempts.SweepEnabled {
		return
	}

	interval := time.Duration(a.Config.Attempts.SweepIntervalSeconds) * time.Second
	go func() {
		ticker := time.NewTicker(interval)
		for range ticker.C {
			if err := s.attempt.SubmitExpired(); err != nil {
				logger.Log.Error("expired attempt sweep error", zap.Error(err))
			}
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, repos, db)

	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		_, err := tracing.InitTracer(cfg.Server.Name, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, repos, cfg)

	app.startBackgroundTasks(services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
