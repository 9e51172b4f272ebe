// @title Exam Prep Platform API
// @version 1.0
// @description Backend server for the exam preparation platform: mock test catalog, timed attempts, scoring and analysis.

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"flag"
	"log"

	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/app"
	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/config"
	"github.com/phaniteluguti/Edutech-mvp-sub000/pkg/configwatcher"
	"github.com/phaniteluguti/Edutech-mvp-sub000/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "run database migrations and exit")
	migrate := flag.Bool("migrate", false, "force database migrations on startup (even in release mode)")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	if *migrateOnly {
		log.Println("Database migration completed, exiting")
		return
	}

	go configwatcher.WatchConfig("configs/config.yaml", cfg, func(newCfg interface{}) {
		if updated, ok := newCfg.(*config.Config); ok {
			logger.SetMode(updated.Server.Mode)
			logger.Log.Info("Configuration reloaded", zap.String("mode", updated.Server.Mode))
		}
	})

	application.Run()
}
