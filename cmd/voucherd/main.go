package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/mystery-events/voucherd/internal/app"
)

func main() {
	_ = godotenv.Load()

	var (
		configPath  = flag.String("config", "config.yaml", "path to the configuration file")
		migrateOnly = flag.Bool("migrate", false, "run database migrations and exit")
	)
	flag.Parse()

	if envPath := os.Getenv("VOUCHERD_CONFIG"); envPath != "" && *configPath == "config.yaml" {
		*configPath = envPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *migrateOnly {
		if errMigrate := app.Migrate(ctx, *configPath); errMigrate != nil {
			log.Fatalf("migrate: %v", errMigrate)
		}
		log.Info("migrations applied")
		return
	}

	if errRun := app.RunServer(ctx, *configPath); errRun != nil {
		log.Fatalf("server: %v", errRun)
	}
}
