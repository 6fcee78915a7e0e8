package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/mystery-events/voucherd/internal/config"
	"github.com/mystery-events/voucherd/internal/consistency"
	"github.com/mystery-events/voucherd/internal/db"
	"github.com/mystery-events/voucherd/internal/fulfillment"
	"github.com/mystery-events/voucherd/internal/gateway"
	adminapi "github.com/mystery-events/voucherd/internal/http/api/admin"
	"github.com/mystery-events/voucherd/internal/http/api/front"
	"github.com/mystery-events/voucherd/internal/logging"
	"github.com/mystery-events/voucherd/internal/mail"
	"github.com/mystery-events/voucherd/internal/payment"
	"github.com/mystery-events/voucherd/internal/render"
	"github.com/mystery-events/voucherd/internal/settings"
)

// Migrate opens the database and runs migrations.
func Migrate(_ context.Context, configPath string) error {
	cfg, errLoad := config.Load(config.ResolveConfigPath(configPath))
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the voucher service: storage, gateway, delivery pipeline,
// HTTP surfaces and the background consistency sweeper.
func RunServer(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(config.ResolveConfigPath(configPath))
	if errLoad != nil {
		return errLoad
	}
	logging.Setup(cfg.Log)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	store := settings.NewStore()
	if errRefresh := store.Refresh(ctx, conn); errRefresh != nil {
		log.Warnf("settings snapshot load failed, using defaults: %v", errRefresh)
	}

	gatewayClient := gateway.NewStripeClient(cfg.Stripe)
	renderer := render.NewPDFRenderer()
	mailer := mail.NewSMTPMailer(cfg.SMTP)

	pipeline := fulfillment.NewPipeline(conn, renderer, mailer, store, cfg.Fulfillment.PublicBaseURL, cfg.SendTimeout())
	processor := payment.NewProcessor(conn, func(fctx context.Context, voucherID string) error {
		_, errRun := pipeline.Run(fctx, voucherID)
		return errRun
	})
	repairer := consistency.NewRepairer(conn)

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if interval := cfg.SweepInterval(); interval > 0 {
		sweeper := consistency.NewSweeper(repairer, rdb, store, interval, cfg.Consistency.ScanWindow)
		sweeper.Start(ctx)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	front.RegisterFrontRoutes(engine, conn, gatewayClient, processor)
	adminapi.RegisterAdminRoutes(engine, conn, cfg, processor, pipeline, repairer, mailer, store)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("voucherd listening on %s", cfg.Server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			log.Warnf("shutdown: %v", errShutdown)
		}
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}
