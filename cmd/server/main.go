package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"chemledger/internal/config"
	cronrunner "chemledger/internal/cron"
	"chemledger/internal/db"
	"chemledger/internal/handler"
	"chemledger/internal/logger"
	"chemledger/internal/registry"
	gormrepository "chemledger/internal/repository/gorm"
	"chemledger/internal/service"

	_ "chemledger/docs"
)

func main() {
	cfgPath := os.Getenv("CL_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("CL_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	registryHTTP := &http.Client{Timeout: cfg.Registry.Timeout}
	oracle := registry.NewClient(registryHTTP, cfg.Registry.BaseURL)
	store := gormrepository.New(dbConn.Gorm)

	eventService := &service.EventService{
		Repo:    store,
		Logger:  logger,
		BufSize: cfg.Events.SubscriberBuf,
	}
	locks := service.NewKeyLock()
	auctionService := &service.AuctionService{
		Repo:   store,
		Oracle: oracle,
		Events: eventService,
		Logger: logger,
		Locks:  locks,
	}
	shipmentService := &service.ShipmentService{
		Repo:   store,
		Oracle: oracle,
		Events: eventService,
		Logger: logger,
		Locks:  locks,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(handler.RequestID())
	engine.Use(handler.AccessLog(logger))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm, Oracle: oracle}
	healthHandler.Register(engine)
	auctionHandler := &handler.AuctionHandler{Repo: store, Auctions: auctionService}
	auctionHandler.Register(engine)
	shipmentHandler := &handler.ShipmentHandler{Repo: store, Shipments: shipmentService}
	shipmentHandler.Register(engine)
	eventHandler := &handler.EventHandler{Events: eventService, Logger: logger}
	eventHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx)
		if _, err := cronRunner.Add(cfg.Cron.EventSweep, cronrunner.EventSweepJob(eventService, cfg.Events.Retention, logger)); err != nil {
			logger.Warn("cron register event sweep failed", zap.Error(err))
		}
		if _, err := cronRunner.Add(cfg.Cron.RegistryProbe, cronrunner.RegistryProbeJob(oracle, logger)); err != nil {
			logger.Warn("cron register registry probe failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Stakeholder,X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
