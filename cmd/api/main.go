package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/application/usecase"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/cache"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memstore"
	infrapdf "github.com/jhoicas/stock-ledger/internal/infrastructure/pdf"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/storage"
	httpRouter "github.com/jhoicas/stock-ledger/internal/interfaces/http"
	"github.com/jhoicas/stock-ledger/internal/observability"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

const version = "1.0.0"

const swaggerFile = "./docs/swagger.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.Storage.Driver).
		Msg("iniciando aplicación")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT_SECRET es requerido")
	}

	ctx := context.Background()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName:    cfg.App.Name,
		ServiceVersion: version,
		Environment:    cfg.App.Env,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("configurar trazas")
	}

	metrics := observability.NewMetrics()
	persister, closeStorage, err := storage.Open(ctx, cfg, log.With().Logger(), metrics.PersistRetry)
	if err != nil {
		log.Fatal().Err(err).Msg("abrir almacenamiento")
	}
	defer closeStorage()

	store := memstore.New(persister, log.Component("memstore"))
	if err := store.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("cargar libro de inventario")
	}
	diags, report := store.Diagnostics()
	for _, d := range diags {
		metrics.SetCollectionDegraded(d.Collection, d.Status == memstore.StatusDegraded)
	}
	if store.Degraded() {
		log.Warn().Interface("reconcile", report).Msg("arranque degradado: revisar /health")
	}

	var stockCache inventory.QueryCache
	if cfg.Redis.Addr != "" {
		client, err := cache.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn().Err(err).Msg("redis no disponible, consultas sin caché")
		} else {
			defer client.Close()
			stockCache = cache.NewStockCache(client, cfg.Redis.TTL)
		}
	}

	ledgerUC := inventory.NewLedgerUseCase(store, store, inventory.Options{
		LockTimeout:   cfg.Ledger.LockTimeout,
		SubmitTimeout: cfg.Ledger.SubmitTimeout,
		Recorder:      metrics,
		Logger:        log.Component("ledger"),
	})
	queryUC := inventory.NewQueryUseCase(store, stockCache, log.Component("query"))
	replenishmentUC := inventory.NewReplenishmentUseCase(queryUC)
	reportUC := inventory.NewReportUseCase(queryUC, infrapdf.NewMarotoStockReport(cfg.App.Name))
	productUC := usecase.NewProductUseCase(store, log.Component("products"))
	locationUC := usecase.NewLocationUseCase(store, log.Component("locations"))

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())
	app.Use(metrics.FiberMiddleware())

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "Stock Ledger API",
		}))
	}

	httpRouter.Router(app, httpRouter.RouterDeps{
		ProductUC:     productUC,
		LocationUC:    locationUC,
		Ledger:        ledgerUC,
		Query:         queryUC,
		Replenishment: replenishmentUC,
		Report:        reportUC,
		Diagnostics:   store,
		Metrics:       metrics.Handler(),
		JWTSecret:     cfg.JWT.Secret,
		JWTIssuer:     cfg.JWT.Issuer,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("cierre de trazas")
	}

	log.Info().Msg("aplicación detenida")
}
