package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dzshop/order-orchestrator/internal/app"
	"github.com/dzshop/order-orchestrator/internal/carrier"
	"github.com/dzshop/order-orchestrator/internal/config"
	"github.com/dzshop/order-orchestrator/internal/gateway"
	"github.com/dzshop/order-orchestrator/internal/handler"
	"github.com/dzshop/order-orchestrator/internal/postgres"
	"github.com/dzshop/order-orchestrator/internal/repo"
	"github.com/dzshop/order-orchestrator/internal/service"
	"github.com/dzshop/order-orchestrator/pkg/audit"
	"github.com/dzshop/order-orchestrator/pkg/cache"
	"github.com/dzshop/order-orchestrator/pkg/trm"

	"github.com/joho/godotenv"
)

func main() {
	conf := config.New()
	logger := newLogger(conf.Env)
	panicIfErr("invalid config", conf.Validate())

	db, err := postgres.New(conf.Postgres)
	panicIfErr("failed to connect to db", err)
	defer db.Close()
	logger.Info("postgres connected")

	ordersRepo := repo.NewOrdersRepo(db)
	cartsRepo := repo.NewCartsRepo(db)
	inventoryRepo := repo.NewInventoryRepo(db)
	txManager := trm.NewManager(db)

	trackingCache := cache.NewLRUCache(conf.Cache.Capacity, conf.Cache.TTL)
	auditPublisher := audit.NewPublisher(logger, audit.Config{
		Brokers:      conf.Audit.Brokers,
		Topic:        conf.Audit.Topic,
		BatchTimeout: conf.Audit.BatchTimeout,
	})

	gatewayClient := gateway.NewClient(conf.Gateway)
	carrierClient := carrier.NewClient(conf.Carrier)

	deliveryService := service.NewDeliveryService(logger, txManager, ordersRepo, carrierClient, auditPublisher, trackingCache)
	paymentService := service.NewPaymentService(logger, txManager, ordersRepo, cartsRepo, inventoryRepo, auditPublisher)
	orchestrator := service.NewOrchestrator(
		logger, txManager,
		ordersRepo, cartsRepo, inventoryRepo,
		gatewayClient, deliveryService, auditPublisher, trackingCache,
		service.OrchestratorConfig{
			ShippingPrice: conf.Orders.ShippingPrice,
			Currency:      conf.Orders.Currency,
			SuccessURL:    conf.Gateway.SuccessURL,
			CancelURL:     conf.Gateway.CancelURL,
		},
	)

	httpHandler := handler.NewHTTPHandler(logger, orchestrator)
	webhookHandler := handler.NewWebhookHandler(logger, gatewayClient, paymentService, deliveryService)
	handler.RegisterMetrics()

	app := app.New(logger, conf)
	app.SetHTTPHandlers(httpHandler, webhookHandler)
	app.SetStarters(trackingCache)
	app.SetClosers(auditPublisher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	panicIfErr("failed to start app", app.Start(ctx))
	<-ctx.Done()
	panicIfErr("failed to stop app", app.Stop())
}

func init() {
	godotenv.Load()
}

func newLogger(env string) *slog.Logger {
	switch env {
	case "production":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

func panicIfErr(prefix string, err error) {
	if err != nil {
		panic(prefix + ": " + err.Error())
	}
}
