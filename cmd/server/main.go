package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-service/config"
	"storefront-service/internal/api"
	"storefront-service/internal/broker"
	"storefront-service/internal/cart"
	"storefront-service/internal/models"
	"storefront-service/internal/notify"
	"storefront-service/internal/payment"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/service"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
	"storefront-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service")

	tp, err := util.InitTracer("storefront-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	mailer, err := notify.NewMailer(cfg.Email)
	if err != nil {
		log.Fatalf("Failed to initialize mailer: %v", err)
	}

	vatRate, err := decimal.NewFromString(cfg.Business.VATRate)
	if err != nil {
		log.Fatalf("Invalid VAT rate %q: %v", cfg.Business.VATRate, err)
	}
	pricing := cart.Pricing{
		Currency:              cfg.Business.Currency,
		VATRate:               vatRate,
		FreeShippingThreshold: cfg.Business.FreeShippingThreshold,
		ShippingFee:           cfg.Business.ShippingFee,
	}
	cartTTL := time.Duration(cfg.Business.CartTTLSeconds) * time.Second
	cartService := cart.NewService(redisClient, db, pricing, cartTTL)

	providers := buildProviders(cfg.Payment)

	checkoutService := service.NewCheckoutService(
		db, cartService, redisClient, providers, eventPublisher, cfg.Business.Currency)
	customerService := service.NewCustomerService(db, eventPublisher, cfg.Email.StoreURL)
	profileService := service.NewProfileService(db)
	adminService := service.NewAdminService(db)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	notifyConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
	notifyWorker := worker.NewNotificationWorker(notifyConsumer, mailer, db)
	go func() {
		if err := notifyWorker.Start(workerCtx); err != nil {
			log.Printf("Notification worker error: %v", err)
		}
	}()

	orderTimeout := time.Duration(cfg.Business.OrderTimeoutSeconds) * time.Second
	reconciler := worker.NewReconciler(db, eventPublisher, orderTimeout)
	go func() {
		if err := reconciler.Start(workerCtx); err != nil {
			log.Printf("Reconciler error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(cartService, checkoutService, customerService, profileService, adminService, db)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	notifyWorker.Stop()

	log.Println("Server exited")
}

// buildProviders registers a provider per accepted payment method type.
// PAYMENT_MOCK=true swaps in randomized mocks for local runs.
func buildProviders(cfg config.PaymentConfig) *payment.Registry {
	registry := payment.NewRegistry()

	if cfg.MockProviders {
		registry.Register(models.PaymentMethodCard, payment.NewMockProvider("mock-card", 0.9))
		registry.Register(models.PaymentMethodPayPal, payment.NewMockProvider("mock-paypal", 0.9))
		registry.Register(models.PaymentMethodApplePay, payment.NewMockProvider("mock-apple-pay", 0.9))
		registry.Register(models.PaymentMethodGooglePay, payment.NewMockProvider("mock-google-pay", 0.9))
		return registry
	}

	registry.Register(models.PaymentMethodCard,
		payment.NewCardProvider(cfg.GatewayURL, cfg.GatewayKey))
	registry.Register(models.PaymentMethodPayPal,
		payment.NewPayPalProvider(cfg.PayPalURL, cfg.PayPalID, cfg.PayPalSecret))
	registry.Register(models.PaymentMethodApplePay,
		payment.NewWalletProvider("apple_pay", cfg.WalletURL, cfg.MerchantID))
	registry.Register(models.PaymentMethodGooglePay,
		payment.NewWalletProvider("google_pay", cfg.WalletURL, cfg.MerchantID))
	return registry
}
