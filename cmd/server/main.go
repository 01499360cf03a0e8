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

	"venue-service/config"
	"venue-service/internal/api"
	"venue-service/internal/broker"
	"venue-service/internal/redisclient"
	"venue-service/internal/service"
	"venue-service/internal/store"
	"venue-service/internal/util"
	"venue-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting venue service")

	tp, err := util.InitTracer("venue-service", cfg.Observ.JaegerEndpoint)
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

	processor := service.NewMockProcessor(cfg.Business.MockPaymentSuccessRate)
	catalog := service.NewCatalogClient(db, redisClient)
	tableManager := service.NewTableSessionManager(db)
	ticketRouter := service.NewKitchenTicketRouter(
		db,
		catalog,
		redisClient,
		eventPublisher,
		time.Duration(cfg.Business.BackfillLiveWindowMinutes)*time.Minute,
	)
	lifecycle := service.NewOrderLifecycleManager(
		db,
		tableManager,
		ticketRouter,
		processor,
		eventPublisher,
		time.Duration(cfg.Business.PaymentConfirmTimeoutSeconds)*time.Second,
	)
	dashboard := service.NewDashboardAggregator(db)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	paymentConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayments, cfg.Kafka.ConsumerGroup)
	webhookWorker := worker.NewPaymentWebhookWorker(paymentConsumer, lifecycle, db)
	go func() {
		if err := webhookWorker.Start(workerCtx); err != nil {
			log.Printf("Payment webhook worker error: %v", err)
		}
	}()

	backfillWorker := worker.NewBackfillWorker(
		ticketRouter,
		db,
		time.Duration(cfg.Business.BackfillIntervalSeconds)*time.Second,
		time.Duration(cfg.Business.BackfillLiveWindowMinutes)*time.Minute,
	)
	go func() {
		if err := backfillWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Backfill worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(lifecycle, tableManager, ticketRouter, dashboard, cfg.Business.DefaultTimezone)
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
	webhookWorker.Stop()

	log.Println("Server exited")
}
