package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/greenbox-dev/greenbox/internal/gateway"
	h "github.com/greenbox-dev/greenbox/internal/http"
	"github.com/greenbox-dev/greenbox/internal/notifier"
	"github.com/greenbox-dev/greenbox/internal/repository"
	"github.com/greenbox-dev/greenbox/internal/service"
	"github.com/greenbox-dev/greenbox/internal/tracker"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	log.Println("greenbox starting...")

	// Configuration
	httpPort := getEnv("HTTP_PORT", "8080")
	requestTimeout := 30 * time.Second
	shutdownTimeout := 10 * time.Second

	// Database setup
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbName := getEnv("DB_NAME", "greenbox")
	migrationsPath := getEnv("MIGRATIONS_PATH", "./internal/repository/migrations")

	port, err := strconv.Atoi(dbPort)
	if err != nil {
		log.Fatalf("Invalid DB_PORT: %v", err)
	}

	creds := &repository.Credentials{
		Host:              dbHost,
		Port:              port,
		User:              dbUser,
		Password:          dbPass,
		DBName:            dbName,
		MigrationsDirPath: migrationsPath,
	}

	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Redis for payment trackers
	redisClient := redis.NewClient(&redis.Options{
		Addr: getEnv("REDIS_ADDR", "localhost:6379"),
	})
	defer redisClient.Close()
	paymentTracker := tracker.New(redisClient)

	// Kafka notifications
	kafkaBrokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	notificationsTopic := getEnv("KAFKA_NOTIFICATIONS_TOPIC", "greenbox.notifications")
	kafkaNotifier := notifier.NewKafkaNotifier(notificationsTopic, kafkaBrokers...)
	defer kafkaNotifier.Close()

	// Payment gateway client
	gatewayClient := gateway.NewClient(
		getEnv("GATEWAY_BASE_URL", "https://api-merchant.payos.vn"),
		getEnv("GATEWAY_CLIENT_ID", ""),
		getEnv("GATEWAY_API_KEY", ""),
		getEnv("GATEWAY_CHECKSUM_KEY", ""),
		15*time.Second,
	)

	// Services
	checkoutService := service.NewCheckoutService(repo)
	orderService := service.NewOrderService(repo, kafkaNotifier)
	settlementService := service.NewSettlementService(
		repo,
		gatewayClient,
		kafkaNotifier,
		paymentTracker,
		getEnv("GATEWAY_CHECKSUM_KEY", ""),
		getEnv("PAYMENT_RETURN_URL", "https://greenbox.example.com/payment/success"),
		getEnv("PAYMENT_CANCEL_URL", "https://greenbox.example.com/payment/cancel"),
	)
	schedulerService := service.NewSchedulerService(repo, kafkaNotifier)

	// Router
	r := h.NewRouter(
		h.NewCheckoutHandler(checkoutService),
		h.NewOrderHandler(orderService, settlementService),
		h.NewWebhookHandler(settlementService),
		h.NewSubscriptionHandler(schedulerService),
		requestTimeout,
	)

	srv := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("GreenBox listening on :%s", httpPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
