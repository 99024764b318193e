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

	"github.com/procktails/storefront/internal/cache"
	"github.com/procktails/storefront/internal/cart"
	"github.com/procktails/storefront/internal/catalog"
	"github.com/procktails/storefront/internal/checkout"
	h "github.com/procktails/storefront/internal/http"
	"github.com/procktails/storefront/internal/ledger"
	"github.com/procktails/storefront/internal/platform"
	"github.com/procktails/storefront/internal/repository"
)

type Config struct {
	HTTPPort string

	MongoURI         string
	MongoDB          string
	MongoMaxPoolSize int

	RedisAddr     string
	RedisPassword string

	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	MigrationsDir    string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	PlatformStoreDomain   string
	PlatformAccessToken   string
	PlatformWebhookSecret string

	Currency        string
	CartCacheTTL    time.Duration
	CatalogTTL      time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),

		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:          getEnv("MONGO_DB", "storefront"),
		MongoMaxPoolSize: getEnvInt("MONGO_MAX_POOL_SIZE", 100),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvInt("POSTGRES_PORT", 5432),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getEnv("POSTGRES_DB", "storefront"),
		MigrationsDir:    getEnv("MIGRATIONS_DIR", "./migrations"),

		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaTopic:   getEnv("KAFKA_ORDER_EVENTS_TOPIC", "platform-order-events"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "storefront-ledger"),

		PlatformStoreDomain:   getEnv("PLATFORM_STORE_DOMAIN", ""),
		PlatformAccessToken:   getEnv("PLATFORM_ACCESS_TOKEN", ""),
		PlatformWebhookSecret: getEnv("PLATFORM_WEBHOOK_SECRET", ""),

		Currency:        getEnv("DEFAULT_CURRENCY", "USD"),
		CartCacheTTL:    15 * time.Minute,
		CatalogTTL:      15 * time.Minute,
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cart persistence
	cartRepo, err := repository.Connect(ctx, repository.Config{
		URI:         cfg.MongoURI,
		Database:    cfg.MongoDB,
		MaxPoolSize: uint64(cfg.MongoMaxPoolSize),
	})
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := cartRepo.Close(context.Background()); err != nil {
			log.Printf("mongo disconnect error: %v", err)
		}
	}()

	if err := cartRepo.CreateIndexes(ctx); err != nil {
		log.Fatalf("Failed to create cart indexes: %v", err)
	}

	// Cart + catalog snapshot cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// Order ledger
	creds := &ledger.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.MigrationsDir,
	}
	orderRepo, err := ledger.NewRepository(creds)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer orderRepo.Close()

	if err := orderRepo.RunMigrations(creds); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Services
	platformClient := platform.NewClient(platform.Config{
		StoreDomain:   cfg.PlatformStoreDomain,
		AccessToken:   cfg.PlatformAccessToken,
		WebhookSecret: cfg.PlatformWebhookSecret,
	})

	cartService := cart.NewService(cartRepo,
		cache.NewRedisCache(redisClient, cache.WithTTL(cfg.CartCacheTTL, 5*time.Minute)))

	productCache := catalog.New(platformClient,
		catalog.WithTTL(cfg.CatalogTTL),
		catalog.WithSnapshotStore(catalog.NewRedisSnapshotStore(redisClient)),
	)

	ledgerService := ledger.NewService(orderRepo, cartService)
	checkoutService := checkout.NewService(cartService, platformClient, ledgerService, cfg.Currency)

	// Kafka relay of platform order events, replayable alongside webhooks
	consumer := ledger.NewConsumer(ledgerService, cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
	defer consumer.Close()
	go consumer.Run(ctx)

	router := h.NewRouter(h.RouterConfig{
		Carts:          cartService,
		Catalog:        productCache,
		Checkouts:      checkoutService,
		Orders:         orderRepo,
		Ledger:         ledgerService,
		WebhookSecret:  cfg.PlatformWebhookSecret,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Storefront starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
