package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/petrealm/pet-realm/internal/config"
	"github.com/petrealm/pet-realm/internal/es"
	"github.com/petrealm/pet-realm/internal/handlers"
	"github.com/petrealm/pet-realm/internal/logging"
	ratelimitmw "github.com/petrealm/pet-realm/internal/middleware/ratelimit"
	"github.com/petrealm/pet-realm/internal/mykafka"
	"github.com/petrealm/pet-realm/internal/order"
	"github.com/petrealm/pet-realm/internal/storage"
	"github.com/petrealm/pet-realm/internal/token"
	httpserver "github.com/petrealm/pet-realm/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	slog.SetDefault(logger)

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}

	jwtSecret := []byte(configuration.JWT_SECRET)
	refreshSecret := []byte(configuration.REFRESH_SECRET)

	prod := mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatalf("elasticsearch init failed: %v", err)
	}

	var blobs storage.BlobStore
	if configuration.S3_RECEIPTS_BUCKET != "" {
		s3, err := storage.NewS3Store(context.Background(), storage.S3Options{
			Region: configuration.AWS_REGION,
			Bucket: configuration.S3_RECEIPTS_BUCKET,
		})
		if err != nil {
			log.Fatalf("s3 init failed: %v", err)
		}
		blobs = s3
	}

	var assets storage.BlobStore
	if configuration.S3_ASSETS_BUCKET != "" {
		s3, err := storage.NewS3Store(context.Background(), storage.S3Options{
			Region:        configuration.AWS_REGION,
			Bucket:        configuration.S3_ASSETS_BUCKET,
			PublicBaseURL: configuration.S3_PUBLIC_BASE_URL,
		})
		if err != nil {
			log.Fatalf("s3 init failed: %v", err)
		}
		assets = s3
	}

	orderSvc := &order.Service{
		Repo:     &order.GormRepo{DB: db},
		Blobs:    blobs,
		Producer: prod,
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			l := logger.With("request_id", c.Response().Header().Get(echo.HeaderXRequestID))
			c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), l)))
			return next(c)
		}
	})

	deps := httpserver.Deps{
		AuthHandler:    &handlers.AuthHandler{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret, Producer: prod},
		ProductHandler: &handlers.ProductHandler{DB: db, Producer: prod, Assets: assets},
		ShopHandler:    &handlers.ShopHandler{DB: db, Producer: prod, Assets: assets},
		CartHandler:    &handlers.CartHandler{DB: db},
		OrderHandler:   &handlers.OrderHandler{Svc: orderSvc},
		ContactHandler: &handlers.ContactHandler{DB: db},
		SearchHandler:  &handlers.SearchHandler{ES: esClient, Index: "products"},
		TokenService:   &token.TokenService{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret},
		RateLimiter:    ratelimitmw.New(configuration.REDIS_ADDR, 20, time.Minute),
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
