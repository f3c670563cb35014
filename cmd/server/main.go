package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/mxshop/backend/internal/alipay"
	"github.com/mxshop/backend/internal/cart"
	"github.com/mxshop/backend/internal/config"
	"github.com/mxshop/backend/internal/es"
	"github.com/mxshop/backend/internal/handlers"
	"github.com/mxshop/backend/internal/logging"
	loggingmw "github.com/mxshop/backend/internal/middleware/logging"
	"github.com/mxshop/backend/internal/models"
	"github.com/mxshop/backend/internal/mykafka"
	"github.com/mxshop/backend/internal/order"
	"github.com/mxshop/backend/internal/settlement"
	"github.com/mxshop/backend/internal/sms"
	pkgdb "github.com/mxshop/backend/pkg/db"
)

func main() {
	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTSecret, "JWT_SECRET")
	config.MustNonEmptyBytes(cfg.RefreshSecret, "JWT_REFRESH_SECRET")

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	var producer *mykafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = mykafka.NewProducer(cfg.KafkaBrokers)
		defer producer.Close()
	}

	esClient, err := es.NewClient(cfg)
	if err != nil {
		log.Printf("warning: elasticsearch unavailable: %v", err)
	}

	var payClient *alipay.Client
	if cfg.Alipay.AppID != "" {
		payClient, err = alipay.NewFromFiles(
			cfg.Alipay.AppID,
			cfg.Alipay.NotifyURL,
			cfg.Alipay.ReturnURL,
			cfg.Alipay.PrivateKeyPath,
			cfg.Alipay.PublicKeyPath,
			cfg.Alipay.Sandbox,
		)
		if err != nil {
			log.Fatalf("alipay client: %v", err)
		}
	}

	e := echo.New()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORS())

	handlers.Register(e, &handlers.Deps{
		Auth: &handlers.AuthHandler{
			DB:            db,
			JWTSecret:     cfg.JWTSecret,
			RefreshSecret: cfg.RefreshSecret,
			Codes:         &sms.CodeStore{RDB: rdb},
			Sender:        sms.NewYunPian(cfg.SMSAPIKey),
			Producer:      producer,
		},
		Product: &handlers.ProductHandler{DB: db, Producer: producer, ES: esClient, Index: cfg.ProductIndex},
		Search:  &handlers.SearchHandler{ES: esClient, Index: cfg.ProductIndex},
		Cart:    &handlers.CartHandler{Svc: &cart.Service{DB: db}, Producer: producer},
		Order:   &handlers.OrderHandler{Svc: &order.Service{DB: db}, Alipay: payClient, Producer: producer},
		Payment: &handlers.PaymentHandler{
			Alipay:      payClient,
			Reconciler:  &settlement.Reconciler{DB: db},
			Producer:    producer,
			FrontendURL: cfg.FrontendURL,
		},
		Fav:     &handlers.FavHandler{DB: db},
		Address: &handlers.AddressHandler{DB: db},
		Message: &handlers.MessageHandler{DB: db},

		JWTSecret: cfg.JWTSecret,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		log.Printf("%s listening on %s", cfg.ServiceName, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = rdb.Close()

	log.Println("server stopped")
}
