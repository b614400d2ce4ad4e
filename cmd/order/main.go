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

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	ordercfg "github.com/Skotchmaster/online_shop/internal/config"
	"github.com/Skotchmaster/online_shop/internal/es"
	"github.com/Skotchmaster/online_shop/internal/events"
	"github.com/Skotchmaster/online_shop/internal/httpserver"
	"github.com/Skotchmaster/online_shop/internal/idempotency"
	"github.com/Skotchmaster/online_shop/internal/metrics"
	"github.com/Skotchmaster/online_shop/internal/mykafka"
	"github.com/Skotchmaster/online_shop/internal/payment"
	"github.com/Skotchmaster/online_shop/internal/repo"
	"github.com/Skotchmaster/online_shop/internal/service"
	pkgdb "github.com/Skotchmaster/online_shop/pkg/db"
	"github.com/Skotchmaster/online_shop/pkg/logging"
	loggingmw "github.com/Skotchmaster/online_shop/pkg/middleware/logging"
)

func main() {
	if err := ordercfg.LoadEnvFile(); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := ordercfg.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "order"
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if cfg.AutoMigrate {
		if err := repo.Migrate(db); err != nil {
			log.Fatalf("db migrate: %v", err)
		}
	}

	gateway, err := newCardGateway(cfg)
	if err != nil {
		log.Fatalf("payment gateway: %v", err)
	}
	payments := payment.NewRegistry(payment.NewCardProcessor(gateway))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, cfg.ServiceName)

	r := repo.New(db)
	checkout := service.NewCheckoutService(r, payments, service.CheckoutConfig{
		PaymentTimeout:    cfg.PaymentTimeout,
		PersistTimeout:    cfg.PersistTimeout,
		PersistMaxRetries: cfg.PersistMaxRetries,
		DefaultCurrency:   cfg.DefaultCurrency,
	})
	checkout.Metrics = m

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		checkout.Idempotency = idempotency.NewRedisStore(rdb, cfg.IdempotencyTTL)
	} else {
		logger.Warn("redis_not_configured", "fallback", "in-memory idempotency store")
		checkout.Idempotency = idempotency.NewMemoryStore(cfg.IdempotencyTTL, clockwork.NewRealClock())
	}

	var (
		sinks events.Fanout
		prod  *mykafka.Producer
	)
	if len(cfg.KafkaBrokers) > 0 {
		prod, err = mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		sinks = append(sinks, &events.KafkaSink{Producer: prod, Topic: cfg.OrderEventsTopic})
	}
	if cfg.ESURL != "" {
		esCtx, esCancel := context.WithTimeout(context.Background(), 10*time.Second)
		esClient, err := es.NewClient(esCtx, es.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword})
		esCancel()
		if err != nil {
			log.Fatalf("elasticsearch: %v", err)
		}
		sinks = append(sinks, &events.SearchSink{Client: esClient, Index: events.OrdersIndex})
	}
	if len(sinks) > 0 {
		checkout.Events = sinks
	}

	e := echo.New()
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		OrderHandler: &httpserver.OrderHTTP{
			Checkout: checkout,
			Query:    &service.QueryService{Repo: r},
		},
		ReconciliationHandler: &httpserver.ReconciliationHTTP{
			Svc: &service.ReconciliationService{Repo: r, Payments: payments},
		},
		JWTSecret: cfg.JWTAccessSecret,
		DB:        db,
		Metrics:   m,
		Gatherer:  reg,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.PaymentTimeout + cfg.PersistTimeout + 5*time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("order_listening", "addr", srv.Addr, "payment_provider", cfg.PaymentProvider)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", "error", err)
	}
	if prod != nil {
		if err := prod.Close(); err != nil {
			logger.Error("kafka_close_failed", "error", err)
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := pkgdb.Close(db); err != nil {
		logger.Error("db_close_failed", "error", err)
	}

	log.Println("order stopped")
}

func newCardGateway(cfg ordercfg.ServiceConfig) (payment.CardGateway, error) {
	switch cfg.PaymentProvider {
	case ordercfg.ProviderHTTP:
		return payment.NewHTTPGateway(payment.HTTPGatewayConfig{
			BaseURL: cfg.PaymentGatewayURL,
			APIKey:  cfg.PaymentAPIKey,
		})
	case ordercfg.ProviderStripe:
		return payment.NewStripeGateway(cfg.StripeSecretKey, nil)
	default:
		return payment.NewSandboxGateway(), nil
	}
}
