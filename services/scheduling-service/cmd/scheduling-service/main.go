package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/bayscheduler/libs/db"
	"github.com/md-rashed-zaman/bayscheduler/libs/grpcx"
	"github.com/md-rashed-zaman/bayscheduler/libs/httpx"
	"github.com/md-rashed-zaman/bayscheduler/libs/kafkax"
	otelx "github.com/md-rashed-zaman/bayscheduler/libs/otel"
	"github.com/md-rashed-zaman/bayscheduler/libs/runtime"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/consumer"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/conversation"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/handlers"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/inbox"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/inventory"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/pricing"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/search"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/selection"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	cfg, err := loadSettings()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.Service, cfg.LogLevel)

	ctx, stop := runtime.SignalContext(context.Background())
	defer stop()

	otelCfg, err := otelx.ConfigFromEnv(cfg.Service)
	if err != nil {
		logger.Error("invalid otel configuration", "err", err)
		os.Exit(1)
	}
	otelShutdown, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{MaxConns: int32(cfg.MaxWorkers) + 8})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	var (
		rdb      *redis.Client
		contexts conversation.Store
		limiter  httpx.Limiter
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		contexts = conversation.NewRedisStore(rdb, cfg.ConversationTTL, "")
		limiter = httpx.NewRedisLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, cfg.Service+":rl")
		logger.Info("redis enabled", "redis_addr", cfg.RedisAddr)
	} else {
		contexts = conversation.NewMemoryStore(cfg.ConversationTTL)
		limiter = httpx.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute)
		logger.Info("redis not configured; conversation context and rate limits are per process")
	}

	catalog := storage.NewCatalogRepository(pool)
	stock := storage.NewStockRepository(pool)
	outboxRepo := outbox.NewRepository()
	bookings := storage.NewBookingRepository(pool, outboxRepo)
	prices := pricing.NewBranchPrices(pool)

	searcher := search.New(catalog, bookings, inventory.NewGate(stock), prices, logger, search.Config{
		Step:       cfg.SlotStep,
		MaxWorkers: cfg.MaxWorkers,
		Budget:     cfg.SearchBudget,
		Location:   cfg.Location,
	})
	committer := booking.NewCommitter(bookings, catalog, prices, logger, cfg.Location)
	validator := selection.NewValidator(cfg.MinConfidence)

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	brokers := kafkax.SplitBrokers(cfg.KafkaBrokers)
	if len(brokers) > 0 && cfg.StockTopic != "" {
		stockConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
			Topic:   cfg.StockTopic,
		}, consumer.StockHandler(stock, logger))
		go stockConsumer.Run(ctx)
	}

	grpcServer, health := grpcx.NewServer(logger, cfg.Service)
	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("grpc server starting", "addr", grpcLis.Addr().String())
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	var redisCheck func(context.Context) error
	if rdb != nil {
		redisCheck = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "redis", Check: redisCheck},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	registerRoutes(mux,
		handlers.NewAvailabilityHandler(searcher, contexts, logger),
		handlers.NewBookingHandler(committer, logger),
		handlers.NewSelectionHandler(validator, contexts, logger),
	)

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", httpx.RequestIDHeader, "Idempotency-Key", conversation.HeaderID},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.RateLimit(limiter, logger, cfg.RateLimitFailOpen),
		httpx.WithBodyLimit(cfg.BodyLimit),
		httpx.WithTimeout(cfg.RequestTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, cfg.Service)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()
	health.SetServingStatus(cfg.Service, healthpb.HealthCheckResponse_SERVING)
	health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	<-ctx.Done()
	health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	grpcServer.GracefulStop()
	logger.Info("servers stopped")
}

func registerRoutes(mux *http.ServeMux, a *handlers.AvailabilityHandler, b *handlers.BookingHandler, s *handlers.SelectionHandler) {
	mux.HandleFunc("/api/v1/availability", a.Get)
	mux.HandleFunc("/api/v1/bookings", b.Create)
	mux.HandleFunc("/api/v1/bookings/cancel", b.Cancel)
	mux.HandleFunc("/api/v1/bays/bookings", b.ListForBay)
	mux.HandleFunc("/api/v1/selections/validate", s.Validate)
}
