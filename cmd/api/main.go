package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/For-Hives/beswib-sub000/internal/app"
	"github.com/For-Hives/beswib-sub000/internal/clock"
	"github.com/For-Hives/beswib-sub000/internal/config"
	"github.com/For-Hives/beswib-sub000/internal/events/kafka"
	"github.com/For-Hives/beswib-sub000/internal/fees"
	"github.com/For-Hives/beswib-sub000/internal/payments"
	"github.com/For-Hives/beswib-sub000/internal/storage/postgres"
	transporthttp "github.com/For-Hives/beswib-sub000/internal/transport/http"
	"github.com/For-Hives/beswib-sub000/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := log.Default()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect to db: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		log.Fatalf("db ping: %v", err)
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	var publisher app.SalePublisher = kafka.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Printf("WARN: close kafka publisher: %v", err)
			}
		}()
		publisher = kp
	} else {
		logger.Printf("WARN: KAFKA_BROKERS not set, sale events will be dropped")
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
	} else {
		logger.Printf("WARN: REDIS_ADDR not set, reserve rate limiting disabled")
	}

	calc := fees.NewCalculator(cfg.PlatformFeeRate)
	processor := payments.NewClient(cfg.ProcessorBaseURL, cfg.ProcessorClientID, cfg.ProcessorSecret, cfg.PlatformMerchantID)

	listingRepo := postgres.NewListingRepository(pool)
	txRepo := postgres.NewTransactionRepository(pool)

	listingSvc := app.NewListingService(listingRepo, clock.NewSystem())
	reservationSvc := app.NewReservationService(listingRepo, clock.NewSystem(), app.WithLockTTL(cfg.LockTTL))
	orderSvc := app.NewOrderService(txRepo, processor, calc, clock.NewSystem(), app.WithCurrency(cfg.Currency))
	settlementSvc := app.NewSettlementService(txRepo, publisher, calc, clock.NewSystem(), logger)

	router := transporthttp.NewRouter(transporthttp.RouterDeps{
		Listings:       listingSvc,
		Reservations:   reservationSvc,
		Orders:         orderSvc,
		Settlements:    settlementSvc,
		ReserveLimiter: transporthttp.RateLimit(redisClient, cfg.ReserveRateLimit, cfg.ReserveRateBurst),
	})
	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, router), logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepStaleLocks(stopCtx, reservationSvc, cfg.SweepInterval, logger)

	log.Printf("api listening on :%s", cfg.Port)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
	case <-stopCtx.Done():
		log.Printf("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("server shutdown error: %v", err)
	}
	log.Printf("server stopped")
}

// sweepStaleLocks reclaims abandoned reservations for listings nobody is
// actively polling.
func sweepStaleLocks(ctx context.Context, svc *app.ReservationService, interval time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			count, err := svc.SweepExpired(sweepCtx)
			cancel()
			if err != nil {
				logger.Printf("WARN: sweep expired locks: %v", err)
				continue
			}
			if count > 0 {
				logger.Printf("released %d expired locks", count)
			}
		}
	}
}
