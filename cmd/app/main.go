package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tolusimi/naiabook/config"
	"github.com/tolusimi/naiabook/internal/bootstrap"
	"github.com/tolusimi/naiabook/internal/cache"
	"github.com/tolusimi/naiabook/internal/checkout"
	"github.com/tolusimi/naiabook/internal/gateway/paystack"
	"github.com/tolusimi/naiabook/internal/repository"
	"github.com/tolusimi/naiabook/internal/service/booking"
	"github.com/tolusimi/naiabook/internal/service/flights"
	"github.com/tolusimi/naiabook/internal/service/payments"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(
		cfg.Redis,
		time.Duration(cfg.Booking.FlightsCacheTTL)*time.Second,
		time.Duration(cfg.Booking.SessionTTLMinutes)*time.Minute,
	)

	topics := repository.OutboxTopics{
		Bookings:      cfg.Kafka.BookingTopic,
		Notifications: cfg.Kafka.NotificationsTopic,
	}
	outboxRepo := repository.NewOutboxRepository(pool, cfg.Worker.OutboxMaxRetries)
	flightRepo := repository.NewFlightRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool, outboxRepo, topics)
	paymentRepo := repository.NewPaymentRepository(pool, outboxRepo, topics)

	gateway := paystack.NewClient(cfg.Paystack.BaseURL, cfg.Paystack.SecretKey)

	flightService := flights.NewFlightService(flightRepo, redisCache)
	bookingService := booking.NewBookingService(bookingRepo, flightRepo)
	paymentService := payments.NewPaymentService(paymentRepo, bookingRepo, gateway, bookingService, cfg.HTTP.CallbackURL)
	checkoutService := checkout.NewService(
		flightRepo,
		bookingRepo,
		paymentService,
		redisCache,
		time.Duration(cfg.Booking.HoldTTLMinutes)*time.Minute,
	)

	err = bootstrap.Run(ctx, cfg, bootstrap.Services{
		Flights:  flightService,
		Checkout: checkoutService,
		Bookings: bookingService,
		Payments: paymentService,
	})
	if err != nil {
		log.Fatalf("server error: %v", err)
	}
}
