package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/tolusimi/naiabook/config"
	"github.com/tolusimi/naiabook/internal/domain"
	"github.com/tolusimi/naiabook/internal/email"
	"github.com/tolusimi/naiabook/internal/kafka"
	"github.com/tolusimi/naiabook/internal/outbox"
	"github.com/tolusimi/naiabook/internal/repository"
	"github.com/tolusimi/naiabook/internal/service/booking"
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

	topics := repository.OutboxTopics{
		Bookings:      cfg.Kafka.BookingTopic,
		Notifications: cfg.Kafka.NotificationsTopic,
	}
	outboxRepo := repository.NewOutboxRepository(pool, cfg.Worker.OutboxMaxRetries)
	flightRepo := repository.NewFlightRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool, outboxRepo, topics)
	bookingService := booking.NewBookingService(bookingRepo, flightRepo)

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	sender := outbox.NewSender(
		outboxRepo,
		producer,
		time.Duration(cfg.Worker.OutboxPollSeconds)*time.Second,
		cfg.Worker.OutboxBatchSize,
	)
	go sender.Run(ctx)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	emailSender := email.NewSender()
	go func() {
		err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
			var event domain.BookingEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				log.Printf("decode event: %v", err)
				return nil
			}
			return emailSender.Send(ctx, event)
		})
		if err != nil {
			log.Printf("consumer stopped: %v", err)
		}
	}()

	sweepEvery := time.Duration(cfg.Worker.ExpirationSweepMinutes) * time.Minute
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	expireTicker := time.NewTicker(sweepEvery)
	defer expireTicker.Stop()

	for {
		select {
		case <-expireTicker.C:
			expired, err := bookingService.ExpireHolds(ctx)
			if err != nil {
				log.Printf("expire holds: %v", err)
				continue
			}
			if len(expired) > 0 {
				log.Printf("expired %d bookings", len(expired))
			}
		case <-ctx.Done():
			log.Println("shutting down")
			return
		}
	}
}
