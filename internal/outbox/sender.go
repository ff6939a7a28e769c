package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/tolusimi/naiabook/internal/metrics"
	"github.com/tolusimi/naiabook/internal/repository"
)

// Producer is the slice of the Kafka producer the sender needs.
type Producer interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// Store is the slice of the outbox repository the sender needs.
type Store interface {
	PendingBatch(ctx context.Context, limit int) ([]repository.OutboxMessage, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errorMsg string) (bool, error)
}

var _ Store = (*repository.OutboxRepository)(nil)

// Sender drains pending outbox rows to Kafka on a fixed interval. Sends are
// at-least-once: a message published but not marked sent is retried, so
// consumers must tolerate duplicates.
type Sender struct {
	repo         Store
	producer     Producer
	pollInterval time.Duration
	batchSize    int
}

func NewSender(repo Store, producer Producer, pollInterval time.Duration, batchSize int) *Sender {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Sender{
		repo:         repo,
		producer:     producer,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

// Run blocks until ctx is cancelled.
func (s *Sender) Run(ctx context.Context) {
	log.Println("outbox sender started")
	defer log.Println("outbox sender stopped")

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.flushOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flushOnce(ctx)
		}
	}
}

func (s *Sender) flushOnce(ctx context.Context) {
	msgs, err := s.repo.PendingBatch(ctx, s.batchSize)
	if err != nil {
		log.Printf("outbox fetch pending: %v", err)
		return
	}

	for _, m := range msgs {
		if err := s.sendOne(ctx, m); err != nil {
			metrics.IncOutboxRetry()
			terminal, markErr := s.repo.MarkFailed(ctx, m.ID, err.Error())
			if markErr != nil {
				log.Printf("outbox mark failed: %v", markErr)
				continue
			}
			if terminal {
				metrics.IncOutboxFailed()
				log.Printf("outbox message %d dropped after max retries: %v", m.ID, err)
			}
			continue
		}
		if err := s.repo.MarkSent(ctx, m.ID); err != nil {
			log.Printf("outbox mark sent: %v", err)
			continue
		}
		metrics.IncOutboxSent()
		recordEventMetric(m.Payload)
	}
}

func (s *Sender) sendOne(ctx context.Context, m repository.OutboxMessage) error {
	if m.Topic == "" {
		return fmt.Errorf("outbox message %d has no topic", m.ID)
	}
	metrics.ObserveOutboxLagSeconds(time.Since(m.CreatedAt).Seconds())

	if err := s.producer.Publish(ctx, m.Topic, m.Key, m.Payload); err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	return nil
}

func recordEventMetric(payload []byte) {
	var event struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &event); err != nil || event.Type == "" {
		return
	}
	metrics.IncBookingEvent(event.Type)
}
