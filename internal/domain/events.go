package domain

import "time"

// Event types emitted by booking and payment state transitions. Events are
// written to the outbox in the same transaction as the state change and
// drained to Kafka by the worker.
const (
	EventBookingCreated   = "booking_created"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
	EventBookingExpired   = "booking_expired"
	EventBookingRefunded  = "booking_refunded"
	EventPaymentCompleted = "payment_completed"
	EventPaymentFailed    = "payment_failed"
	EventPaymentRefunded  = "payment_refunded"
)

type BookingEvent struct {
	Type       string        `json:"type"`
	Reference  string        `json:"reference"`
	FlightID   int64         `json:"flight_id"`
	SeatClass  SeatClass     `json:"seat_class"`
	Passengers int           `json:"passengers"`
	Status     BookingStatus `json:"status"`
	Email      string        `json:"email"`
	Total      Money         `json:"total"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func NewBookingEvent(eventType string, b *Booking) BookingEvent {
	return BookingEvent{
		Type:       eventType,
		Reference:  b.Reference,
		FlightID:   b.FlightID,
		SeatClass:  b.SeatClass,
		Passengers: b.PassengerCount(),
		Status:     b.Status,
		Email:      b.ContactEmail,
		Total:      b.TotalPrice,
		OccurredAt: time.Now().UTC(),
	}
}

type PaymentEvent struct {
	Type             string        `json:"type"`
	GatewayReference string        `json:"gateway_reference"`
	BookingReference string        `json:"booking_reference"`
	Amount           Money         `json:"amount"`
	Currency         string        `json:"currency"`
	Status           PaymentStatus `json:"status"`
	OccurredAt       time.Time     `json:"occurred_at"`
}

func NewPaymentEvent(eventType string, p *Payment) PaymentEvent {
	return PaymentEvent{
		Type:             eventType,
		GatewayReference: p.GatewayReference,
		BookingReference: p.BookingReference,
		Amount:           p.Amount,
		Currency:         p.Currency,
		Status:           p.Status,
		OccurredAt:       time.Now().UTC(),
	}
}
