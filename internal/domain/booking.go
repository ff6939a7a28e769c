package domain

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCheckedIn BookingStatus = "CHECKED_IN"
	BookingStatusBoarded   BookingStatus = "BOARDED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusRefunded  BookingStatus = "REFUNDED"
	BookingStatusNoShow    BookingStatus = "NO_SHOW"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCheckedIn, BookingStatusCancelled, BookingStatusRefunded, BookingStatusNoShow},
	BookingStatusCheckedIn: {BookingStatusBoarded, BookingStatusNoShow},
	BookingStatusBoarded:   {BookingStatusCompleted},
}

var ErrInvalidTransition = errors.New("invalid booking status transition")

func (s BookingStatus) CanTransitionTo(to BookingStatus) bool {
	for _, next := range bookingTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// referenceAlphabet excludes visually ambiguous glyphs (O, 0, I, 1).
const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const ReferenceLength = 6

// ReferenceMaxAttempts bounds the uniqueness retry loop at creation time.
const ReferenceMaxAttempts = 10

var ErrReferenceExhausted = errors.New("unable to generate unique booking reference")

func NewBookingReference() string {
	b := make([]byte, ReferenceLength)
	for i := range b {
		b[i] = referenceAlphabet[rand.IntN(len(referenceAlphabet))]
	}
	return string(b)
}

var ErrInvalidReference = errors.New("invalid booking reference")

func ValidateBookingReference(ref string) error {
	if len(ref) != ReferenceLength {
		return fmt.Errorf("%w: must be %d characters", ErrInvalidReference, ReferenceLength)
	}
	for i := 0; i < len(ref); i++ {
		ok := false
		for j := 0; j < len(referenceAlphabet); j++ {
			if ref[i] == referenceAlphabet[j] {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%w: contains invalid character %q", ErrInvalidReference, ref[i])
		}
	}
	return nil
}

type Booking struct {
	ID        int64         `json:"id"`
	Reference string        `json:"reference"`
	FlightID  int64         `json:"flight_id"`
	SeatClass SeatClass     `json:"seat_class"`
	Status    BookingStatus `json:"status"`

	BasePrice  Money `json:"base_price"`
	Taxes      Money `json:"taxes"`
	Fees       Money `json:"fees"`
	Discount   Money `json:"discount"`
	TotalPrice Money `json:"total_price"`

	ContactEmail    string `json:"contact_email"`
	ContactPhone    string `json:"contact_phone"`
	SpecialRequests string `json:"special_requests,omitempty"`

	HoldExpiresAt      time.Time  `json:"hold_expires_at"`
	BookedAt           time.Time  `json:"booked_at"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Passengers []Passenger `json:"passengers,omitempty"`
}

// RecomputeTotal derives the total from the component fields. Persistence
// must call this before writing so the total is never set independently.
func (b *Booking) RecomputeTotal() {
	b.TotalPrice = b.BasePrice + b.Taxes + b.Fees - b.Discount
}

func (b *Booking) PassengerCount() int {
	return len(b.Passengers)
}

func (b *Booking) IsConfirmed() bool {
	return b.Status == BookingStatusConfirmed
}

// IsCancellable reports whether the booking may still be cancelled: only
// PENDING and CONFIRMED bookings, and only before the flight departs.
func (b *Booking) IsCancellable(departure, now time.Time) bool {
	if b.Status != BookingStatusPending && b.Status != BookingStatusConfirmed {
		return false
	}
	return departure.After(now)
}

// Transition moves the booking to the target status, validating against the
// closed transition table. It does not touch timestamps; callers own those.
func (b *Booking) Transition(to BookingStatus) error {
	if !b.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
	}
	b.Status = to
	return nil
}
