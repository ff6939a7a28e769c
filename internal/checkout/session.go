package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/tolusimi/naiabook/internal/domain"
	"github.com/tolusimi/naiabook/internal/pricing"
)

var (
	ErrSessionNotFound = errors.New("checkout session not found or expired")
	ErrStepOrder       = errors.New("checkout steps must be completed in order")
	ErrTermsNotAgreed  = errors.New("terms and conditions must be accepted")
)

// Session is the explicit checkout state carried across the four steps. It
// is persisted server-side keyed by Token; handlers never see ambient
// globals, only this value.
type Session struct {
	Token          string             `json:"token"`
	FlightID       int64              `json:"flight_id"`
	SeatClass      domain.SeatClass   `json:"seat_class"`
	PassengerCount int                `json:"passenger_count"`
	Quote          pricing.Quote      `json:"quote"`
	Passengers     []domain.Passenger `json:"passengers,omitempty"`
	ContactEmail   string             `json:"contact_email,omitempty"`
	ContactPhone   string             `json:"contact_phone,omitempty"`
	TermsAccepted  bool               `json:"terms_accepted"`

	// BookingReference is set once Pay has persisted a booking, so a
	// retried Pay reuses it instead of holding seats a second time.
	BookingReference string    `json:"booking_reference,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func (s *Session) HasPassengers() bool {
	return len(s.Passengers) == s.PassengerCount && s.PassengerCount > 0
}

// SessionStore persists checkout sessions between steps.
type SessionStore interface {
	SaveSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, token string) (*Session, error)
	DeleteSession(ctx context.Context, token string) error
}
