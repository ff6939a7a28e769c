package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tolusimi/naiabook/internal/domain"
	"github.com/tolusimi/naiabook/internal/repository"
)

var (
	ErrNotCancellable = errors.New("booking can no longer be cancelled")
	ErrLastNameNeeded = errors.New("last name is required to look up a booking")
)

type BookingUseCase interface {
	GetByReference(ctx context.Context, reference string) (*domain.Booking, error)
	Manage(ctx context.Context, reference, lastName string) (*domain.Booking, error)
	Confirm(ctx context.Context, reference string) (*domain.Booking, error)
	Cancel(ctx context.Context, reference, reason string) (*domain.Booking, error)
	Transition(ctx context.Context, reference string, to domain.BookingStatus) (*domain.Booking, error)
	ExpireHolds(ctx context.Context) ([]domain.Booking, error)
}

type BookingService struct {
	bookings repository.BookingRepository
	flights  repository.FlightRepository
}

func NewBookingService(bookings repository.BookingRepository, flights repository.FlightRepository) *BookingService {
	return &BookingService{bookings: bookings, flights: flights}
}

func (s *BookingService) GetByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	if err := domain.ValidateBookingReference(reference); err != nil {
		return nil, err
	}
	return s.bookings.GetByReference(ctx, reference)
}

// Manage is the self-service lookup: reference plus the last name of any
// passenger on the booking.
func (s *BookingService) Manage(ctx context.Context, reference, lastName string) (*domain.Booking, error) {
	if err := domain.ValidateBookingReference(reference); err != nil {
		return nil, err
	}
	if lastName == "" {
		return nil, ErrLastNameNeeded
	}
	return s.bookings.FindByReferenceAndLastName(ctx, reference, lastName)
}

// Confirm is idempotent: repeated calls for an already confirmed booking
// return the current row without side effects.
func (s *BookingService) Confirm(ctx context.Context, reference string) (*domain.Booking, error) {
	return s.bookings.Confirm(ctx, reference)
}

// Cancel enforces the cancellation window before handing off to the
// repository, which releases the seats transactionally.
func (s *BookingService) Cancel(ctx context.Context, reference, reason string) (*domain.Booking, error) {
	booking, err := s.bookings.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	flight, err := s.flights.GetByID(ctx, booking.FlightID)
	if err != nil {
		return nil, err
	}
	if !booking.IsCancellable(flight.DepartureTime, time.Now()) {
		return nil, ErrNotCancellable
	}

	return s.bookings.Cancel(ctx, reference, reason)
}

// Transition applies a staff-driven status change (check-in, boarding,
// completion, no-show) after validating it against the state machine.
func (s *BookingService) Transition(ctx context.Context, reference string, to domain.BookingStatus) (*domain.Booking, error) {
	booking, err := s.bookings.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if err := booking.Transition(to); err != nil {
		return nil, err
	}

	switch to {
	case domain.BookingStatusCancelled:
		return s.Cancel(ctx, reference, "cancelled by staff")
	case domain.BookingStatusRefunded:
		return nil, fmt.Errorf("refunds are issued through the payment flow")
	}
	return s.bookings.SetStatus(ctx, reference, to)
}

// ExpireHolds cancels PENDING bookings whose payment hold lapsed. Runs on a
// timer in the worker.
func (s *BookingService) ExpireHolds(ctx context.Context) ([]domain.Booking, error) {
	expired, err := s.bookings.ExpireHolds(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	for _, b := range expired {
		log.Printf("expired hold for booking %s (flight %d)", b.Reference, b.FlightID)
	}
	return expired, nil
}

var _ BookingUseCase = (*BookingService)(nil)
