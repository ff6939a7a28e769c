package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tolusimi/naiabook/internal/domain"
	"github.com/tolusimi/naiabook/internal/metrics"
	"github.com/tolusimi/naiabook/internal/pricing"
	"github.com/tolusimi/naiabook/internal/repository"
)

var (
	ErrFlightNotBookable = errors.New("flight is no longer available for booking")
	ErrNotEnoughSeats    = errors.New("not enough seats available in the selected class")
	ErrPassengerMismatch = errors.New("passenger details must be provided for every seat")
	ErrPassportRequired  = errors.New("travel document details are required for international flights")
	ErrUnknownPayMethod  = errors.New("unknown payment method")
)

// PaymentMode selects the payment path at step four.
const (
	PayMethodDemo    = "demo"
	PayMethodGateway = "gateway"
)

// PaymentInitiator creates a payment attempt for a freshly created booking
// and initializes the external gateway transaction.
type PaymentInitiator interface {
	InitiateForBooking(ctx context.Context, booking *domain.Booking) (*domain.Payment, error)
}

type CheckoutUseCase interface {
	SelectFlight(ctx context.Context, input SelectFlightInput) (*Session, error)
	SubmitPassengers(ctx context.Context, token string, passengers []PassengerInput, contact ContactInput) (*Session, error)
	Review(ctx context.Context, token string, acceptTerms bool) (*Session, error)
	Pay(ctx context.Context, token, method string) (*PayResult, error)
}

type Service struct {
	flights  repository.FlightRepository
	bookings repository.BookingRepository
	payments PaymentInitiator
	sessions SessionStore
	holdTTL  time.Duration
	validate *validator.Validate
}

func NewService(
	flights repository.FlightRepository,
	bookings repository.BookingRepository,
	payments PaymentInitiator,
	sessions SessionStore,
	holdTTL time.Duration,
) *Service {
	return &Service{
		flights:  flights,
		bookings: bookings,
		payments: payments,
		sessions: sessions,
		holdTTL:  holdTTL,
		validate: validator.New(),
	}
}

type SelectFlightInput struct {
	FlightID   int64  `json:"flight_id" validate:"required"`
	SeatClass  string `json:"seat_class" validate:"required,oneof=ECONOMY BUSINESS FIRST"`
	Passengers int    `json:"passengers" validate:"required,min=1,max=9"`
}

// SelectFlight is step one: validate the flight is bookable and has seats,
// price the selection and open a session.
func (s *Service) SelectFlight(ctx context.Context, input SelectFlightInput) (*Session, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}

	flight, err := s.flights.GetByID(ctx, input.FlightID)
	if err != nil {
		return nil, err
	}
	if !flight.IsBookable(time.Now()) {
		return nil, ErrFlightNotBookable
	}

	class := domain.SeatClass(input.SeatClass)
	if flight.AvailableSeats(class) < input.Passengers {
		return nil, ErrNotEnoughSeats
	}

	quote, err := pricing.QuoteFor(flight, class, input.Passengers)
	if err != nil {
		return nil, err
	}

	session := &Session{
		Token:          uuid.NewString(),
		FlightID:       flight.ID,
		SeatClass:      class,
		PassengerCount: input.Passengers,
		Quote:          quote,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

type PassengerInput struct {
	Title           string `json:"title" validate:"required,oneof=MR MRS MS DR MSTR MISS"`
	FirstName       string `json:"first_name" validate:"required,max=100"`
	LastName        string `json:"last_name" validate:"required,max=100"`
	DateOfBirth     string `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	PassengerType   string `json:"passenger_type" validate:"required,oneof=ADULT CHILD INFANT"`
	PassportNumber  string `json:"passport_number" validate:"omitempty,min=6,max=20"`
	PassportExpiry  string `json:"passport_expiry" validate:"omitempty,datetime=2006-01-02"`
	PassportCountry string `json:"passport_country" validate:"omitempty,max=100"`
	Nationality     string `json:"nationality" validate:"omitempty,max=100"`
	MealPreference  string `json:"meal_preference" validate:"omitempty,oneof=REGULAR VEGETARIAN VEGAN HALAL KOSHER GLUTEN_FREE"`
}

type ContactInput struct {
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty,max=20"`
}

// SubmitPassengers is step two: one record per seat, each validated against
// the age bracket for its passenger type. International flights require
// travel documents at intake.
func (s *Service) SubmitPassengers(ctx context.Context, token string, passengers []PassengerInput, contact ContactInput) (*Session, error) {
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(passengers) != session.PassengerCount {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrPassengerMismatch, session.PassengerCount, len(passengers))
	}
	if err := s.validate.Struct(contact); err != nil {
		return nil, err
	}

	flight, err := s.flights.GetByID(ctx, session.FlightID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	records := make([]domain.Passenger, 0, len(passengers))
	for i, input := range passengers {
		p, err := s.buildPassenger(input, flight.International, now)
		if err != nil {
			return nil, fmt.Errorf("passenger %d: %w", i+1, err)
		}
		records = append(records, *p)
	}

	session.Passengers = records
	session.ContactEmail = contact.Email
	session.ContactPhone = contact.Phone
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) buildPassenger(input PassengerInput, international bool, now time.Time) (*domain.Passenger, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}

	dob, err := time.Parse("2006-01-02", input.DateOfBirth)
	if err != nil {
		return nil, fmt.Errorf("invalid date of birth: %w", err)
	}

	ptype := domain.PassengerType(input.PassengerType)
	if err := ptype.ValidateType(dob, now); err != nil {
		return nil, err
	}

	if international && input.PassportNumber == "" {
		return nil, ErrPassportRequired
	}

	var passportExpiry *time.Time
	if input.PassportExpiry != "" {
		exp, err := time.Parse("2006-01-02", input.PassportExpiry)
		if err != nil {
			return nil, fmt.Errorf("invalid passport expiry: %w", err)
		}
		passportExpiry = &exp
	}

	meal := domain.MealPreference(input.MealPreference)
	if meal == "" {
		meal = domain.MealRegular
	}

	return &domain.Passenger{
		Title:            domain.Title(input.Title),
		FirstName:        input.FirstName,
		LastName:         input.LastName,
		DateOfBirth:      dob,
		Type:             ptype,
		PassportNumber:   input.PassportNumber,
		PassportExpiry:   passportExpiry,
		PassportCountry:  input.PassportCountry,
		Nationality:      input.Nationality,
		MealPreference:   meal,
		CheckedBaggageKg: 23,
	}, nil
}

// Review is step three: no writes, only the explicit terms gate.
func (s *Service) Review(ctx context.Context, token string, acceptTerms bool) (*Session, error) {
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if !session.HasPassengers() {
		return nil, ErrStepOrder
	}
	if !acceptTerms {
		return nil, ErrTermsNotAgreed
	}

	session.TermsAccepted = true
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

type PayResult struct {
	Booking          *domain.Booking `json:"booking"`
	Payment          *domain.Payment `json:"payment,omitempty"`
	AuthorizationURL string          `json:"authorization_url,omitempty"`
}

// Pay is step four. Demo mode confirms instantly; gateway mode persists the
// booking as PENDING with a seat hold and hands off to the payment gateway.
// A gateway initialization failure leaves the PENDING booking (and its hold)
// in place so the user can retry; the error is returned alongside the
// partially built result. The booking reference is recorded on the session,
// so a retried Pay settles the same booking rather than holding seats twice.
func (s *Service) Pay(ctx context.Context, token, method string) (*PayResult, error) {
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if !session.HasPassengers() || !session.TermsAccepted {
		return nil, ErrStepOrder
	}

	flight, err := s.flights.GetByID(ctx, session.FlightID)
	if err != nil {
		return nil, err
	}
	if !flight.IsBookable(time.Now()) {
		return nil, ErrFlightNotBookable
	}

	switch method {
	case PayMethodDemo:
		var booking *domain.Booking
		if session.BookingReference != "" {
			// An earlier gateway attempt already holds a PENDING booking
			// for this session; confirm it instead of creating another.
			booking, err = s.bookings.Confirm(ctx, session.BookingReference)
		} else {
			booking, err = s.createBooking(ctx, session, true)
		}
		if err != nil {
			return nil, err
		}
		_ = s.sessions.DeleteSession(ctx, token)
		return &PayResult{Booking: booking}, nil

	case PayMethodGateway:
		booking, err := s.sessionBooking(ctx, session)
		if err != nil {
			return nil, err
		}

		payment, err := s.payments.InitiateForBooking(ctx, booking)
		if err != nil {
			// Booking stays PENDING for retry; the hold expiry sweep cleans
			// up if the user never comes back.
			return &PayResult{Booking: booking}, err
		}

		_ = s.sessions.DeleteSession(ctx, token)
		return &PayResult{
			Booking:          booking,
			Payment:          payment,
			AuthorizationURL: payment.AuthorizationURL,
		}, nil
	}
	return nil, ErrUnknownPayMethod
}

// sessionBooking returns the PENDING booking a previous gateway attempt left
// behind for this session, or creates one and records its reference on the
// session before handing off to the gateway.
func (s *Service) sessionBooking(ctx context.Context, session *Session) (*domain.Booking, error) {
	if session.BookingReference != "" {
		return s.bookings.GetByReference(ctx, session.BookingReference)
	}

	booking, err := s.createBooking(ctx, session, false)
	if err != nil {
		return nil, err
	}
	session.BookingReference = booking.Reference
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *Service) createBooking(ctx context.Context, session *Session, confirmed bool) (*domain.Booking, error) {
	now := time.Now().UTC()
	booking := &domain.Booking{
		FlightID:      session.FlightID,
		SeatClass:     session.SeatClass,
		Status:        domain.BookingStatusPending,
		BasePrice:     session.Quote.Base,
		Taxes:         session.Quote.Taxes,
		Fees:          session.Quote.Fees,
		Discount:      session.Quote.Discount,
		ContactEmail:  session.ContactEmail,
		ContactPhone:  session.ContactPhone,
		HoldExpiresAt: now.Add(s.holdTTL),
		Passengers:    session.Passengers,
	}
	if confirmed {
		booking.Status = domain.BookingStatusConfirmed
		booking.ConfirmedAt = &now
	}
	booking.RecomputeTotal()

	// Bounded retry against reference collisions; the unique constraint is
	// the authority, the pre-check just avoids burning an insert.
	for attempt := 0; attempt < domain.ReferenceMaxAttempts; attempt++ {
		ref := domain.NewBookingReference()
		exists, err := s.bookings.ReferenceExists(ctx, ref)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		booking.Reference = ref
		err = s.bookings.CreateWithHold(ctx, booking)
		if err == nil {
			metrics.AddSeatsReserved(len(booking.Passengers))
			return booking, nil
		}
		if errors.Is(err, repository.ErrDuplicateReference) {
			continue
		}
		return nil, err
	}
	return nil, domain.ErrReferenceExhausted
}

var _ CheckoutUseCase = (*Service)(nil)
