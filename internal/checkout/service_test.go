package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tolusimi/naiabook/internal/domain"
	"github.com/tolusimi/naiabook/internal/repository"
)

type MockFlightRepository struct {
	mock.Mock
}

func (m *MockFlightRepository) Search(ctx context.Context, filter repository.FlightFilter) ([]domain.Flight, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) ReserveSeats(ctx context.Context, flightID int64, class domain.SeatClass, count int) error {
	args := m.Called(ctx, flightID, class, count)
	return args.Error(0)
}

func (m *MockFlightRepository) ReleaseSeats(ctx context.Context, flightID int64, class domain.SeatClass, count int) error {
	args := m.Called(ctx, flightID, class, count)
	return args.Error(0)
}

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) CreateWithHold(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) FindByReferenceAndLastName(ctx context.Context, reference, lastName string) (*domain.Booking, error) {
	args := m.Called(ctx, reference, lastName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) Confirm(ctx context.Context, reference string) (*domain.Booking, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) Cancel(ctx context.Context, reference, reason string) (*domain.Booking, error) {
	args := m.Called(ctx, reference, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) SetStatus(ctx context.Context, reference string, status domain.BookingStatus) (*domain.Booking, error) {
	args := m.Called(ctx, reference, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ExpireHolds(ctx context.Context, deadline time.Time) ([]domain.Booking, error) {
	args := m.Called(ctx, deadline)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) MarkRefunded(ctx context.Context, reference string) (*domain.Booking, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	args := m.Called(ctx, reference)
	return args.Bool(0), args.Error(1)
}

type MockPaymentInitiator struct {
	mock.Mock
}

func (m *MockPaymentInitiator) InitiateForBooking(ctx context.Context, booking *domain.Booking) (*domain.Payment, error) {
	args := m.Called(ctx, booking)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

// memorySessionStore is a map-backed SessionStore so tests can follow the
// full step sequence without Redis.
type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{sessions: make(map[string]Session)}
}

func (s *memorySessionStore) SaveSession(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Token] = *session
	return nil
}

func (s *memorySessionStore) GetSession(ctx context.Context, token string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

func (s *memorySessionStore) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func testFlight() *domain.Flight {
	return &domain.Flight{
		ID:            1,
		Number:        "NB204",
		Origin:        "LOS",
		Destination:   "ABV",
		DepartureTime: time.Now().Add(72 * time.Hour),
		ArrivalTime:   time.Now().Add(73 * time.Hour),
		Status:        domain.FlightStatusScheduled,
		EconomyPrice:  domain.Naira(35000),
		EconomySeats:  50,
		BusinessSeats: 10,
	}
}

func passengerInputs(n int) []PassengerInput {
	inputs := make([]PassengerInput, 0, n)
	for i := 0; i < n; i++ {
		inputs = append(inputs, PassengerInput{
			Title:         "MR",
			FirstName:     "Tolu",
			LastName:      "Adeyemi",
			DateOfBirth:   "1990-04-15",
			PassengerType: "ADULT",
		})
	}
	return inputs
}

func testContact() ContactInput {
	return ContactInput{Email: "tolu@example.com", Phone: "+2348012345678"}
}

func TestSelectFlight(t *testing.T) {
	flightRepo := &MockFlightRepository{}
	store := newMemorySessionStore()
	svc := NewService(flightRepo, &MockBookingRepository{}, &MockPaymentInitiator{}, store, 30*time.Minute)

	flightRepo.On("GetByID", mock.Anything, int64(1)).Return(testFlight(), nil)

	session, err := svc.SelectFlight(context.Background(), SelectFlightInput{
		FlightID:   1,
		SeatClass:  "ECONOMY",
		Passengers: 2,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, domain.SeatClassEconomy, session.SeatClass)
	assert.Equal(t, domain.Naira(79000), session.Quote.Total)

	saved, err := store.GetSession(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.FlightID, saved.FlightID)
}

func TestSelectFlight_NotEnoughSeats(t *testing.T) {
	flightRepo := &MockFlightRepository{}
	svc := NewService(flightRepo, &MockBookingRepository{}, &MockPaymentInitiator{}, newMemorySessionStore(), 30*time.Minute)

	flight := testFlight()
	flight.EconomySeats = 1
	flightRepo.On("GetByID", mock.Anything, int64(1)).Return(flight, nil)

	_, err := svc.SelectFlight(context.Background(), SelectFlightInput{
		FlightID:   1,
		SeatClass:  "ECONOMY",
		Passengers: 2,
	})
	assert.ErrorIs(t, err, ErrNotEnoughSeats)
}

func TestSelectFlight_NotBookable(t *testing.T) {
	flightRepo := &MockFlightRepository{}
	svc := NewService(flightRepo, &MockBookingRepository{}, &MockPaymentInitiator{}, newMemorySessionStore(), 30*time.Minute)

	flight := testFlight()
	flight.Status = domain.FlightStatusCancelled
	flightRepo.On("GetByID", mock.Anything, int64(1)).Return(flight, nil)

	_, err := svc.SelectFlight(context.Background(), SelectFlightInput{
		FlightID:   1,
		SeatClass:  "ECONOMY",
		Passengers: 1,
	})
	assert.ErrorIs(t, err, ErrFlightNotBookable)
}

func TestSubmitPassengers_CountMismatch(t *testing.T) {
	flightRepo := &MockFlightRepository{}
	store := newMemorySessionStore()
	svc := NewService(flightRepo, &MockBookingRepository{}, &MockPaymentInitiator{}, store, 30*time.Minute)

	flightRepo.On("GetByID", mock.Anything, int64(1)).Return(testFlight(), nil)

	session, err := svc.SelectFlight(context.Background(), SelectFlightInput{FlightID: 1, SeatClass: "ECONOMY", Passengers: 2})
	require.NoError(t, err)

	_, err = svc.SubmitPassengers(context.Background(), session.Token, passengerInputs(1), testContact())
	assert.ErrorIs(t, err, ErrPassengerMismatch)
}

func TestSubmitPassengers_AgeBracket(t *testing.T) {
	flightRepo := &MockFlightRepository{}
	store := newMemorySessionStore()
	svc := NewService(flightRepo, &MockBookingRepository{}, &MockPaymentInitiator{}, store, 30*time.Minute)

	flightRepo.On("GetByID", mock.Anything, int64(1)).Return(testFlight(), nil)

	session, err := svc.SelectFlight(context.Background(), SelectFlightInput{FlightID: 1, SeatClass: "ECONOMY", Passengers: 1})
	require.NoError(t, err)

	inputs := passengerInputs(1)
	inputs[0].PassengerType = "INFANT" // born 1990, far beyond the bracket
	_, err = svc.SubmitPassengers(context.Background(), session.Token, inputs, testContact())
	assert.Error(t, err)
}

func TestSubmitPassengers_InternationalRequiresPassport(t *testing.T) {
	flightRepo := &MockFlightRepository{}
	store := newMemorySessionStore()
	svc := NewService(flightRepo, &MockBookingRepository{}, &MockPaymentInitiator{}, store, 30*time.Minute)

	flight := testFlight()
	flight.International = true
	flightRepo.On("GetByID", mock.Anything, int64(1)).Return(flight, nil)

	session, err := svc.SelectFlight(context.Background(), SelectFlightInput{FlightID: 1, SeatClass: "ECONOMY", Passengers: 1})
	require.NoError(t, err)

	_, err = svc.SubmitPassengers(context.Background(), session.Token, passengerInputs(1), testContact())
	assert.ErrorIs(t, err, ErrPassportRequired)

	inputs := passengerInputs(1)
	inputs[0].PassportNumber = "A1234567"
	_, err = svc.SubmitPassengers(context.Background(), session.Token, inputs, testContact())
	assert.NoError(t, err)
}

func TestReview_RequiresPassengersAndTerms(t *testing.T) {
	flightRepo := &MockFlightRepository{}
	store := newMemorySessionStore()
	svc := NewService(flightRepo, &MockBookingRepository{}, &MockPaymentInitiator{}, store, 30*time.Minute)

	flightRepo.On("GetByID", mock.Anything, int64(1)).Return(testFlight(), nil)

	session, err := svc.SelectFlight(context.Background(), SelectFlightInput{FlightID: 1, SeatClass: "ECONOMY", Passengers: 1})
	require.NoError(t, err)

	// Review before passengers were submitted.
	_, err = svc.Review(context.Background(), session.Token, true)
	assert.ErrorIs(t, err, ErrStepOrder)

	_, err = svc.SubmitPassengers(context.Background(), session.Token, passengerInputs(1), testContact())
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), session.Token, false)
	assert.ErrorIs(t, err, ErrTermsNotAgreed)

	reviewed, err := svc.Review(context.Background(), session.Token, true)
	require.NoError(t, err)
	assert.True(t, reviewed.TermsAccepted)
}

func TestPay_BeforeReview(t *testing.T) {
	flightRepo := &MockFlightRepository{}
	store := newMemorySessionStore()
	svc := NewService(flightRepo, &MockBookingRepository{}, &MockPaymentInitiator{}, store, 30*time.Minute)

	flightRepo.On("GetByID", mock.Anything, int64(1)).Return(testFlight(), nil)

	session, err := svc.SelectFlight(context.Background(), SelectFlightInput{FlightID: 1, SeatClass: "ECONOMY", Passengers: 1})
	require.NoError(t, err)

	_, err = svc.Pay(context.Background(), session.Token, PayMethodDemo)
	assert.ErrorIs(t, err, ErrStepOrder)
}

func completedSession(t *testing.T, svc *Service, passengers int) *Session {
	t.Helper()
	session, err := svc.SelectFlight(context.Background(), SelectFlightInput{FlightID: 1, SeatClass: "ECONOMY", Passengers: passengers})
	require.NoError(t, err)
	_, err = svc.SubmitPassengers(context.Background(), session.Token, passengerInputs(passengers), testContact())
	require.NoError(t, err)
	_, err = svc.Review(context.Background(), session.Token, true)
	require.NoError(t, err)
	return session
}

func TestPay_Demo(t *testing.T) {
	flightRepo := &MockFlightRepository{}
	bookingRepo := &MockBookingRepository{}
	store := newMemorySessionStore()
	svc := NewService(flightRepo, bookingRepo, &MockPaymentInitiator{}, store, 30*time.Minute)

	flightRepo.On("GetByID", mock.Anything, int64(1)).Return(testFlight(), nil)
	bookingRepo.On("ReferenceExists", mock.Anything, mock.Anything).Return(false, nil)
	bookingRepo.On("CreateWithHold", mock.Anything, mock.Anything).Return(nil)

	session := completedSession(t, svc, 2)

	result, err := svc.Pay(context.Background(), session.Token, PayMethodDemo)
	require.NoError(t, err)
	require.NotNil(t, result.Booking)
	assert.Equal(t, domain.BookingStatusConfirmed, result.Booking.Status)
	assert.NotNil(t, result.Booking.ConfirmedAt)
	assert.NoError(t, domain.ValidateBookingReference(result.Booking.Reference))
	assert.Equal(t, domain.Naira(79000), result.Booking.TotalPrice)
	assert.Nil(t, result.Payment)

	// Session is consumed.
	_, err = store.GetSession(context.Background(), session.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPay_GatewayFailureKeepsPendingBooking(t *testing.T) {
	flightRepo := &MockFlightRepository{}
	bookingRepo := &MockBookingRepository{}
	initiator := &MockPaymentInitiator{}
	store := newMemorySessionStore()
	svc := NewService(flightRepo, bookingRepo, initiator, store, 30*time.Minute)

	flightRepo.On("GetByID", mock.Anything, int64(1)).Return(testFlight(), nil)
	bookingRepo.On("ReferenceExists", mock.Anything, mock.Anything).Return(false, nil)
	bookingRepo.On("CreateWithHold", mock.Anything, mock.Anything).Return(nil)
	initiator.On("InitiateForBooking", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	session := completedSession(t, svc, 1)

	result, err := svc.Pay(context.Background(), session.Token, PayMethodGateway)
	assert.Error(t, err)
	require.NotNil(t, result)
	require.NotNil(t, result.Booking)
	assert.Equal(t, domain.BookingStatusPending, result.Booking.Status)

	// The session survives a gateway failure so the customer can retry, and
	// records the booking it already created.
	saved, getErr := store.GetSession(context.Background(), session.Token)
	require.NoError(t, getErr)
	assert.Equal(t, result.Booking.Reference, saved.BookingReference)
}

func TestPay_GatewayRetryReusesPendingBooking(t *testing.T) {
	flightRepo := &MockFlightRepository{}
	bookingRepo := &MockBookingRepository{}
	initiator := &MockPaymentInitiator{}
	store := newMemorySessionStore()
	svc := NewService(flightRepo, bookingRepo, initiator, store, 30*time.Minute)

	flightRepo.On("GetByID", mock.Anything, int64(1)).Return(testFlight(), nil)
	bookingRepo.On("ReferenceExists", mock.Anything, mock.Anything).Return(false, nil)
	bookingRepo.On("CreateWithHold", mock.Anything, mock.Anything).Return(nil)
	initiator.On("InitiateForBooking", mock.Anything, mock.Anything).Return(nil, assert.AnError).Once()
	initiator.On("InitiateForBooking", mock.Anything, mock.Anything).Return(&domain.Payment{
		Status:           domain.PaymentStatusProcessing,
		AuthorizationURL: "https://checkout.paystack.com/abc",
	}, nil)

	session := completedSession(t, svc, 1)

	first, err := svc.Pay(context.Background(), session.Token, PayMethodGateway)
	require.Error(t, err)
	require.NotNil(t, first.Booking)

	bookingRepo.On("GetByReference", mock.Anything, first.Booking.Reference).Return(first.Booking, nil)

	second, err := svc.Pay(context.Background(), session.Token, PayMethodGateway)
	require.NoError(t, err)
	assert.Equal(t, first.Booking.Reference, second.Booking.Reference)
	assert.Equal(t, "https://checkout.paystack.com/abc", second.AuthorizationURL)

	// One checkout, one booking, one seat hold.
	bookingRepo.AssertNumberOfCalls(t, "CreateWithHold", 1)

	// Session is consumed once the gateway accepts the transaction.
	_, getErr := store.GetSession(context.Background(), session.Token)
	assert.ErrorIs(t, getErr, ErrSessionNotFound)
}

func TestPay_DemoAfterGatewayFailureConfirmsExistingBooking(t *testing.T) {
	flightRepo := &MockFlightRepository{}
	bookingRepo := &MockBookingRepository{}
	initiator := &MockPaymentInitiator{}
	store := newMemorySessionStore()
	svc := NewService(flightRepo, bookingRepo, initiator, store, 30*time.Minute)

	flightRepo.On("GetByID", mock.Anything, int64(1)).Return(testFlight(), nil)
	bookingRepo.On("ReferenceExists", mock.Anything, mock.Anything).Return(false, nil)
	bookingRepo.On("CreateWithHold", mock.Anything, mock.Anything).Return(nil)
	initiator.On("InitiateForBooking", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	session := completedSession(t, svc, 1)

	first, err := svc.Pay(context.Background(), session.Token, PayMethodGateway)
	require.Error(t, err)
	require.NotNil(t, first.Booking)

	confirmed := *first.Booking
	confirmed.Status = domain.BookingStatusConfirmed
	bookingRepo.On("Confirm", mock.Anything, first.Booking.Reference).Return(&confirmed, nil)

	result, err := svc.Pay(context.Background(), session.Token, PayMethodDemo)
	require.NoError(t, err)
	assert.Equal(t, first.Booking.Reference, result.Booking.Reference)
	assert.Equal(t, domain.BookingStatusConfirmed, result.Booking.Status)
	bookingRepo.AssertNumberOfCalls(t, "CreateWithHold", 1)
}

func TestPay_ReferenceCollisionRetries(t *testing.T) {
	flightRepo := &MockFlightRepository{}
	bookingRepo := &MockBookingRepository{}
	store := newMemorySessionStore()
	svc := NewService(flightRepo, bookingRepo, &MockPaymentInitiator{}, store, 30*time.Minute)

	flightRepo.On("GetByID", mock.Anything, int64(1)).Return(testFlight(), nil)
	bookingRepo.On("ReferenceExists", mock.Anything, mock.Anything).Return(true, nil).Times(3)
	bookingRepo.On("ReferenceExists", mock.Anything, mock.Anything).Return(false, nil)
	bookingRepo.On("CreateWithHold", mock.Anything, mock.Anything).Return(nil)

	session := completedSession(t, svc, 1)

	result, err := svc.Pay(context.Background(), session.Token, PayMethodDemo)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Booking.Reference)
	bookingRepo.AssertNumberOfCalls(t, "ReferenceExists", 4)
}

func TestPay_ReferenceExhausted(t *testing.T) {
	flightRepo := &MockFlightRepository{}
	bookingRepo := &MockBookingRepository{}
	store := newMemorySessionStore()
	svc := NewService(flightRepo, bookingRepo, &MockPaymentInitiator{}, store, 30*time.Minute)

	flightRepo.On("GetByID", mock.Anything, int64(1)).Return(testFlight(), nil)
	bookingRepo.On("ReferenceExists", mock.Anything, mock.Anything).Return(true, nil)

	session := completedSession(t, svc, 1)

	_, err := svc.Pay(context.Background(), session.Token, PayMethodDemo)
	assert.ErrorIs(t, err, domain.ErrReferenceExhausted)
	bookingRepo.AssertNumberOfCalls(t, "ReferenceExists", domain.ReferenceMaxAttempts)
}

// inventoryBookingRepo enforces a seat count the way the conditional UPDATE
// does, so two concurrent payments racing for the last seat can be observed
// end to end.
type inventoryBookingRepo struct {
	MockBookingRepository
	mu    sync.Mutex
	seats int
}

func (r *inventoryBookingRepo) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	return false, nil
}

func (r *inventoryBookingRepo) CreateWithHold(ctx context.Context, booking *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seats < len(booking.Passengers) {
		return repository.ErrInsufficientInventory
	}
	r.seats -= len(booking.Passengers)
	return nil
}

func TestPay_LastSeatRace(t *testing.T) {
	flightRepo := &MockFlightRepository{}
	store := newMemorySessionStore()
	repo := &inventoryBookingRepo{seats: 1}
	svc := NewService(flightRepo, repo, &MockPaymentInitiator{}, store, 30*time.Minute)

	flight := testFlight()
	flight.EconomySeats = 1
	flightRepo.On("GetByID", mock.Anything, int64(1)).Return(flight, nil)

	first := completedSession(t, svc, 1)
	second := completedSession(t, svc, 1)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, token := range []string{first.Token, second.Token} {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			_, err := svc.Pay(context.Background(), tok, PayMethodDemo)
			results <- err
		}(token)
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, repository.ErrInsufficientInventory)
			losses++
		}
	}
	assert.Equal(t, 1, wins, "exactly one booking should win the last seat")
	assert.Equal(t, 1, losses)
}
