package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tolusimi/naiabook/internal/domain"
	"github.com/tolusimi/naiabook/internal/repository"
)

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

func TestGetByReference_ValidatesFormat(t *testing.T) {
	svc := NewBookingService(&MockBookingRepository{}, &MockFlightRepository{})

	_, err := svc.GetByReference(context.Background(), "bad-ref")
	assert.Error(t, err)
}

func TestManage_RequiresLastName(t *testing.T) {
	repo := &MockBookingRepository{}
	svc := NewBookingService(repo, &MockFlightRepository{})

	_, err := svc.Manage(context.Background(), "ABC234", "")
	assert.ErrorIs(t, err, ErrLastNameNeeded)

	booking := &domain.Booking{Reference: "ABC234", Status: domain.BookingStatusConfirmed}
	repo.On("FindByReferenceAndLastName", mock.Anything, "ABC234", "Adeyemi").Return(booking, nil)

	got, err := svc.Manage(context.Background(), "ABC234", "Adeyemi")
	require.NoError(t, err)
	assert.Equal(t, booking, got)
}

func TestCancel_WithinWindow(t *testing.T) {
	repo := &MockBookingRepository{}
	flights := &MockFlightRepository{}
	svc := NewBookingService(repo, flights)

	booking := &domain.Booking{Reference: "ABC234", FlightID: 1, Status: domain.BookingStatusConfirmed}
	flight := &domain.Flight{ID: 1, DepartureTime: time.Now().Add(24 * time.Hour)}
	cancelled := &domain.Booking{Reference: "ABC234", Status: domain.BookingStatusCancelled}

	repo.On("GetByReference", mock.Anything, "ABC234").Return(booking, nil)
	flights.On("GetByID", mock.Anything, int64(1)).Return(flight, nil)
	repo.On("Cancel", mock.Anything, "ABC234", "plans changed").Return(cancelled, nil)

	got, err := svc.Cancel(context.Background(), "ABC234", "plans changed")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, got.Status)
}

func TestCancel_AfterDeparture(t *testing.T) {
	repo := &MockBookingRepository{}
	flights := &MockFlightRepository{}
	svc := NewBookingService(repo, flights)

	booking := &domain.Booking{Reference: "ABC234", FlightID: 1, Status: domain.BookingStatusConfirmed}
	flight := &domain.Flight{ID: 1, DepartureTime: time.Now().Add(-time.Hour)}

	repo.On("GetByReference", mock.Anything, "ABC234").Return(booking, nil)
	flights.On("GetByID", mock.Anything, int64(1)).Return(flight, nil)

	_, err := svc.Cancel(context.Background(), "ABC234", "too late")
	assert.ErrorIs(t, err, ErrNotCancellable)
	repo.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancel_CheckedInBooking(t *testing.T) {
	repo := &MockBookingRepository{}
	flights := &MockFlightRepository{}
	svc := NewBookingService(repo, flights)

	booking := &domain.Booking{Reference: "ABC234", FlightID: 1, Status: domain.BookingStatusCheckedIn}
	flight := &domain.Flight{ID: 1, DepartureTime: time.Now().Add(24 * time.Hour)}

	repo.On("GetByReference", mock.Anything, "ABC234").Return(booking, nil)
	flights.On("GetByID", mock.Anything, int64(1)).Return(flight, nil)

	_, err := svc.Cancel(context.Background(), "ABC234", "changed mind")
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestTransition_Valid(t *testing.T) {
	repo := &MockBookingRepository{}
	svc := NewBookingService(repo, &MockFlightRepository{})

	booking := &domain.Booking{Reference: "ABC234", Status: domain.BookingStatusConfirmed}
	checkedIn := &domain.Booking{Reference: "ABC234", Status: domain.BookingStatusCheckedIn}

	repo.On("GetByReference", mock.Anything, "ABC234").Return(booking, nil)
	repo.On("SetStatus", mock.Anything, "ABC234", domain.BookingStatusCheckedIn).Return(checkedIn, nil)

	got, err := svc.Transition(context.Background(), "ABC234", domain.BookingStatusCheckedIn)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCheckedIn, got.Status)
}

func TestTransition_Invalid(t *testing.T) {
	repo := &MockBookingRepository{}
	svc := NewBookingService(repo, &MockFlightRepository{})

	booking := &domain.Booking{Reference: "ABC234", Status: domain.BookingStatusPending}
	repo.On("GetByReference", mock.Anything, "ABC234").Return(booking, nil)

	_, err := svc.Transition(context.Background(), "ABC234", domain.BookingStatusBoarded)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	repo.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestExpireHolds(t *testing.T) {
	repo := &MockBookingRepository{}
	svc := NewBookingService(repo, &MockFlightRepository{})

	expired := []domain.Booking{
		{Reference: "ABC234", Status: domain.BookingStatusCancelled},
		{Reference: "XYZ789", Status: domain.BookingStatusCancelled},
	}
	repo.On("ExpireHolds", mock.Anything, mock.AnythingOfType("time.Time")).Return(expired, nil)

	got, err := svc.ExpireHolds(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
