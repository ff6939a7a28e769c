package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tolusimi/naiabook/internal/domain"
)

type BookingRepository interface {
	// CreateWithHold inserts the booking and its passengers and reserves one
	// seat per passenger, all in a single transaction. A PENDING booking
	// holds its seats until hold_expires_at; ExpireHolds releases them.
	CreateWithHold(ctx context.Context, booking *domain.Booking) error
	GetByReference(ctx context.Context, reference string) (*domain.Booking, error)
	FindByReferenceAndLastName(ctx context.Context, reference, lastName string) (*domain.Booking, error)
	// Confirm flips PENDING to CONFIRMED. Calling it on an already confirmed
	// booking is a no-op returning the current row.
	Confirm(ctx context.Context, reference string) (*domain.Booking, error)
	// Cancel flips PENDING or CONFIRMED to CANCELLED and releases the held
	// seats in the same transaction.
	Cancel(ctx context.Context, reference, reason string) (*domain.Booking, error)
	// SetStatus applies an operational transition (check-in, boarding,
	// completion, no-show) already validated by the caller.
	SetStatus(ctx context.Context, reference string, status domain.BookingStatus) (*domain.Booking, error)
	// ExpireHolds cancels PENDING bookings whose hold deadline passed and
	// releases their seats.
	ExpireHolds(ctx context.Context, deadline time.Time) ([]domain.Booking, error)
	// MarkRefunded flips CONFIRMED to REFUNDED and releases the seats.
	MarkRefunded(ctx context.Context, reference string) (*domain.Booking, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)
}

// OutboxTopics names the Kafka topics booking events are staged for. Each
// event is appended to both, mirroring the separate consumer groups for
// analytics and notifications.
type OutboxTopics struct {
	Bookings      string
	Notifications string
}

const bookingColumns = `id, reference, flight_id, seat_class, status,
	base_price, taxes, fees, discount, total_price,
	contact_email, contact_phone, special_requests,
	hold_expires_at, booked_at, confirmed_at, cancelled_at, cancellation_reason,
	created_at, updated_at`

type PGBookingRepository struct {
	db     *pgxpool.Pool
	outbox *OutboxRepository
	topics OutboxTopics
}

func NewBookingRepository(db *pgxpool.Pool, outbox *OutboxRepository, topics OutboxTopics) BookingRepository {
	return &PGBookingRepository{db: db, outbox: outbox, topics: topics}
}

func (r *PGBookingRepository) CreateWithHold(ctx context.Context, booking *domain.Booking) error {
	if len(booking.Passengers) == 0 {
		return errors.New("booking must have at least one passenger")
	}
	booking.RecomputeTotal()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := reserveSeats(ctx, tx, booking.FlightID, booking.SeatClass, len(booking.Passengers)); err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `INSERT INTO bookings
		(reference, flight_id, seat_class, status,
		 base_price, taxes, fees, discount, total_price,
		 contact_email, contact_phone, special_requests,
		 hold_expires_at, confirmed_at, booked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now())
		RETURNING id, booked_at, created_at, updated_at`,
		booking.Reference, booking.FlightID, booking.SeatClass, booking.Status,
		booking.BasePrice, booking.Taxes, booking.Fees, booking.Discount, booking.TotalPrice,
		booking.ContactEmail, booking.ContactPhone, booking.SpecialRequests,
		booking.HoldExpiresAt, booking.ConfirmedAt,
	).Scan(&booking.ID, &booking.BookedAt, &booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateReference
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	for i := range booking.Passengers {
		p := &booking.Passengers[i]
		p.BookingID = booking.ID
		err := tx.QueryRow(ctx, `INSERT INTO passengers
			(booking_id, title, first_name, last_name, date_of_birth, passenger_type,
			 passport_number, passport_expiry, passport_country, nationality,
			 seat_number, meal_preference, checked_baggage_kg)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id, created_at, updated_at`,
			p.BookingID, p.Title, p.FirstName, p.LastName, p.DateOfBirth, p.Type,
			p.PassportNumber, p.PassportExpiry, p.PassportCountry, p.Nationality,
			p.SeatNumber, p.MealPreference, p.CheckedBaggageKg,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert passenger: %w", err)
		}
	}

	eventType := domain.EventBookingCreated
	if booking.Status == domain.BookingStatusConfirmed {
		eventType = domain.EventBookingConfirmed
	}
	if err := r.stageEvent(ctx, tx, domain.NewBookingEvent(eventType, booking)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PGBookingRepository) GetByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE reference=$1`, reference)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.loadPassengers(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) FindByReferenceAndLastName(ctx context.Context, reference, lastName string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b
		WHERE b.reference = $1
		AND EXISTS (SELECT 1 FROM passengers p WHERE p.booking_id = b.id AND lower(p.last_name) = lower($2))`,
		reference, lastName)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.loadPassengers(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) Confirm(ctx context.Context, reference string) (*domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `UPDATE bookings
		SET status=$1, confirmed_at=now(), updated_at=now()
		WHERE reference=$2 AND status=$3
		RETURNING `+bookingColumns,
		domain.BookingStatusConfirmed, reference, domain.BookingStatusPending)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race or nothing to confirm. Surface the current row
			// so a double-verified payment stays idempotent.
			current, getErr := r.GetByReference(ctx, reference)
			if getErr != nil {
				return nil, getErr
			}
			if current.Status == domain.BookingStatusConfirmed {
				return current, nil
			}
			return nil, fmt.Errorf("%w: booking %s is %s", domain.ErrInvalidTransition, reference, current.Status)
		}
		return nil, err
	}

	// Passengers are loaded before the event is staged so its count is real.
	if err := r.loadPassengers(ctx, b); err != nil {
		return nil, err
	}
	if err := r.stageEvent(ctx, tx, domain.NewBookingEvent(domain.EventBookingConfirmed, b)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) Cancel(ctx context.Context, reference, reason string) (*domain.Booking, error) {
	return r.terminate(ctx, reference, domain.BookingStatusCancelled, reason,
		[]domain.BookingStatus{domain.BookingStatusPending, domain.BookingStatusConfirmed},
		domain.EventBookingCancelled)
}

func (r *PGBookingRepository) MarkRefunded(ctx context.Context, reference string) (*domain.Booking, error) {
	return r.terminate(ctx, reference, domain.BookingStatusRefunded, "payment refunded",
		[]domain.BookingStatus{domain.BookingStatusConfirmed},
		domain.EventBookingRefunded)
}

// terminate moves a booking into a terminal state and releases its seats in
// one transaction.
func (r *PGBookingRepository) terminate(ctx context.Context, reference string, to domain.BookingStatus, reason string, from []domain.BookingStatus, eventType string) (*domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	row := tx.QueryRow(ctx, `UPDATE bookings
		SET status=$1, cancelled_at=now(), cancellation_reason=$2, updated_at=now()
		WHERE reference=$3 AND status = ANY($4)
		RETURNING `+bookingColumns,
		to, reason, reference, fromStrs)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := r.loadPassengers(ctx, b); err != nil {
		return nil, err
	}
	if err := releaseSeats(ctx, tx, b.FlightID, b.SeatClass, b.PassengerCount()); err != nil {
		return nil, err
	}

	if err := r.stageEvent(ctx, tx, domain.NewBookingEvent(eventType, b)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) SetStatus(ctx context.Context, reference string, status domain.BookingStatus) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `UPDATE bookings SET status=$1, updated_at=now()
		WHERE reference=$2 RETURNING `+bookingColumns, status, reference)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) ExpireHolds(ctx context.Context, deadline time.Time) ([]domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `UPDATE bookings
		SET status=$1, cancelled_at=now(), cancellation_reason='payment hold expired', updated_at=now()
		WHERE status=$2 AND hold_expires_at <= $3
		RETURNING `+bookingColumns,
		domain.BookingStatusCancelled, domain.BookingStatusPending, deadline)
	if err != nil {
		return nil, err
	}

	var expired []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		expired = append(expired, *b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range expired {
		b := &expired[i]
		if err := r.loadPassengers(ctx, b); err != nil {
			return nil, err
		}
		if err := releaseSeats(ctx, tx, b.FlightID, b.SeatClass, b.PassengerCount()); err != nil {
			return nil, err
		}
		if err := r.stageEvent(ctx, tx, domain.NewBookingEvent(domain.EventBookingExpired, b)); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return expired, nil
}

func (r *PGBookingRepository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE reference=$1)`, reference).Scan(&exists)
	return exists, err
}

func (r *PGBookingRepository) stageEvent(ctx context.Context, tx pgx.Tx, event domain.BookingEvent) error {
	if r.outbox == nil {
		return nil
	}
	if r.topics.Bookings != "" {
		if err := r.outbox.Append(ctx, tx, r.topics.Bookings, event.Reference, event); err != nil {
			return err
		}
	}
	if r.topics.Notifications != "" {
		if err := r.outbox.Append(ctx, tx, r.topics.Notifications, event.Reference, event); err != nil {
			return err
		}
	}
	return nil
}

func (r *PGBookingRepository) loadPassengers(ctx context.Context, b *domain.Booking) error {
	rows, err := r.db.Query(ctx, `SELECT id, booking_id, title, first_name, last_name, date_of_birth,
		passenger_type, passport_number, passport_expiry, passport_country, nationality,
		seat_number, checked_in, checked_in_at, boarded, boarded_at,
		meal_preference, checked_baggage_kg, created_at, updated_at
		FROM passengers WHERE booking_id=$1 ORDER BY last_name, first_name`, b.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	b.Passengers = b.Passengers[:0]
	for rows.Next() {
		var (
			p              domain.Passenger
			passportExpiry pgtype.Timestamptz
			checkedInAt    pgtype.Timestamptz
			boardedAt      pgtype.Timestamptz
		)
		if err := rows.Scan(&p.ID, &p.BookingID, &p.Title, &p.FirstName, &p.LastName, &p.DateOfBirth,
			&p.Type, &p.PassportNumber, &passportExpiry, &p.PassportCountry, &p.Nationality,
			&p.SeatNumber, &p.CheckedIn, &checkedInAt, &p.Boarded, &boardedAt,
			&p.MealPreference, &p.CheckedBaggageKg, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return err
		}
		if passportExpiry.Valid {
			t := passportExpiry.Time
			p.PassportExpiry = &t
		}
		if checkedInAt.Valid {
			t := checkedInAt.Time
			p.CheckedInAt = &t
		}
		if boardedAt.Valid {
			t := boardedAt.Time
			p.BoardedAt = &t
		}
		b.Passengers = append(b.Passengers, p)
	}
	return rows.Err()
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b           domain.Booking
		confirmedAt pgtype.Timestamptz
		cancelledAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&b.ID, &b.Reference, &b.FlightID, &b.SeatClass, &b.Status,
		&b.BasePrice, &b.Taxes, &b.Fees, &b.Discount, &b.TotalPrice,
		&b.ContactEmail, &b.ContactPhone, &b.SpecialRequests,
		&b.HoldExpiresAt, &b.BookedAt, &confirmedAt, &cancelledAt, &b.CancellationReason,
		&b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		b.ConfirmedAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		b.CancelledAt = &t
	}
	return &b, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
