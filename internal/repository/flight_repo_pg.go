package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tolusimi/naiabook/internal/domain"
)

type FlightFilter struct {
	Origin      string
	Destination string
	// DepartureDate limits results to flights departing on that calendar day.
	DepartureDate *time.Time
}

func (f FlightFilter) IsEmpty() bool {
	return f.Origin == "" && f.Destination == "" && f.DepartureDate == nil
}

type FlightRepository interface {
	Search(ctx context.Context, filter FlightFilter) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	// ReserveSeats atomically decrements the class counter; it fails with
	// ErrInsufficientInventory when fewer than count seats remain or the
	// flight is no longer bookable.
	ReserveSeats(ctx context.Context, flightID int64, class domain.SeatClass, count int) error
	// ReleaseSeats increments the class counter, capped at class capacity.
	ReleaseSeats(ctx context.Context, flightID int64, class domain.SeatClass, count int) error
}

const flightColumns = `id, number, origin, destination, departure_time, arrival_time, status,
	economy_price, business_price, first_price,
	economy_seats, business_seats, first_seats,
	economy_capacity, business_capacity, first_capacity,
	international, created_at, updated_at`

// seatColumns maps a seat class to its counter and capacity columns. Column
// names never come from user input.
func seatColumns(class domain.SeatClass) (seats, capacity string, err error) {
	switch class {
	case domain.SeatClassEconomy:
		return "economy_seats", "economy_capacity", nil
	case domain.SeatClassBusiness:
		return "business_seats", "business_capacity", nil
	case domain.SeatClassFirst:
		return "first_seats", "first_capacity", nil
	}
	return "", "", domain.ErrUnknownSeatClass
}

type PGFlightRepository struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewFlightRepository(db *pgxpool.Pool) FlightRepository {
	return &PGFlightRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PGFlightRepository) Search(ctx context.Context, filter FlightFilter) ([]domain.Flight, error) {
	q := r.sb.
		Select(flightColumns).
		From("flights").
		OrderBy("departure_time ASC")

	if filter.Origin != "" {
		q = q.Where(sq.Eq{"origin": filter.Origin})
	}
	if filter.Destination != "" {
		q = q.Where(sq.Eq{"destination": filter.Destination})
	}
	if filter.DepartureDate != nil {
		day := filter.DepartureDate.Truncate(24 * time.Hour)
		q = q.Where(sq.GtOrEq{"departure_time": day}).
			Where(sq.Lt{"departure_time": day.Add(24 * time.Hour)})
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build flight search: %w", err)
	}

	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("search flights: %w", err)
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	row := r.db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1`, id)
	f, err := scanFlight(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (r *PGFlightRepository) ReserveSeats(ctx context.Context, flightID int64, class domain.SeatClass, count int) error {
	return reserveSeats(ctx, r.db, flightID, class, count)
}

func (r *PGFlightRepository) ReleaseSeats(ctx context.Context, flightID int64, class domain.SeatClass, count int) error {
	return releaseSeats(ctx, r.db, flightID, class, count)
}

// seatExecer lets the conditional seat updates run on the pool or inside a
// booking transaction. Both *pgxpool.Pool and pgx.Tx satisfy it.
type seatExecer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// reserveSeats is the single atomic decrement-if-available operation guarding
// the inventory. The WHERE clause carries the availability check, the
// bookable-status check and the future-departure check, so two concurrent
// reservations for the last seat cannot both succeed.
func reserveSeats(ctx context.Context, db seatExecer, flightID int64, class domain.SeatClass, count int) error {
	seats, _, err := seatColumns(class)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE flights
		SET %[1]s = %[1]s - $2, updated_at = now()
		WHERE id = $1 AND %[1]s >= $2 AND status = ANY($3) AND departure_time > now()`, seats)
	tag, err := db.Exec(ctx, query, flightID, count, bookableStatusStrings())
	if err != nil {
		return fmt.Errorf("reserve seats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientInventory
	}
	return nil
}

// releaseSeats increments the class counter, never past capacity.
func releaseSeats(ctx context.Context, db seatExecer, flightID int64, class domain.SeatClass, count int) error {
	seats, capacity, err := seatColumns(class)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE flights
		SET %[1]s = LEAST(%[1]s + $2, %[2]s), updated_at = now()
		WHERE id = $1`, seats, capacity)
	tag, err := db.Exec(ctx, query, flightID, count)
	if err != nil {
		return fmt.Errorf("release seats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func bookableStatusStrings() []string {
	out := make([]string, 0, len(domain.BookableStatuses))
	for _, s := range domain.BookableStatuses {
		out = append(out, string(s))
	}
	return out
}

func scanFlight(row pgx.Row) (*domain.Flight, error) {
	var f domain.Flight
	if err := row.Scan(
		&f.ID, &f.Number, &f.Origin, &f.Destination, &f.DepartureTime, &f.ArrivalTime, &f.Status,
		&f.EconomyPrice, &f.BusinessPrice, &f.FirstPrice,
		&f.EconomySeats, &f.BusinessSeats, &f.FirstSeats,
		&f.EconomyCapacity, &f.BusinessCapacity, &f.FirstCapacity,
		&f.International, &f.CreatedAt, &f.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &f, nil
}

var _ FlightRepository = (*PGFlightRepository)(nil)
