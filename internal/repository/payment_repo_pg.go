package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tolusimi/naiabook/internal/domain"
)

// CompletedDetails carries the gateway's transaction details captured at
// verification time.
type CompletedDetails struct {
	GatewayResponse string
	Channel         string
	CardLast4       string
	CardType        string
	BankName        string
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByGatewayReference(ctx context.Context, reference string) (*domain.Payment, error)
	// OpenForBooking returns the latest COMPLETED or PROCESSING payment for
	// the booking, or ErrNotFound.
	OpenForBooking(ctx context.Context, bookingID int64) (*domain.Payment, error)
	MarkProcessing(ctx context.Context, reference, accessCode, authorizationURL string) error
	// MarkCompleted is the idempotency gate for payment confirmation: it
	// succeeds at most once per payment. The bool reports whether this call
	// performed the transition; false means another trigger already did.
	MarkCompleted(ctx context.Context, reference string, details CompletedDetails) (bool, error)
	MarkFailed(ctx context.Context, reference, gatewayResponse string) error
	// AddRefund accumulates a refund, flipping the status to REFUNDED or
	// PARTIALLY_REFUNDED depending on the remaining balance.
	AddRefund(ctx context.Context, reference string, amount domain.Money, reason string) (*domain.Payment, error)
}

const paymentColumns = `p.id, p.booking_id, b.reference, p.amount, p.currency, p.method, p.status,
	p.gateway_reference, p.access_code, p.authorization_url,
	p.card_last4, p.card_type, p.bank_name, p.channel, p.gateway_response,
	p.paid_at, p.refund_amount, p.refunded_at, p.refund_reason,
	p.created_at, p.updated_at`

type PGPaymentRepository struct {
	db     *pgxpool.Pool
	outbox *OutboxRepository
	topics OutboxTopics
}

func NewPaymentRepository(db *pgxpool.Pool, outbox *OutboxRepository, topics OutboxTopics) PaymentRepository {
	return &PGPaymentRepository{db: db, outbox: outbox, topics: topics}
}

func (r *PGPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	err := r.db.QueryRow(ctx, `INSERT INTO payments
		(booking_id, amount, currency, method, status, gateway_reference)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		payment.BookingID, payment.Amount, payment.Currency, payment.Method, payment.Status, payment.GatewayReference,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *PGPaymentRepository) GetByGatewayReference(ctx context.Context, reference string) (*domain.Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments p
		JOIN bookings b ON b.id = p.booking_id
		WHERE p.gateway_reference=$1`, reference)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *PGPaymentRepository) OpenForBooking(ctx context.Context, bookingID int64) (*domain.Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments p
		JOIN bookings b ON b.id = p.booking_id
		WHERE p.booking_id=$1 AND p.status = ANY($2)
		ORDER BY p.created_at DESC LIMIT 1`,
		bookingID, []string{string(domain.PaymentStatusCompleted), string(domain.PaymentStatusProcessing)})
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *PGPaymentRepository) MarkProcessing(ctx context.Context, reference, accessCode, authorizationURL string) error {
	tag, err := r.db.Exec(ctx, `UPDATE payments
		SET status=$1, access_code=$2, authorization_url=$3, updated_at=now()
		WHERE gateway_reference=$4 AND status=$5`,
		domain.PaymentStatusProcessing, accessCode, authorizationURL, reference, domain.PaymentStatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGPaymentRepository) MarkCompleted(ctx context.Context, reference string, details CompletedDetails) (bool, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `UPDATE payments p
		SET status=$1, paid_at=now(), gateway_response=$2, channel=$3,
		    card_last4=$4, card_type=$5, bank_name=$6, updated_at=now()
		FROM bookings b
		WHERE p.gateway_reference=$7 AND p.status = ANY($8) AND b.id = p.booking_id
		RETURNING `+paymentColumns,
		domain.PaymentStatusCompleted, details.GatewayResponse, details.Channel,
		details.CardLast4, details.CardType, details.BankName,
		reference, []string{string(domain.PaymentStatusPending), string(domain.PaymentStatusProcessing)})
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Already terminal: the second of two racing verifications
			// lands here and must not double-process.
			return false, nil
		}
		return false, err
	}

	if err := r.stageEvent(ctx, tx, domain.NewPaymentEvent(domain.EventPaymentCompleted, p)); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *PGPaymentRepository) MarkFailed(ctx context.Context, reference, gatewayResponse string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `UPDATE payments p
		SET status=$1, gateway_response=$2, updated_at=now()
		FROM bookings b
		WHERE p.gateway_reference=$3 AND p.status = ANY($4) AND b.id = p.booking_id
		RETURNING `+paymentColumns,
		domain.PaymentStatusFailed, gatewayResponse, reference,
		[]string{string(domain.PaymentStatusPending), string(domain.PaymentStatusProcessing)})
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	if err := r.stageEvent(ctx, tx, domain.NewPaymentEvent(domain.EventPaymentFailed, p)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PGPaymentRepository) AddRefund(ctx context.Context, reference string, amount domain.Money, reason string) (*domain.Payment, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// The WHERE clause caps the cumulative refund at the original amount.
	row := tx.QueryRow(ctx, `UPDATE payments p
		SET refund_amount = p.refund_amount + $1,
		    refund_reason = $2,
		    refunded_at = now(),
		    status = CASE WHEN p.refund_amount + $1 >= p.amount THEN $3 ELSE $4 END,
		    updated_at = now()
		FROM bookings b
		WHERE p.gateway_reference=$5 AND p.status = ANY($6)
		  AND p.refund_amount + $1 <= p.amount AND b.id = p.booking_id
		RETURNING `+paymentColumns,
		amount, reason, domain.PaymentStatusRefunded, domain.PaymentStatusPartiallyRefunded,
		reference, []string{string(domain.PaymentStatusCompleted), string(domain.PaymentStatusPartiallyRefunded)})
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payment %s is not refundable for %s: %w", reference, amount, ErrNotFound)
		}
		return nil, err
	}

	if err := r.stageEvent(ctx, tx, domain.NewPaymentEvent(domain.EventPaymentRefunded, p)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PGPaymentRepository) stageEvent(ctx context.Context, tx pgx.Tx, event domain.PaymentEvent) error {
	if r.outbox == nil || r.topics.Bookings == "" {
		return nil
	}
	return r.outbox.Append(ctx, tx, r.topics.Bookings, event.BookingReference, event)
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p          domain.Payment
		paidAt     pgtype.Timestamptz
		refundedAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&p.ID, &p.BookingID, &p.BookingReference, &p.Amount, &p.Currency, &p.Method, &p.Status,
		&p.GatewayReference, &p.AccessCode, &p.AuthorizationURL,
		&p.CardLast4, &p.CardType, &p.BankName, &p.Channel, &p.GatewayResponse,
		&paidAt, &p.RefundAmount, &refundedAt, &p.RefundReason,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	if refundedAt.Valid {
		t := refundedAt.Time
		p.RefundedAt = &t
	}
	return &p, nil
}

var _ PaymentRepository = (*PGPaymentRepository)(nil)
