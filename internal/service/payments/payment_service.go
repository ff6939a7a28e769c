package payments

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/tolusimi/naiabook/internal/domain"
	"github.com/tolusimi/naiabook/internal/gateway/paystack"
	"github.com/tolusimi/naiabook/internal/repository"
)

var (
	ErrAlreadyPaid    = errors.New("booking is already paid")
	ErrBookingNotOpen = errors.New("booking is not awaiting payment")
	ErrNotRefundable  = errors.New("payment is not refundable")
	ErrRefundTooLarge = errors.New("refund exceeds the refundable balance")
)

// Gateway is the slice of the Paystack client the payment flow needs.
type Gateway interface {
	Initialize(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResult, error)
	Verify(ctx context.Context, reference string) (*paystack.VerifyResult, error)
	Refund(ctx context.Context, reference string, amount domain.Money) (*paystack.RefundResult, error)
	ParseWebhook(body []byte, signature string) (*paystack.WebhookEvent, error)
}

type Confirmer interface {
	Confirm(ctx context.Context, reference string) (*domain.Booking, error)
}

type PaymentUseCase interface {
	InitiateForBooking(ctx context.Context, booking *domain.Booking) (*domain.Payment, error)
	Retry(ctx context.Context, bookingReference string) (*domain.Payment, error)
	VerifyCallback(ctx context.Context, gatewayReference string) (*domain.Payment, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	Status(ctx context.Context, gatewayReference string) (*domain.Payment, error)
	Refund(ctx context.Context, gatewayReference string, amount domain.Money, reason string) (*domain.Payment, error)
}

type PaymentService struct {
	payments    repository.PaymentRepository
	bookings    repository.BookingRepository
	gateway     Gateway
	confirmer   Confirmer
	callbackURL string
}

func NewPaymentService(
	payments repository.PaymentRepository,
	bookings repository.BookingRepository,
	gateway Gateway,
	confirmer Confirmer,
	callbackURL string,
) *PaymentService {
	return &PaymentService{
		payments:    payments,
		bookings:    bookings,
		gateway:     gateway,
		confirmer:   confirmer,
		callbackURL: callbackURL,
	}
}

// InitiateForBooking creates a payment attempt and opens a gateway
// transaction. If a PROCESSING attempt already exists its hosted page is
// reused instead of opening a second transaction; a COMPLETED attempt
// rejects the call outright.
func (s *PaymentService) InitiateForBooking(ctx context.Context, booking *domain.Booking) (*domain.Payment, error) {
	if booking.Status != domain.BookingStatusPending {
		return nil, ErrBookingNotOpen
	}

	existing, err := s.payments.OpenForBooking(ctx, booking.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		switch existing.Status {
		case domain.PaymentStatusCompleted:
			return nil, ErrAlreadyPaid
		case domain.PaymentStatusProcessing:
			return existing, nil
		}
	}

	payment := &domain.Payment{
		BookingID:        booking.ID,
		BookingReference: booking.Reference,
		Amount:           booking.TotalPrice,
		Currency:         domain.DefaultCurrency,
		Method:           domain.PaymentMethodPaystack,
		Status:           domain.PaymentStatusPending,
		GatewayReference: paystack.GenerateReference(),
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	result, err := s.gateway.Initialize(ctx, paystack.InitializeRequest{
		Reference:   payment.GatewayReference,
		Email:       booking.ContactEmail,
		Amount:      payment.Amount,
		CallbackURL: s.callbackURL,
		BookingRef:  booking.Reference,
	})
	if err != nil {
		if markErr := s.payments.MarkFailed(ctx, payment.GatewayReference, err.Error()); markErr != nil {
			log.Printf("mark payment %s failed: %v", payment.GatewayReference, markErr)
		}
		return nil, fmt.Errorf("initialize gateway transaction: %w", err)
	}

	if err := s.payments.MarkProcessing(ctx, payment.GatewayReference, result.AccessCode, result.AuthorizationURL); err != nil {
		return nil, err
	}
	payment.Status = domain.PaymentStatusProcessing
	payment.AccessCode = result.AccessCode
	payment.AuthorizationURL = result.AuthorizationURL
	return payment, nil
}

// Retry opens a fresh payment attempt for a PENDING booking whose previous
// attempt failed.
func (s *PaymentService) Retry(ctx context.Context, bookingReference string) (*domain.Payment, error) {
	booking, err := s.bookings.GetByReference(ctx, bookingReference)
	if err != nil {
		return nil, err
	}
	return s.InitiateForBooking(ctx, booking)
}

// VerifyCallback handles the customer's return from the hosted payment page.
// The gateway, not the redirect, is the source of truth; the MarkCompleted
// gate makes confirmation idempotent across callback and webhook.
func (s *PaymentService) VerifyCallback(ctx context.Context, gatewayReference string) (*domain.Payment, error) {
	payment, err := s.payments.GetByGatewayReference(ctx, gatewayReference)
	if err != nil {
		return nil, err
	}
	if payment.IsSuccessful() {
		return payment, nil
	}

	result, err := s.gateway.Verify(ctx, gatewayReference)
	if err != nil {
		return nil, err
	}
	if !result.Succeeded() {
		if err := s.payments.MarkFailed(ctx, gatewayReference, result.FailureReason); err != nil {
			return nil, err
		}
		return s.payments.GetByGatewayReference(ctx, gatewayReference)
	}

	return s.settle(ctx, payment, result)
}

func (s *PaymentService) settle(ctx context.Context, payment *domain.Payment, result *paystack.VerifyResult) (*domain.Payment, error) {
	won, err := s.payments.MarkCompleted(ctx, payment.GatewayReference, repository.CompletedDetails{
		GatewayResponse: "Approved",
		Channel:         result.Channel,
		CardLast4:       result.CardLast4,
		CardType:        result.CardType,
	})
	if err != nil {
		return nil, err
	}
	if won {
		if _, err := s.confirmer.Confirm(ctx, payment.BookingReference); err != nil {
			// The payment is settled; confirmation retries via Confirm's
			// idempotency rather than rolling the payment back.
			log.Printf("confirm booking %s after payment: %v", payment.BookingReference, err)
			return nil, err
		}
	}
	return s.payments.GetByGatewayReference(ctx, payment.GatewayReference)
}

// HandleWebhook processes gateway push notifications. The signature is
// validated before the body is trusted; unrecognized events are ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(body, signature)
	if err != nil {
		return err
	}
	if event.Event != paystack.EventChargeSuccess {
		return nil
	}

	_, err = s.VerifyCallback(ctx, event.Data.Reference)
	if errors.Is(err, repository.ErrNotFound) {
		// A reference we never issued; acknowledge and drop.
		log.Printf("webhook for unknown payment reference %s", event.Data.Reference)
		return nil
	}
	return err
}

func (s *PaymentService) Status(ctx context.Context, gatewayReference string) (*domain.Payment, error) {
	return s.payments.GetByGatewayReference(ctx, gatewayReference)
}

// Refund issues a full or partial refund through the gateway and records it.
// A fully refunded payment also flips its booking to REFUNDED and releases
// the seats.
func (s *PaymentService) Refund(ctx context.Context, gatewayReference string, amount domain.Money, reason string) (*domain.Payment, error) {
	payment, err := s.payments.GetByGatewayReference(ctx, gatewayReference)
	if err != nil {
		return nil, err
	}
	if !payment.IsRefundable() {
		return nil, ErrNotRefundable
	}
	if amount <= 0 {
		amount = payment.RefundableAmount()
	}
	if amount > payment.RefundableAmount() {
		return nil, ErrRefundTooLarge
	}

	if _, err := s.gateway.Refund(ctx, gatewayReference, amount); err != nil {
		return nil, err
	}

	updated, err := s.payments.AddRefund(ctx, gatewayReference, amount, reason)
	if err != nil {
		return nil, err
	}
	if updated.Status == domain.PaymentStatusRefunded {
		if _, err := s.bookings.MarkRefunded(ctx, updated.BookingReference); err != nil {
			log.Printf("mark booking %s refunded: %v", updated.BookingReference, err)
		}
	}
	return updated, nil
}

var _ PaymentUseCase = (*PaymentService)(nil)
