package domain

import (
	"errors"
	"fmt"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "PENDING"
	PaymentStatusProcessing        PaymentStatus = "PROCESSING"
	PaymentStatusCompleted         PaymentStatus = "COMPLETED"
	PaymentStatusFailed            PaymentStatus = "FAILED"
	PaymentStatusCancelled         PaymentStatus = "CANCELLED"
	PaymentStatusRefunded          PaymentStatus = "REFUNDED"
	PaymentStatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:           {PaymentStatusProcessing, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusProcessing:        {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusCompleted:         {PaymentStatusRefunded, PaymentStatusPartiallyRefunded},
	PaymentStatusPartiallyRefunded: {PaymentStatusRefunded, PaymentStatusPartiallyRefunded},
}

var ErrInvalidPaymentTransition = errors.New("invalid payment status transition")

func (s PaymentStatus) CanTransitionTo(to PaymentStatus) bool {
	for _, next := range paymentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodUSSD         PaymentMethod = "USSD"
	PaymentMethodPaystack     PaymentMethod = "PAYSTACK"
	PaymentMethodDemo         PaymentMethod = "DEMO"
)

// Payment is a single attempt to pay for a booking. A booking may accumulate
// several attempts (retries) but at most one ends up COMPLETED.
type Payment struct {
	ID               int64         `json:"id"`
	BookingID        int64         `json:"booking_id"`
	BookingReference string        `json:"booking_reference"`
	Amount           Money         `json:"amount"`
	Currency         string        `json:"currency"`
	Method           PaymentMethod `json:"method"`
	Status           PaymentStatus `json:"status"`

	GatewayReference string `json:"gateway_reference"`
	AccessCode       string `json:"access_code,omitempty"`
	AuthorizationURL string `json:"authorization_url,omitempty"`

	CardLast4       string `json:"card_last4,omitempty"`
	CardType        string `json:"card_type,omitempty"`
	BankName        string `json:"bank_name,omitempty"`
	Channel         string `json:"channel,omitempty"`
	GatewayResponse string `json:"gateway_response,omitempty"`

	PaidAt       *time.Time `json:"paid_at,omitempty"`
	RefundAmount Money      `json:"refund_amount"`
	RefundedAt   *time.Time `json:"refunded_at,omitempty"`
	RefundReason string     `json:"refund_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Payment) IsSuccessful() bool {
	return p.Status == PaymentStatusCompleted
}

// IsRefundable reports whether any part of the payment can still be
// refunded: COMPLETED or PARTIALLY_REFUNDED with remaining balance.
func (p *Payment) IsRefundable() bool {
	if p.Status != PaymentStatusCompleted && p.Status != PaymentStatusPartiallyRefunded {
		return false
	}
	return p.RefundAmount < p.Amount
}

func (p *Payment) RefundableAmount() Money {
	return p.Amount - p.RefundAmount
}

// Transition moves the payment to the target status, validating against the
// closed transition table.
func (p *Payment) Transition(to PaymentStatus) error {
	if !p.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidPaymentTransition, p.Status, to)
	}
	p.Status = to
	return nil
}
