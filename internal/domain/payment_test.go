package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentRefundable(t *testing.T) {
	p := &Payment{Status: PaymentStatusCompleted, Amount: Naira(40500)}
	assert.True(t, p.IsRefundable())
	assert.Equal(t, Naira(40500), p.RefundableAmount())

	p.Status = PaymentStatusPartiallyRefunded
	p.RefundAmount = Naira(10000)
	assert.True(t, p.IsRefundable())
	assert.Equal(t, Naira(30500), p.RefundableAmount())

	p.RefundAmount = p.Amount
	assert.False(t, p.IsRefundable())

	assert.False(t, (&Payment{Status: PaymentStatusPending}).IsRefundable())
	assert.False(t, (&Payment{Status: PaymentStatusFailed}).IsRefundable())
}

func TestPaymentTransitions(t *testing.T) {
	p := &Payment{Status: PaymentStatusPending}
	assert.NoError(t, p.Transition(PaymentStatusProcessing))
	assert.NoError(t, p.Transition(PaymentStatusCompleted))
	assert.ErrorIs(t, p.Transition(PaymentStatusProcessing), ErrInvalidPaymentTransition)
	assert.NoError(t, p.Transition(PaymentStatusPartiallyRefunded))
	assert.NoError(t, p.Transition(PaymentStatusRefunded))
	assert.ErrorIs(t, p.Transition(PaymentStatusCompleted), ErrInvalidPaymentTransition)
}
