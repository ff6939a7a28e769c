package email

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tolusimi/naiabook/internal/domain"
)

func TestSend_RefundedEvent(t *testing.T) {
	var buf bytes.Buffer
	s := &Sender{out: &buf}

	err := s.Send(context.Background(), domain.BookingEvent{
		Type:      domain.EventBookingRefunded,
		Reference: "ABC234",
		Email:     "tolu@example.com",
		Total:     domain.Naira(40500),
	})
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "ABC234 refunded")
	assert.NotContains(t, buf.String(), "cancelled")
}

func TestSend_SkipsEmptyEmail(t *testing.T) {
	var buf bytes.Buffer
	s := &Sender{out: &buf}

	err := s.Send(context.Background(), domain.BookingEvent{
		Type:      domain.EventBookingConfirmed,
		Reference: "ABC234",
	})
	assert.NoError(t, err)
	assert.Empty(t, buf.String())
}
