package email

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tolusimi/naiabook/internal/domain"
)

// Sender is the notification sink for booking lifecycle events consumed
// from the notifications topic. It writes to stdout; a real SMTP or
// transactional-mail provider slots in behind the same method.
type Sender struct {
	out io.Writer
}

func NewSender() *Sender {
	return &Sender{out: os.Stdout}
}

func (s *Sender) Send(ctx context.Context, event domain.BookingEvent) error {
	if event.Email == "" {
		return nil
	}
	switch event.Type {
	case domain.EventBookingConfirmed:
		fmt.Fprintf(s.out, "email %s: booking %s confirmed, total %s %s\n",
			event.Email, event.Reference, event.Total, domain.DefaultCurrency)
	case domain.EventBookingCancelled:
		fmt.Fprintf(s.out, "email %s: booking %s cancelled\n", event.Email, event.Reference)
	case domain.EventBookingExpired:
		fmt.Fprintf(s.out, "email %s: booking %s expired before payment, seats released\n",
			event.Email, event.Reference)
	case domain.EventBookingRefunded:
		fmt.Fprintf(s.out, "email %s: booking %s refunded, total %s %s\n",
			event.Email, event.Reference, event.Total, domain.DefaultCurrency)
	default:
		fmt.Fprintf(s.out, "email %s: booking %s update (%s)\n", event.Email, event.Reference, event.Type)
	}
	return nil
}
