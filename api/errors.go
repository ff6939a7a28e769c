package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/tolusimi/naiabook/internal/checkout"
	"github.com/tolusimi/naiabook/internal/domain"
	"github.com/tolusimi/naiabook/internal/gateway/paystack"
	"github.com/tolusimi/naiabook/internal/pricing"
	"github.com/tolusimi/naiabook/internal/repository"
	"github.com/tolusimi/naiabook/internal/service/booking"
	"github.com/tolusimi/naiabook/internal/service/payments"
)

// respondError maps service errors onto HTTP status codes. Errors that don't
// match a known class are internal faults and surface as 500.
func respondError(c *gin.Context, err error) {
	var invalid validator.ValidationErrors

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, checkout.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrInsufficientInventory),
		errors.Is(err, checkout.ErrNotEnoughSeats),
		errors.Is(err, checkout.ErrFlightNotBookable),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInvalidPaymentTransition),
		errors.Is(err, booking.ErrNotCancellable),
		errors.Is(err, payments.ErrAlreadyPaid),
		errors.Is(err, payments.ErrBookingNotOpen),
		errors.Is(err, payments.ErrNotRefundable):
		status = http.StatusConflict
	case errors.Is(err, checkout.ErrStepOrder),
		errors.Is(err, checkout.ErrTermsNotAgreed),
		errors.Is(err, payments.ErrRefundTooLarge):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, paystack.ErrInvalidSignature):
		status = http.StatusUnauthorized
	case errors.Is(err, paystack.ErrGateway),
		errors.Is(err, domain.ErrReferenceExhausted):
		status = http.StatusBadGateway
	case errors.As(err, &invalid),
		errors.Is(err, checkout.ErrPassengerMismatch),
		errors.Is(err, checkout.ErrPassportRequired),
		errors.Is(err, checkout.ErrUnknownPayMethod),
		errors.Is(err, booking.ErrLastNameNeeded),
		errors.Is(err, domain.ErrInvalidReference),
		errors.Is(err, domain.ErrUnknownPassengerType),
		errors.Is(err, domain.ErrUnknownSeatClass),
		errors.Is(err, pricing.ErrPassengerCount),
		errors.Is(err, pricing.ErrNegativeDiscount):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
