// Package pricing computes booking quotes. The calculation is pure: unit
// price times passenger count, plus a 10% tax and a flat service fee, minus
// any discount. All arithmetic is in kobo.
package pricing

import (
	"errors"
	"fmt"

	"github.com/tolusimi/naiabook/internal/domain"
)

const (
	MinPassengers = 1
	MaxPassengers = 9

	// TaxRatePercent is applied to the base fare, truncated to the kobo.
	TaxRatePercent = 10
)

// ServiceFee is the flat per-booking fee in naira.
var ServiceFee = domain.Naira(2000)

var ErrPassengerCount = fmt.Errorf("passenger count must be between %d and %d", MinPassengers, MaxPassengers)

var ErrNegativeDiscount = errors.New("discount must not be negative")

type Quote struct {
	SeatClass  domain.SeatClass `json:"seat_class"`
	Passengers int              `json:"passengers"`
	UnitPrice  domain.Money     `json:"unit_price"`
	Base       domain.Money     `json:"base_price"`
	Taxes      domain.Money     `json:"taxes"`
	Fees       domain.Money     `json:"fees"`
	Discount   domain.Money     `json:"discount"`
	Total      domain.Money     `json:"total"`
	Currency   string           `json:"currency"`
}

// QuoteFor prices a booking for the given flight, seat class and passenger
// count with no discount.
func QuoteFor(flight *domain.Flight, class domain.SeatClass, passengers int) (Quote, error) {
	unit, err := flight.UnitPrice(class)
	if err != nil {
		return Quote{}, err
	}
	return quote(class, unit, passengers, 0)
}

// QuoteWithDiscount prices a booking with an explicit discount applied after
// taxes and fees.
func QuoteWithDiscount(flight *domain.Flight, class domain.SeatClass, passengers int, discount domain.Money) (Quote, error) {
	unit, err := flight.UnitPrice(class)
	if err != nil {
		return Quote{}, err
	}
	return quote(class, unit, passengers, discount)
}

func quote(class domain.SeatClass, unit domain.Money, passengers int, discount domain.Money) (Quote, error) {
	if passengers < MinPassengers || passengers > MaxPassengers {
		return Quote{}, ErrPassengerCount
	}
	if discount < 0 {
		return Quote{}, ErrNegativeDiscount
	}

	base := unit.MulCount(passengers)
	taxes := base.Percent(TaxRatePercent)
	fees := ServiceFee

	return Quote{
		SeatClass:  class,
		Passengers: passengers,
		UnitPrice:  unit,
		Base:       base,
		Taxes:      taxes,
		Fees:       fees,
		Discount:   discount,
		Total:      base + taxes + fees - discount,
		Currency:   domain.DefaultCurrency,
	}, nil
}
