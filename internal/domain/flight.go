package domain

import (
	"errors"
	"time"
)

type FlightStatus string

const (
	FlightStatusScheduled   FlightStatus = "SCHEDULED"
	FlightStatusCheckInOpen FlightStatus = "CHECK_IN_OPEN"
	FlightStatusBoarding    FlightStatus = "BOARDING"
	FlightStatusGateClosed  FlightStatus = "GATE_CLOSED"
	FlightStatusDeparted    FlightStatus = "DEPARTED"
	FlightStatusInFlight    FlightStatus = "IN_FLIGHT"
	FlightStatusLanded      FlightStatus = "LANDED"
	FlightStatusArrived     FlightStatus = "ARRIVED"
	FlightStatusDelayed     FlightStatus = "DELAYED"
	FlightStatusCancelled   FlightStatus = "CANCELLED"
	FlightStatusDiverted    FlightStatus = "DIVERTED"
)

// BookableStatuses are the flight statuses in which new bookings are accepted.
var BookableStatuses = []FlightStatus{
	FlightStatusScheduled,
	FlightStatusCheckInOpen,
	FlightStatusDelayed,
}

type SeatClass string

const (
	SeatClassEconomy  SeatClass = "ECONOMY"
	SeatClassBusiness SeatClass = "BUSINESS"
	SeatClassFirst    SeatClass = "FIRST"
)

func (c SeatClass) Valid() bool {
	switch c {
	case SeatClassEconomy, SeatClassBusiness, SeatClassFirst:
		return true
	}
	return false
}

var ErrUnknownSeatClass = errors.New("unknown seat class")

type Flight struct {
	ID               int64        `json:"id"`
	Number           string       `json:"number"`
	Origin           string       `json:"origin"`
	Destination      string       `json:"destination"`
	DepartureTime    time.Time    `json:"departure_time"`
	ArrivalTime      time.Time    `json:"arrival_time"`
	Status           FlightStatus `json:"status"`
	EconomyPrice     Money        `json:"economy_price"`
	BusinessPrice    Money        `json:"business_price"`
	FirstPrice       Money        `json:"first_price"`
	EconomySeats     int          `json:"economy_seats"`
	BusinessSeats    int          `json:"business_seats"`
	FirstSeats       int          `json:"first_seats"`
	EconomyCapacity  int          `json:"economy_capacity"`
	BusinessCapacity int          `json:"business_capacity"`
	FirstCapacity    int          `json:"first_capacity"`
	International    bool         `json:"international"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func (f *Flight) UnitPrice(class SeatClass) (Money, error) {
	switch class {
	case SeatClassEconomy:
		return f.EconomyPrice, nil
	case SeatClassBusiness:
		return f.BusinessPrice, nil
	case SeatClassFirst:
		return f.FirstPrice, nil
	}
	return 0, ErrUnknownSeatClass
}

func (f *Flight) AvailableSeats(class SeatClass) int {
	switch class {
	case SeatClassEconomy:
		return f.EconomySeats
	case SeatClassBusiness:
		return f.BusinessSeats
	case SeatClassFirst:
		return f.FirstSeats
	}
	return 0
}

func (f *Flight) Capacity(class SeatClass) int {
	switch class {
	case SeatClassEconomy:
		return f.EconomyCapacity
	case SeatClassBusiness:
		return f.BusinessCapacity
	case SeatClassFirst:
		return f.FirstCapacity
	}
	return 0
}

func (f *Flight) TotalAvailableSeats() int {
	return f.EconomySeats + f.BusinessSeats + f.FirstSeats
}

// IsBookable reports whether the flight accepts new bookings: status is in
// the bookable set, departure is still in the future and seats remain.
func (f *Flight) IsBookable(now time.Time) bool {
	bookable := false
	for _, s := range BookableStatuses {
		if f.Status == s {
			bookable = true
			break
		}
	}
	if !bookable {
		return false
	}
	if !f.DepartureTime.After(now) {
		return false
	}
	return f.TotalAvailableSeats() > 0
}
