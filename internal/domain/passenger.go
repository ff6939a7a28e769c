package domain

import (
	"errors"
	"fmt"
	"time"
)

type Title string

const (
	TitleMr     Title = "MR"
	TitleMrs    Title = "MRS"
	TitleMs     Title = "MS"
	TitleDr     Title = "DR"
	TitleMaster Title = "MSTR"
	TitleMiss   Title = "MISS"
)

type PassengerType string

const (
	PassengerAdult  PassengerType = "ADULT"
	PassengerChild  PassengerType = "CHILD"
	PassengerInfant PassengerType = "INFANT"
)

type MealPreference string

const (
	MealRegular    MealPreference = "REGULAR"
	MealVegetarian MealPreference = "VEGETARIAN"
	MealVegan      MealPreference = "VEGAN"
	MealHalal      MealPreference = "HALAL"
	MealKosher     MealPreference = "KOSHER"
	MealGlutenFree MealPreference = "GLUTEN_FREE"
)

var ErrUnknownPassengerType = errors.New("unknown passenger type")

type Passenger struct {
	ID        int64 `json:"id"`
	BookingID int64 `json:"booking_id"`

	Title       Title         `json:"title"`
	FirstName   string        `json:"first_name"`
	LastName    string        `json:"last_name"`
	DateOfBirth time.Time     `json:"date_of_birth"`
	Type        PassengerType `json:"passenger_type"`

	PassportNumber  string     `json:"passport_number,omitempty"`
	PassportExpiry  *time.Time `json:"passport_expiry,omitempty"`
	PassportCountry string     `json:"passport_country,omitempty"`
	Nationality     string     `json:"nationality,omitempty"`

	SeatNumber string `json:"seat_number,omitempty"`

	CheckedIn   bool       `json:"checked_in"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	Boarded     bool       `json:"boarded"`
	BoardedAt   *time.Time `json:"boarded_at,omitempty"`

	MealPreference   MealPreference `json:"meal_preference"`
	CheckedBaggageKg int            `json:"checked_baggage_kg"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Passenger) FullName() string {
	return fmt.Sprintf("%s %s", p.FirstName, p.LastName)
}

// Age returns full years between dob and at.
func Age(dob, at time.Time) int {
	years := at.Year() - dob.Year()
	if at.Month() < dob.Month() || (at.Month() == dob.Month() && at.Day() < dob.Day()) {
		years--
	}
	return years
}

// ValidateType checks the passenger type against the date-of-birth-derived
// age bracket: ADULT >= 12, CHILD 2-11, INFANT < 2.
func (t PassengerType) ValidateType(dob, now time.Time) error {
	age := Age(dob, now)
	switch t {
	case PassengerAdult:
		if age < 12 {
			return fmt.Errorf("adult passenger must be at least 12 years old, got %d", age)
		}
	case PassengerChild:
		if age < 2 || age > 11 {
			return fmt.Errorf("child passenger must be between 2 and 11 years old, got %d", age)
		}
	case PassengerInfant:
		if age >= 2 {
			return fmt.Errorf("infant passenger must be under 2 years old, got %d", age)
		}
	default:
		return ErrUnknownPassengerType
	}
	return nil
}
