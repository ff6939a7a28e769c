package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAge(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 30, Age(time.Date(1996, 8, 26, 0, 0, 0, 0, time.UTC), now))
	// Birthday tomorrow: still the previous age.
	assert.Equal(t, 29, Age(time.Date(1996, 8, 27, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 0, Age(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), now))
}

func TestPassengerTypeValidateType(t *testing.T) {
	now := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	dob := func(age int) time.Time { return now.AddDate(-age, 0, -1) }

	cases := []struct {
		ptype PassengerType
		age   int
		ok    bool
	}{
		{PassengerAdult, 12, true},
		{PassengerAdult, 40, true},
		{PassengerAdult, 11, false},
		{PassengerChild, 2, true},
		{PassengerChild, 11, true},
		{PassengerChild, 1, false},
		{PassengerChild, 12, false},
		{PassengerInfant, 0, true},
		{PassengerInfant, 1, true},
		{PassengerInfant, 2, false},
	}

	for _, tc := range cases {
		err := tc.ptype.ValidateType(dob(tc.age), now)
		if tc.ok {
			assert.NoError(t, err, "%s age %d", tc.ptype, tc.age)
		} else {
			assert.Error(t, err, "%s age %d", tc.ptype, tc.age)
		}
	}

	assert.ErrorIs(t, PassengerType("SENIOR").ValidateType(dob(70), now), ErrUnknownPassengerType)
}
