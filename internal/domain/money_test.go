package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in   string
		want Money
		ok   bool
	}{
		{"35000", Naira(35000), true},
		{"35000.00", Naira(35000), true},
		{"0.5", MoneyFromKobo(50), true},
		{"2000.05", MoneyFromKobo(200005), true},
		{"-150.25", MoneyFromKobo(-15025), true},
		{"1.234", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}

	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if !tc.ok {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "35000.00", Naira(35000).String())
	assert.Equal(t, "0.05", MoneyFromKobo(5).String())
	assert.Equal(t, "-150.25", MoneyFromKobo(-15025).String())
}

func TestMoneyPercentTruncates(t *testing.T) {
	// 10% of 105 kobo is 10.5 kobo; fractional kobo are dropped.
	assert.Equal(t, MoneyFromKobo(10), MoneyFromKobo(105).Percent(10))
	assert.Equal(t, Naira(3500), Naira(35000).Percent(10))
}

func TestMoneyJSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(Naira(40500))
	require.NoError(t, err)
	assert.Equal(t, `"40500.00"`, string(raw))

	var m Money
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, Naira(40500), m)
}
