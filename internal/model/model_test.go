package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCard_ExpiredOn(t *testing.T) {
	card := &Card{ExpiryDate: date(2026, time.March, 10)}

	assert.False(t, card.ExpiredOn(date(2026, time.March, 9)))
	assert.False(t, card.ExpiredOn(time.Date(2026, time.March, 10, 23, 59, 0, 0, time.UTC)))
	assert.True(t, card.ExpiredOn(date(2026, time.March, 11)))
}

func TestDateOf_UsesUTCCalendar(t *testing.T) {
	west := time.FixedZone("UTC-5", -5*3600)
	east := time.FixedZone("UTC+9", 9*3600)

	assert.Equal(t, date(2025, time.March, 2), DateOf(time.Date(2025, time.March, 1, 22, 0, 0, 0, west)))
	assert.Equal(t, date(2025, time.February, 28), DateOf(time.Date(2025, time.March, 1, 3, 0, 0, 0, east)))
	assert.Equal(t, date(2025, time.March, 1), DateOf(time.Date(2025, time.March, 1, 23, 59, 59, 0, time.UTC)))
}

func TestFitsMoneyScale(t *testing.T) {
	tests := []struct {
		in   string
		fits bool
	}{
		{"0", true},
		{"100", true},
		{"0.01", true},
		{"250.50", true},
		{"-3.25", true},
		{"0.004", false},
		{"0.005", false},
		{"10.001", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.fits, FitsMoneyScale(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestPage_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		in       Page
		expected Page
	}{
		{name: "defaults", in: Page{}, expected: Page{Number: 0, Size: DefaultPageSize}},
		{name: "negative page", in: Page{Number: -3, Size: 5}, expected: Page{Number: 0, Size: 5}},
		{name: "oversized", in: Page{Number: 2, Size: 1000}, expected: Page{Number: 2, Size: MaxPageSize}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.in.Normalize())
		})
	}
	assert.Equal(t, 40, Page{Number: 2, Size: 20}.Offset())
}

func TestCardFilter_Matches(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()
	active := CardStatusActive
	blocked := CardStatusBlocked
	low := decimal.NewFromInt(100)
	high := decimal.NewFromInt(200)
	from := date(2027, time.January, 1)
	to := date(2027, time.December, 31)

	card := &Card{
		OwnerID:    owner,
		Status:     CardStatusActive,
		Balance:    decimal.NewFromInt(150),
		ExpiryDate: date(2027, time.June, 1),
		HolderName: "Ivan Petrov",
	}

	tests := []struct {
		name     string
		filter   CardFilter
		expected bool
	}{
		{name: "empty filter", filter: CardFilter{}, expected: true},
		{name: "owner match", filter: CardFilter{OwnerID: &owner}, expected: true},
		{name: "owner mismatch", filter: CardFilter{OwnerID: &other}, expected: false},
		{name: "status match", filter: CardFilter{Status: &active}, expected: true},
		{name: "status mismatch", filter: CardFilter{Status: &blocked}, expected: false},
		{name: "balance in range", filter: CardFilter{MinBalance: &low, MaxBalance: &high}, expected: true},
		{name: "balance below min", filter: CardFilter{MinBalance: &high}, expected: false},
		{name: "balance above max", filter: CardFilter{MaxBalance: &low}, expected: false},
		{name: "expiry in range", filter: CardFilter{ExpiryFrom: &from, ExpiryTo: &to}, expected: true},
		{name: "expiry before from", filter: CardFilter{ExpiryFrom: &to}, expected: false},
		{name: "holder case insensitive", filter: CardFilter{HolderName: "PETR"}, expected: true},
		{name: "holder mismatch", filter: CardFilter{HolderName: "sidorov"}, expected: false},
		{name: "conjunction fails on one field", filter: CardFilter{OwnerID: &owner, Status: &blocked}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.filter.Matches(card))
		})
	}
}
