package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func slots(statuses ...MealStatus) []MealSlot {
	meals := make([]MealSlot, len(statuses))
	for i, s := range statuses {
		meals[i] = MealSlot{Status: s}
	}
	return meals
}

func TestRollupPrecedence(t *testing.T) {
	cases := []struct {
		name  string
		meals []MealSlot
		want  OrderStatus
	}{
		{"all delivered", slots(MealDelivered, MealDelivered, MealDelivered), OrderDelivered},
		{"all delayed", slots(MealDelayed, MealDelayed), OrderDelayed},
		{"delivered and delayed", slots(MealDelivered, MealDelivered, MealDelayed), OrderPartiallyDelivered},
		{"any dispatched", slots(MealOutForDelivery, MealPrepared, MealScheduled), OrderOutForDelivery},
		{"any prepared", slots(MealPrepared, MealScheduled), OrderPreparing},
		{"all scheduled", slots(MealScheduled, MealScheduled), OrderConfirmed},
		{"all cancelled", slots(MealCancelled, MealCancelled), OrderPending},
		{"no meals", nil, OrderPending},
		{"delivered outranks dispatched when total", slots(MealDelivered), OrderDelivered},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Rollup(tc.meals))
		})
	}
}

func TestBulkRollupLookup(t *testing.T) {
	assert.Equal(t, OrderConfirmed, BulkRollup(MealScheduled))
	assert.Equal(t, OrderPrepared, BulkRollup(MealPrepared))
	assert.Equal(t, OrderOutForDelivery, BulkRollup(MealOutForDelivery))
	assert.Equal(t, OrderDelivered, BulkRollup(MealDelivered))
	assert.Equal(t, OrderCancelled, BulkRollup(MealCancelled))
	assert.Equal(t, OrderPending, BulkRollup(MealStatus("garbage")))
}

// The two derivation rules intentionally disagree: a uniform prepared order
// is "preparing" by precedence but "prepared" by the bulk table.
func TestRulesDivergeOnPrepared(t *testing.T) {
	meals := slots(MealPrepared, MealPrepared)
	assert.Equal(t, OrderPreparing, Rollup(meals))
	assert.Equal(t, OrderPrepared, BulkRollup(MealPrepared))
}

func TestDelayComputation(t *testing.T) {
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	expected := now.Add(-90*time.Minute - 30*time.Second)
	later := now.Add(time.Hour)

	meals := []MealSlot{
		{Status: MealDelivered, ExpectedDeliveryTime: &expected},
		{Status: MealDelivered, ExpectedDeliveryTime: &later},
		{Status: MealDelivered},
	}

	assert.Equal(t, 90*time.Minute+30*time.Second, MaxDelay(meals, now))
	assert.Equal(t, time.Duration(0), MealDelay(meals[1], now))
	assert.Equal(t, "1h 30m 30.00s", FormatDelay(90*time.Minute+30*time.Second))
}
