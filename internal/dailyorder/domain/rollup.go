package domain

import (
	"fmt"
	"time"
)

// Rollup derives the order status from the multiset of meal statuses.
// Evaluated top-down, first match wins.
func Rollup(meals []MealSlot) OrderStatus {
	if len(meals) == 0 {
		return OrderPending
	}

	var delivered, delayed, dispatched, prepared, scheduled int
	for _, m := range meals {
		switch m.Status {
		case MealDelivered:
			delivered++
		case MealDelayed:
			delayed++
		case MealOutForDelivery:
			dispatched++
		case MealPrepared:
			prepared++
		case MealScheduled:
			scheduled++
		}
	}

	total := len(meals)
	switch {
	case delivered == total:
		return OrderDelivered
	case delayed == total:
		return OrderDelayed
	case delivered > 0 && delayed > 0:
		return OrderPartiallyDelivered
	case dispatched > 0:
		return OrderOutForDelivery
	case prepared > 0:
		return OrderPreparing
	case scheduled > 0:
		return OrderConfirmed
	default:
		return OrderPending
	}
}

// bulkStatusMap is the second derivation rule, used only when every meal of an
// order is pushed to one status in a single call. The two rules intentionally
// disagree for some inputs and both are kept.
var bulkStatusMap = map[MealStatus]OrderStatus{
	MealScheduled:                    OrderConfirmed,
	MealPreparing:                    OrderPreparing,
	MealPrepared:                     OrderPrepared,
	MealOutForDelivery:               OrderOutForDelivery,
	MealDelivered:                    OrderDelivered,
	MealDelayed:                      OrderDelayed,
	MealCancelled:                    OrderCancelled,
	MealStatus("partially_delivered"): OrderPartiallyDelivered,
	MealStatus("partially_refunded"):  OrderPartiallyRefunded,
}

// BulkRollup maps one incoming status token straight to an order status.
func BulkRollup(status MealStatus) OrderStatus {
	if s, ok := bulkStatusMap[status]; ok {
		return s
	}
	return OrderPending
}

// MealDelay is now minus the meal's expected delivery time, zero when the meal
// has no expectation or is not yet late.
func MealDelay(m MealSlot, now time.Time) time.Duration {
	if m.ExpectedDeliveryTime == nil {
		return 0
	}
	d := now.Sub(*m.ExpectedDeliveryTime)
	if d < 0 {
		return 0
	}
	return d
}

// MaxDelay is the order-level delay, the maximum per-meal delay. It is only
// recorded at the moment an order becomes fully delivered.
func MaxDelay(meals []MealSlot, now time.Time) time.Duration {
	var max time.Duration
	for _, m := range meals {
		if d := MealDelay(m, now); d > max {
			max = d
		}
	}
	return max
}

// FormatDelay renders a delay as hours, minutes and seconds with two decimal
// places of seconds.
func FormatDelay(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := d.Seconds() - float64(h*3600+m*60)
	return fmt.Sprintf("%dh %dm %.2fs", h, m, s)
}

// ValidTransition reports whether a meal status token is one we accept.
func ValidTransition(s MealStatus) bool {
	switch s {
	case MealScheduled, MealPreparing, MealPrepared, MealOutForDelivery, MealDelivered, MealDelayed, MealCancelled:
		return true
	}
	return false
}
