package types

import "testing"

func TestOrder_Remaining(t *testing.T) {
	order := Order{Quantity: 10, FilledQuantity: 4}
	if got := order.Remaining(); got != 6 {
		t.Errorf("expected 6 remaining, got %d", got)
	}

	order.FilledQuantity = 10
	if got := order.Remaining(); got != 0 {
		t.Errorf("expected 0 remaining when fully filled, got %d", got)
	}
}
