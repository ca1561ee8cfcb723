package types

import "testing"

func TestSide_Valid(t *testing.T) {
	if !SideBuy.Valid() || !SideSell.Valid() {
		t.Error("expected BUY and SELL to be valid sides")
	}
	if Side("HOLD").Valid() || Side("").Valid() {
		t.Error("expected values outside the closed set to be invalid")
	}
}

func TestSide_Opposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell {
		t.Errorf("expected SELL, got %s", SideBuy.Opposite())
	}
	if SideSell.Opposite() != SideBuy {
		t.Errorf("expected BUY, got %s", SideSell.Opposite())
	}
}

func TestOrderType_Valid(t *testing.T) {
	if !OrderTypeLimit.Valid() || !OrderTypeMarket.Valid() {
		t.Error("expected LIMIT and MARKET to be valid order types")
	}
	if OrderType("STOP").Valid() {
		t.Error("expected STOP to be invalid")
	}
}

func TestOrderStatus_OpenAndTerminal(t *testing.T) {
	cases := []struct {
		status       OrderStatus
		wantOpen     bool
		wantTerminal bool
	}{
		{OrderStatusNew, true, false},
		{OrderStatusPartiallyExecuted, true, false},
		{OrderStatusExecuted, false, true},
		{OrderStatusCancelled, false, true},
	}

	for _, tc := range cases {
		if got := tc.status.Open(); got != tc.wantOpen {
			t.Errorf("%s.Open(): expected %v, got %v", tc.status, tc.wantOpen, got)
		}
		if got := tc.status.Terminal(); got != tc.wantTerminal {
			t.Errorf("%s.Terminal(): expected %v, got %v", tc.status, tc.wantTerminal, got)
		}
	}
}
