package model

import "testing"

func TestOnLoan(t *testing.T) {
	tests := []struct {
		status RequestStatus
		ret    ReturnStatus
		want   bool
	}{
		{StatusPending, ReturnNone, false},
		{StatusRejected, ReturnNone, false},
		{StatusApproved, ReturnNone, true},
		{StatusApproved, ReturnPending, true},
		{StatusApproved, ReturnDone, false},
	}

	for _, tt := range tests {
		r := &MaterialRequest{Status: tt.status, ReturnStatus: tt.ret}
		if got := r.OnLoan(); got != tt.want {
			t.Errorf("OnLoan(%q, %q) = %v, want %v", tt.status, tt.ret, got, tt.want)
		}
	}
}

func TestEffectiveReturnType(t *testing.T) {
	r := &MaterialRequest{}
	if r.EffectiveReturnType() != ReturnSelfDeclaration {
		t.Errorf("expected self_declaration default, got %q", r.EffectiveReturnType())
	}
	r.ReturnType = ReturnAdminCheck
	if r.EffectiveReturnType() != ReturnAdminCheck {
		t.Errorf("expected admin_check, got %q", r.EffectiveReturnType())
	}
}

func TestLowStockAndCategories(t *testing.T) {
	item := &InventoryItem{Quantity: 2, MinQuantity: 2}
	if !item.LowStock() {
		t.Error("expected low stock at minimum")
	}
	item.Quantity = 3
	if item.LowStock() {
		t.Error("expected stock above minimum")
	}

	if !ValidCategory("Sensors") {
		t.Error("Sensors should be a valid category")
	}
	if ValidCategory("Snacks") {
		t.Error("Snacks should not be a valid category")
	}
}
