package cart

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/example/parkpass/internal/models"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewRegistry(time.Hour).Create()
}

func mustAttractionItem(t *testing.T, attractionID, slotID, date string, qty int, price float64) models.CartLineItem {
	t.Helper()
	item, err := models.NewAttractionItem(attractionID, slotID, date, qty, price)
	if err != nil {
		t.Fatalf("unexpected error building item: %v", err)
	}
	return item
}

func TestAddRemoveClearPreservesOrder(t *testing.T) {
	s := newTestSession(t)

	a := mustAttractionItem(t, "attr-1", "slot-1", "2026-10-01", 1, 100)
	b := mustAttractionItem(t, "attr-2", "slot-2", "2026-10-01", 2, 200)
	c, err := models.NewComboItem("combo-1", "cslot-1", "2026-10-02", 1, 350)
	if err != nil {
		t.Fatalf("unexpected error building combo item: %v", err)
	}

	for _, item := range []models.CartLineItem{a, b, c} {
		if err := s.AddItem(item); err != nil {
			t.Fatalf("AddItem failed: %v", err)
		}
	}

	if len(s.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(s.Items))
	}

	s.RemoveItem(b.ID)

	if len(s.Items) != 2 {
		t.Fatalf("expected 2 items after removal, got %d", len(s.Items))
	}
	if s.Items[0].ID != a.ID || s.Items[1].ID != c.ID {
		t.Error("survivors not in insertion order")
	}

	// Removing an unknown ID is a no-op.
	s.RemoveItem(uuid.New())
	if len(s.Items) != 2 {
		t.Errorf("remove of unknown id mutated cart: %d items", len(s.Items))
	}

	s.ClearItems()
	if len(s.Items) != 0 {
		t.Errorf("expected empty cart after clear, got %d items", len(s.Items))
	}
}

func TestDuplicateSlotItemsAllowed(t *testing.T) {
	s := newTestSession(t)

	a := mustAttractionItem(t, "attr-1", "slot-1", "2026-10-01", 1, 100)
	b := mustAttractionItem(t, "attr-1", "slot-1", "2026-10-01", 1, 100)

	if err := s.AddItem(a); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if err := s.AddItem(b); err != nil {
		t.Fatalf("AddItem of duplicate slot failed: %v", err)
	}

	if len(s.Items) != 2 {
		t.Fatalf("expected duplicate slot lines to coexist, got %d items", len(s.Items))
	}
	if s.Items[0].ID == s.Items[1].ID {
		t.Error("duplicate lines must get independent ids")
	}
}

func TestUpdateItemShallowMerge(t *testing.T) {
	s := newTestSession(t)
	item := mustAttractionItem(t, "attr-1", "slot-1", "2026-10-01", 1, 100)
	if err := s.AddItem(item); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	date := "2026-10-05"
	qty := 3
	slot := "slot-9"
	s.UpdateItem(item.ID, ItemPatch{Date: &date, Qty: &qty, SlotID: &slot})

	got, ok := s.FindItem(item.ID)
	if !ok {
		t.Fatal("item vanished after update")
	}
	if got.Date != date || got.Qty != qty {
		t.Errorf("patch not applied: date=%s qty=%d", got.Date, got.Qty)
	}
	if got.Attraction.SlotID != slot {
		t.Errorf("slot not retargeted: %s", got.Attraction.SlotID)
	}
	if got.UnitPrice != 100 {
		t.Errorf("unpatched field changed: unitPrice=%v", got.UnitPrice)
	}

	// Unknown IDs are a no-op.
	s.UpdateItem(uuid.New(), ItemPatch{Qty: &qty})
	if len(s.Items) != 1 {
		t.Errorf("update of unknown id mutated cart: %d items", len(s.Items))
	}
}

func TestSetItemAddonsClampsAndDropsZero(t *testing.T) {
	s := newTestSession(t)
	item := mustAttractionItem(t, "attr-1", "slot-1", "2026-10-01", 1, 100)
	if err := s.AddItem(item); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	s.SetItemAddons(item.ID, []AddonInput{
		{AddonID: "locker", Quantity: 25, Price: 50, MaxQuantity: 4},
		{AddonID: "meal", Quantity: -2, Price: 120},
		{AddonID: "photo", Quantity: 2, Price: 80},
		{AddonID: "cap", Quantity: 15, Price: 30}, // no declared cap → default 10
	})

	got, _ := s.FindItem(item.ID)
	if len(got.Addons) != 3 {
		t.Fatalf("expected zero-quantity selection dropped, got %d addons", len(got.Addons))
	}
	if got.Addons[0].AddonID != "locker" || got.Addons[0].Quantity != 4 {
		t.Errorf("quantity not clamped to declared cap: %+v", got.Addons[0])
	}
	if got.Addons[2].AddonID != "cap" || got.Addons[2].Quantity != models.DefaultAddonMaxQuantity {
		t.Errorf("quantity not clamped to default cap: %+v", got.Addons[2])
	}

	// Replacement is wholesale, not a merge.
	s.SetItemAddons(item.ID, []AddonInput{{AddonID: "meal", Quantity: 1, Price: 120}})
	got, _ = s.FindItem(item.ID)
	if len(got.Addons) != 1 || got.Addons[0].AddonID != "meal" {
		t.Errorf("addon list not replaced wholesale: %+v", got.Addons)
	}
}

func TestClampAddonQuantity(t *testing.T) {
	cases := []struct {
		name string
		qty  int
		max  int
		want int
	}{
		{"below zero", -3, 5, 0},
		{"within range", 3, 5, 3},
		{"above max", 9, 5, 5},
		{"default cap", 99, 0, models.DefaultAddonMaxQuantity},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClampAddonQuantity(tc.qty, tc.max); got != tc.want {
				t.Errorf("ClampAddonQuantity(%d, %d) = %d, want %d", tc.qty, tc.max, got, tc.want)
			}
		})
	}
}

func TestSetCouponCodeResetsDiscount(t *testing.T) {
	s := newTestSession(t)
	s.Coupon = models.CouponState{
		Code:     "SUMMER",
		Discount: 200,
		Data:     []byte(`{"id":"c1"}`),
		Status:   models.StatusSucceeded,
	}

	s.SetCouponCode("SUMMER2")

	if s.Coupon.Discount != 0 {
		t.Errorf("discount not reset on code edit: %v", s.Coupon.Discount)
	}
	if s.Coupon.Data != nil {
		t.Error("coupon metadata not cleared on code edit")
	}
	if s.Coupon.Code != "SUMMER2" {
		t.Errorf("code not recorded: %s", s.Coupon.Code)
	}
}

func TestTaggedVariantInvariant(t *testing.T) {
	if _, err := models.NewAttractionItem("attr-1", "slot-1", "", 1, 10); err == nil {
		t.Error("expected missing date to be rejected")
	}
	if _, err := models.NewAttractionItem("attr-1", "slot-1", "2026-10-01", 0, 10); err == nil {
		t.Error("expected zero quantity to be rejected")
	}
	if _, err := models.NewComboItem("combo-1", "cslot-1", "2026-10-01", 1, -5); err == nil {
		t.Error("expected negative price to be rejected")
	}

	crossed := models.CartLineItem{
		Type:       models.ItemTypeAttraction,
		Combo:      &models.ComboRef{ComboID: "combo-1", ComboSlotID: "cslot-1"},
		Attraction: &models.AttractionRef{AttractionID: "attr-1", SlotID: "slot-1"},
		Date:       "2026-10-01",
		Qty:        1,
	}
	if err := crossed.Validate(); err == nil {
		t.Error("expected both variants populated to be rejected")
	}
}

func TestRegistryExpiry(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)
	s := r.Create()

	if _, ok := r.Get(s.ID); !ok {
		t.Fatal("fresh session not found")
	}

	s.Lock()
	s.LastSeen = time.Now().Add(-time.Minute)
	s.Unlock()

	if _, ok := r.Get(s.ID); ok {
		t.Error("expired session still returned")
	}
	if r.Len() != 0 {
		t.Errorf("expired session not removed, registry len=%d", r.Len())
	}
}
