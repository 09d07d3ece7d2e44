package cart

import (
	"github.com/google/uuid"

	"github.com/example/parkpass/internal/models"
)

// ItemPatch carries the fields UpdateItem may change. Nil fields are
// left untouched (shallow merge).
type ItemPatch struct {
	Date      *string
	Qty       *int
	UnitPrice *float64
	// SlotID retargets the slot reference of whichever variant the item
	// is (slot for attractions, combo slot for combos); changing the
	// date usually forces a new slot.
	SlotID *string
}

// AddonInput is a requested add-on selection before clamping.
// MaxQuantity of 0 means the catalog addon declared no cap.
type AddonInput struct {
	AddonID     string
	Quantity    int
	Price       float64
	MaxQuantity int
}

// AddItem appends a line item to the cart. Duplicate product/date/slot
// combinations are allowed; each line is an independent purchase.
func (s *Session) AddItem(item models.CartLineItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	s.Items = append(s.Items, item)
	return nil
}

// UpdateItem shallow-merges patch fields into the matching item.
// Unknown IDs are a no-op.
func (s *Session) UpdateItem(id uuid.UUID, patch ItemPatch) {
	for i := range s.Items {
		if s.Items[i].ID != id {
			continue
		}
		item := &s.Items[i]
		if patch.Date != nil {
			item.Date = *patch.Date
		}
		if patch.Qty != nil && *patch.Qty > 0 {
			item.Qty = *patch.Qty
		}
		if patch.UnitPrice != nil && *patch.UnitPrice >= 0 {
			item.UnitPrice = *patch.UnitPrice
		}
		if patch.SlotID != nil {
			switch item.Type {
			case models.ItemTypeAttraction:
				item.Attraction.SlotID = *patch.SlotID
			case models.ItemTypeCombo:
				item.Combo.ComboSlotID = *patch.SlotID
			}
		}
		return
	}
}

// RemoveItem deletes the matching item, preserving the order of the
// survivors. Unknown IDs are a no-op.
func (s *Session) RemoveItem(id uuid.UUID) {
	for i := range s.Items {
		if s.Items[i].ID == id {
			s.Items = append(s.Items[:i], s.Items[i+1:]...)
			return
		}
	}
}

// ClearItems empties the cart unconditionally.
func (s *Session) ClearItems() {
	s.Items = nil
}

// SetItemAddons replaces the entire add-on list of the matching item.
// Quantities are clamped to [0, max] (default cap when the addon has
// none) and zero-quantity selections are dropped rather than stored.
func (s *Session) SetItemAddons(id uuid.UUID, addons []AddonInput) {
	for i := range s.Items {
		if s.Items[i].ID != id {
			continue
		}
		selections := make([]models.AddonSelection, 0, len(addons))
		for _, a := range addons {
			qty := ClampAddonQuantity(a.Quantity, a.MaxQuantity)
			if qty == 0 {
				continue
			}
			selections = append(selections, models.AddonSelection{
				AddonID:  a.AddonID,
				Quantity: qty,
				Price:    a.Price,
			})
		}
		s.Items[i].Addons = selections
		return
	}
}

// FindItem returns the item with the given ID, if present.
func (s *Session) FindItem(id uuid.UUID) (models.CartLineItem, bool) {
	for _, item := range s.Items {
		if item.ID == id {
			return item, true
		}
	}
	return models.CartLineItem{}, false
}

// ClampAddonQuantity clamps a requested quantity to [0, max]. Out of
// range requests are clamped, never rejected.
func ClampAddonQuantity(qty, max int) int {
	if max <= 0 {
		max = models.DefaultAddonMaxQuantity
	}
	if qty < 0 {
		return 0
	}
	if qty > max {
		return max
	}
	return qty
}

// SetCouponCode records an edit of the coupon code field. Any edit
// invalidates a previously applied discount until the code is resolved
// again.
func (s *Session) SetCouponCode(code string) {
	s.Coupon.Code = code
	s.Coupon.Discount = 0
	s.Coupon.Data = nil
	s.Coupon.Status = models.StatusIdle
	s.Coupon.Error = ""
}
