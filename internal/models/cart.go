package models

import (
	"errors"

	"github.com/google/uuid"
)

// ItemType distinguishes the two purchasable product kinds.
type ItemType string

const (
	ItemTypeAttraction ItemType = "attraction"
	ItemTypeCombo      ItemType = "combo"
)

// DefaultAddonMaxQuantity caps addon quantities when the catalog addon
// does not declare its own limit.
const DefaultAddonMaxQuantity = 10

var (
	ErrItemTypeMismatch = errors.New("line item product reference does not match its type")
	ErrInvalidQuantity  = errors.New("quantity must be a positive integer")
	ErrNegativePrice    = errors.New("unit price must not be negative")
	ErrMissingDate      = errors.New("booking date is required")
)

// AttractionRef identifies a single-attraction purchase: the attraction
// and the chosen time slot.
type AttractionRef struct {
	AttractionID string `json:"attraction_id"`
	SlotID       string `json:"slot_id"`
}

// ComboRef identifies a two-attraction bundle purchase and its combo slot.
type ComboRef struct {
	ComboID     string `json:"combo_id"`
	ComboSlotID string `json:"combo_slot_id"`
}

// AddonSelection is one add-on line attached to a cart item. Price is a
// snapshot of the catalog unit price at selection time.
type AddonSelection struct {
	AddonID  string  `json:"addon_id"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// CartLineItem is one entry in the booking cart. Exactly one of
// Attraction or Combo is populated, matching Type; the constructors in
// this package are the only intended way to build one.
type CartLineItem struct {
	ID         uuid.UUID        `json:"id"`
	Type       ItemType         `json:"item_type"`
	Attraction *AttractionRef   `json:"attraction,omitempty"`
	Combo      *ComboRef        `json:"combo,omitempty"`
	Date       string           `json:"date"` // YYYY-MM-DD
	Qty        int              `json:"qty"`
	UnitPrice  float64          `json:"unit_price"`
	Addons     []AddonSelection `json:"addons"`
}

// NewAttractionItem builds a cart line item for a single attraction ticket.
func NewAttractionItem(attractionID, slotID, date string, qty int, unitPrice float64) (CartLineItem, error) {
	item := CartLineItem{
		ID:         uuid.New(),
		Type:       ItemTypeAttraction,
		Attraction: &AttractionRef{AttractionID: attractionID, SlotID: slotID},
		Date:       date,
		Qty:        qty,
		UnitPrice:  unitPrice,
	}
	return item, item.Validate()
}

// NewComboItem builds a cart line item for a two-attraction combo ticket.
func NewComboItem(comboID, comboSlotID, date string, qty int, unitPrice float64) (CartLineItem, error) {
	item := CartLineItem{
		ID:        uuid.New(),
		Type:      ItemTypeCombo,
		Combo:     &ComboRef{ComboID: comboID, ComboSlotID: comboSlotID},
		Date:      date,
		Qty:       qty,
		UnitPrice: unitPrice,
	}
	return item, item.Validate()
}

// Validate enforces the tagged-variant invariant and basic field sanity.
func (i CartLineItem) Validate() error {
	switch i.Type {
	case ItemTypeAttraction:
		if i.Attraction == nil || i.Combo != nil {
			return ErrItemTypeMismatch
		}
	case ItemTypeCombo:
		if i.Combo == nil || i.Attraction != nil {
			return ErrItemTypeMismatch
		}
	default:
		return ErrItemTypeMismatch
	}

	if i.Qty <= 0 {
		return ErrInvalidQuantity
	}
	if i.UnitPrice < 0 {
		return ErrNegativePrice
	}
	if i.Date == "" {
		return ErrMissingDate
	}
	return nil
}

// ContactInfo carries the guest contact fields required for OTP send
// and payment initiation.
type ContactInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}
