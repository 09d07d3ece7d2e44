package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/parkpass/internal/cart"
	"github.com/example/parkpass/internal/middleware"
	"github.com/example/parkpass/internal/models"
)

// CartHandler manages the in-session booking cart.
type CartHandler struct{}

// NewCartHandler constructs a CartHandler.
func NewCartHandler() *CartHandler {
	return &CartHandler{}
}

type addItemRequest struct {
	ItemType     string  `json:"item_type"`
	AttractionID string  `json:"attraction_id"`
	SlotID       string  `json:"slot_id"`
	ComboID      string  `json:"combo_id"`
	ComboSlotID  string  `json:"combo_slot_id"`
	Date         string  `json:"date"`
	Qty          int     `json:"qty"`
	UnitPrice    float64 `json:"unit_price"`
}

// GetCart returns the cart items with totals recomputed on every read.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	session, ok := middleware.GetSession(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	session.Lock()
	defer session.Unlock()

	return c.JSON(fiber.Map{
		"items":  session.Items,
		"totals": session.Totals(),
		"coupon": session.Coupon,
		"stage":  session.Stage,
	})
}

// AddItem appends a new line item to the cart.
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	session, ok := middleware.GetSession(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req addItemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var (
		item models.CartLineItem
		err  error
	)
	switch models.ItemType(req.ItemType) {
	case models.ItemTypeAttraction:
		item, err = models.NewAttractionItem(req.AttractionID, req.SlotID, req.Date, req.Qty, req.UnitPrice)
	case models.ItemTypeCombo:
		item, err = models.NewComboItem(req.ComboID, req.ComboSlotID, req.Date, req.Qty, req.UnitPrice)
	default:
		return fiber.NewError(fiber.StatusBadRequest, "item_type must be attraction or combo")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	session.Lock()
	defer session.Unlock()

	if err := session.AddItem(item); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"item":   item,
		"totals": session.Totals(),
	})
}

type updateItemRequest struct {
	Date      *string  `json:"date"`
	Qty       *int     `json:"qty"`
	UnitPrice *float64 `json:"unit_price"`
	SlotID    *string  `json:"slot_id"`
}

// UpdateItem shallow-merges the patch into the matching item.
func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	session, ok := middleware.GetSession(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid item id")
	}

	var req updateItemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	session.Lock()
	defer session.Unlock()

	session.UpdateItem(id, cart.ItemPatch{
		Date:      req.Date,
		Qty:       req.Qty,
		UnitPrice: req.UnitPrice,
		SlotID:    req.SlotID,
	})

	return c.JSON(fiber.Map{
		"items":  session.Items,
		"totals": session.Totals(),
	})
}

// RemoveItem deletes the matching item; unknown IDs are a no-op.
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	session, ok := middleware.GetSession(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid item id")
	}

	session.Lock()
	defer session.Unlock()

	session.RemoveItem(id)

	return c.JSON(fiber.Map{
		"items":  session.Items,
		"totals": session.Totals(),
	})
}

// Clear empties the cart unconditionally.
func (h *CartHandler) Clear(c *fiber.Ctx) error {
	session, ok := middleware.GetSession(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	session.Lock()
	defer session.Unlock()

	session.ClearItems()

	return c.JSON(fiber.Map{
		"items":  session.Items,
		"totals": session.Totals(),
	})
}

type setAddonsRequest struct {
	Addons []struct {
		AddonID     string  `json:"addon_id"`
		Quantity    int     `json:"quantity"`
		Price       float64 `json:"price"`
		MaxQuantity int     `json:"max_quantity"`
	} `json:"addons"`
}

// SetAddons replaces the whole add-on list for an item. Callers send
// the full desired list; zero-quantity entries are dropped and
// quantities clamped to the addon cap.
func (h *CartHandler) SetAddons(c *fiber.Ctx) error {
	session, ok := middleware.GetSession(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid item id")
	}

	var req setAddonsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	inputs := make([]cart.AddonInput, 0, len(req.Addons))
	for _, a := range req.Addons {
		inputs = append(inputs, cart.AddonInput{
			AddonID:     a.AddonID,
			Quantity:    a.Quantity,
			Price:       a.Price,
			MaxQuantity: a.MaxQuantity,
		})
	}

	session.Lock()
	defer session.Unlock()

	session.SetItemAddons(id, inputs)

	item, found := session.FindItem(id)
	if !found {
		return fiber.NewError(fiber.StatusNotFound, "cart item not found")
	}

	return c.JSON(fiber.Map{
		"item":   item,
		"totals": session.Totals(),
	})
}
