package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/example/parkpass/internal/models"
)

// ErrServerTotalInvalid signals that the server-computed payable amount
// is zero or negative, which blocks checkout.
var ErrServerTotalInvalid = errors.New("server-computed total is zero or negative")

// CartSyncService makes the server-side cart exactly match the local
// cart before payment, then reads back the server-computed total. The
// server total supersedes any locally derived amount.
type CartSyncService struct {
	backend *Backend
}

// NewCartSyncService constructs a CartSyncService.
func NewCartSyncService(backend *Backend) *CartSyncService {
	return &CartSyncService{backend: backend}
}

// totalFieldCandidates is the ordered list of field names the upstream
// has been observed to use for the payable total. This tolerance lives
// only at this boundary; internally the value is always FinalTotal.
var totalFieldCandidates = []string{
	"final_total",
	"finalAmount",
	"final_amount",
	"total",
	"total_amount",
	"grand_total",
	"amount",
}

// Replace overwrites the server cart with the local items and returns
// the server-computed total. Ordering is strict: all deletions complete
// before any creation, and all creations before the total re-read.
// Individual deletion failures are swallowed (the re-population still
// yields a correct end state); creation failures abort, since an
// incomplete server cart would silently undercharge.
func (s *CartSyncService) Replace(ctx context.Context, token string, items []models.CartLineItem) (float64, error) {
	existing, err := s.fetchServerItemIDs(ctx, token)
	if err != nil {
		return 0, err
	}

	for _, id := range existing {
		_ = s.backend.DoJSON(ctx, RequestOpts{
			Method: http.MethodDelete,
			Path:   "cart/items/" + id,
			Token:  token,
		}, nil)
	}

	for _, item := range items {
		if err := s.backend.DoJSON(ctx, RequestOpts{
			Method: http.MethodPost,
			Path:   "cart/items",
			Body:   serverCartItemBody(item),
			Token:  token,
		}, nil); err != nil {
			return 0, fmt.Errorf("push cart item: %w", err)
		}
	}

	total, err := s.fetchServerTotal(ctx, token)
	if err != nil {
		return 0, err
	}
	if total <= 0 {
		return total, ErrServerTotalInvalid
	}
	return total, nil
}

func serverCartItemBody(item models.CartLineItem) map[string]any {
	addons := make([]map[string]any, 0, len(item.Addons))
	for _, a := range item.Addons {
		addons = append(addons, map[string]any{
			"addon_id": a.AddonID,
			"quantity": a.Quantity,
		})
	}

	body := map[string]any{
		"item_type":    string(item.Type),
		"booking_date": item.Date,
		"quantity":     item.Qty,
		"addons":       addons,
		"meta": map[string]any{
			"unit_price": item.UnitPrice,
			"client_id":  item.ID.String(),
		},
	}

	switch item.Type {
	case models.ItemTypeAttraction:
		body["attraction_id"] = item.Attraction.AttractionID
		body["slot_id"] = item.Attraction.SlotID
	case models.ItemTypeCombo:
		body["combo_id"] = item.Combo.ComboID
		body["combo_slot_id"] = item.Combo.ComboSlotID
	}
	return body
}

func (s *CartSyncService) fetchServerCart(ctx context.Context, token string) (map[string]json.RawMessage, error) {
	resp, err := s.backend.Do(ctx, RequestOpts{
		Method: http.MethodGet,
		Path:   "cart",
		Token:  token,
	})
	if err != nil {
		return nil, err
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return nil, parseBackendError(resp.Status, resp.Body)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &BackendError{
			Message: fmt.Sprintf("unmarshal server cart: %v", err),
			Status:  resp.Status,
			Code:    "BAD_RESPONSE",
		}
	}
	return payload, nil
}

func (s *CartSyncService) fetchServerItemIDs(ctx context.Context, token string) ([]string, error) {
	payload, err := s.fetchServerCart(ctx, token)
	if err != nil {
		return nil, err
	}
	return extractItemIDs(payload), nil
}

func (s *CartSyncService) fetchServerTotal(ctx context.Context, token string) (float64, error) {
	payload, err := s.fetchServerCart(ctx, token)
	if err != nil {
		return 0, err
	}

	total, ok := extractTotal(payload)
	if !ok {
		return 0, &BackendError{
			Message: "server cart response carries no recognizable total field",
			Status:  http.StatusOK,
			Code:    "BAD_RESPONSE",
		}
	}
	return total, nil
}

// extractTotal picks the first populated candidate total field,
// accommodating upstream naming drift. Nested "cart" and "data"
// envelopes are unwrapped first.
func extractTotal(payload map[string]json.RawMessage) (float64, bool) {
	payload = unwrapEnvelope(payload)
	for _, field := range totalFieldCandidates {
		raw, ok := payload[field]
		if !ok {
			continue
		}
		var n float64
		if json.Unmarshal(raw, &n) == nil {
			return n, true
		}
		var str string
		if json.Unmarshal(raw, &str) == nil && str != "" {
			if _, err := fmt.Sscanf(str, "%f", &n); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// extractItemIDs pulls server line-item IDs out of the cart payload.
func extractItemIDs(payload map[string]json.RawMessage) []string {
	payload = unwrapEnvelope(payload)

	var rawItems json.RawMessage
	for _, field := range []string{"items", "cart_items", "lines"} {
		if raw, ok := payload[field]; ok {
			rawItems = raw
			break
		}
	}
	if len(rawItems) == 0 {
		return nil
	}

	var items []map[string]json.RawMessage
	if err := json.Unmarshal(rawItems, &items); err != nil {
		return nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		for _, field := range []string{"id", "item_id", "_id"} {
			if raw, ok := item[field]; ok {
				if id := decodeLooseID(raw); id != "" {
					ids = append(ids, id)
					break
				}
			}
		}
	}
	return ids
}

func unwrapEnvelope(payload map[string]json.RawMessage) map[string]json.RawMessage {
	for _, field := range []string{"cart", "data"} {
		raw, ok := payload[field]
		if !ok {
			continue
		}
		var nested map[string]json.RawMessage
		if json.Unmarshal(raw, &nested) == nil && len(nested) > 0 {
			return nested
		}
	}
	return payload
}
