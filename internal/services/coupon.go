package services

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// CouponService resolves promo codes against the upstream backend. The
// resolved discount is advisory: the server-side total re-read during
// reconciliation stays authoritative.
type CouponService struct {
	backend *Backend
}

// NewCouponService constructs a CouponService.
func NewCouponService(backend *Backend) *CouponService {
	return &CouponService{backend: backend}
}

// CouponResult is a successful coupon resolution.
type CouponResult struct {
	Code     string
	Discount float64
	Coupon   json.RawMessage
}

type couponApplyResponse struct {
	Discount float64         `json:"discount"`
	Coupon   json.RawMessage `json:"coupon"`
}

// Apply posts the candidate code with the computed gross total and the
// booking date of the first cart item (coupons may be date-scoped).
func (s *CouponService) Apply(ctx context.Context, token, code string, totalAmount float64, onDate string) (CouponResult, error) {
	normalized := strings.TrimSpace(code)

	body := map[string]any{
		"code":         normalized,
		"total_amount": totalAmount,
	}
	if onDate != "" {
		body["onDate"] = onDate
	}

	var parsed couponApplyResponse
	if err := s.backend.DoJSON(ctx, RequestOpts{
		Method: http.MethodPost,
		Path:   "coupons/apply",
		Body:   body,
		Token:  token,
	}, &parsed); err != nil {
		return CouponResult{}, err
	}

	return CouponResult{
		Code:     normalized,
		Discount: parsed.Discount,
		Coupon:   parsed.Coupon,
	}, nil
}
