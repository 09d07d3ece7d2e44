package models

import "encoding/json"

// SubStatus tracks the lifecycle of one asynchronous sub-flow (otp,
// coupon, creating, payphi) so unrelated UI stays interactive.
type SubStatus string

const (
	StatusIdle      SubStatus = "idle"
	StatusLoading   SubStatus = "loading"
	StatusSucceeded SubStatus = "succeeded"
	StatusFailed    SubStatus = "failed"
)

// OtpIdentifier is the email/phone snapshot a send→verify round is
// bound to.
type OtpIdentifier struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// OtpState describes the guest identity gate sub-flow.
type OtpState struct {
	Status     SubStatus     `json:"status"`
	Sent       bool          `json:"sent"`
	Verified   bool          `json:"verified"`
	UserID     string        `json:"user_id,omitempty"`
	Identifier OtpIdentifier `json:"identifier"`
	Error      string        `json:"error,omitempty"`
}

// CouponState describes the applied promo code. Editing the code resets
// Discount and Data until the code is resolved again.
type CouponState struct {
	Code     string          `json:"code"`
	Discount float64         `json:"discount"`
	Data     json.RawMessage `json:"data,omitempty"`
	Status   SubStatus       `json:"status"`
	Error    string          `json:"error,omitempty"`
}

// Stage names the steps of the checkout flow.
type Stage string

const (
	StageCartBuilding      Stage = "cart_building"
	StageIdentityPending   Stage = "identity_pending"
	StageAddonsSelection   Stage = "addons_selection"
	StageReviewAndCoupon   Stage = "review_and_coupon"
	StageReconciling       Stage = "reconciling"
	StagePaymentInitiating Stage = "payment_initiating"
	StageExternalRedirect  Stage = "external_redirect"
)

// CheckoutStatus is the derived view of the two checkout sub-flows.
type CheckoutStatus struct {
	Creating SubStatus `json:"creating"`
	Payphi   SubStatus `json:"payphi"`
	Error    string    `json:"error,omitempty"`
}
