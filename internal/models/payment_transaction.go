package models

import "github.com/google/uuid"

// Payment transaction lifecycle states.
const (
	TxnStatusInitiated  = "initiated"
	TxnStatusRedirected = "redirected"
	TxnStatusFailed     = "failed"
	TxnStatusPaid       = "paid"
)

// PaymentTransaction is the persisted audit record of a PayPhi
// initiation sequence. The post-redirect success page polls it by
// order reference until the gateway callback settles it.
type PaymentTransaction struct {
	BaseModel
	SessionID       uuid.UUID `gorm:"type:uuid;index" json:"session_id"`
	OrderRef        string    `gorm:"uniqueIndex" json:"order_ref"`
	Status          string    `json:"status"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	Email           string    `json:"email"`
	Mobile          string    `json:"mobile"`
	CouponCode      string    `json:"coupon_code"`
	Attempts        int       `json:"attempts"`
	ResponseCode    string    `json:"response_code"`
	ResponseMessage string    `json:"response_message"`
	TranCtx         string    `json:"tran_ctx"`
	RedirectURL     string    `json:"redirect_url"`
	ErrorMessage    string    `json:"error_message"`
}
