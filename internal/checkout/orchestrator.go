package checkout

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/parkpass/internal/cart"
	"github.com/example/parkpass/internal/models"
	"github.com/example/parkpass/internal/services"
	"github.com/example/parkpass/internal/utils"
)

// ValidationError is a pre-network failure surfaced inline to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Orchestrator drives the staged checkout flow:
//
//	CartBuilding → IdentityPending (skipped when a token exists) →
//	AddonsSelection → ReviewAndCoupon → Reconciling →
//	PaymentInitiating → ExternalRedirect
//
// A failed step leaves the flow at that step for user retry; earlier
// steps are never rolled back. All methods expect the session lock to
// be held by the caller.
type Orchestrator struct {
	otp      *services.OtpService
	coupons  *services.CouponService
	cartSync *services.CartSyncService
	payphi   *services.PayphiService
	txns     TransactionLog
	currency string
}

// New constructs an Orchestrator.
func New(otp *services.OtpService, coupons *services.CouponService, cartSync *services.CartSyncService, payphi *services.PayphiService, txns TransactionLog, currency string) *Orchestrator {
	if currency == "" {
		currency = "INR"
	}
	return &Orchestrator{
		otp:      otp,
		coupons:  coupons,
		cartSync: cartSync,
		payphi:   payphi,
		txns:     txns,
		currency: currency,
	}
}

// SendOtp dispatches an OTP for the session's contact identifiers and
// records the send-state on the session.
func (o *Orchestrator) SendOtp(ctx context.Context, s *cart.Session) error {
	if s.Authenticated() {
		// Identity step is skipped entirely for authenticated sessions.
		s.Otp.Status = models.StatusSucceeded
		s.Otp.Verified = true
		return nil
	}

	s.Otp.Status = models.StatusLoading
	s.Otp.Error = ""

	result, err := o.otp.Send(ctx, services.SendOtpInput{
		Name:  s.Contact.Name,
		Email: s.Contact.Email,
		Phone: s.Contact.Phone,
	})
	if err != nil {
		s.Otp.Status = models.StatusFailed
		s.Otp.Error = err.Error()
		return err
	}

	s.Otp.Status = models.StatusSucceeded
	s.Otp.Sent = true
	s.Otp.UserID = result.UserID
	s.Otp.Identifier = models.OtpIdentifier{
		Email: s.Contact.Email,
		Phone: result.Phone,
	}
	s.Stage = models.StageIdentityPending
	return nil
}

// VerifyOtp exchanges the submitted code for an upstream session. A
// verification failure does not clear the sent flag; the user may
// retry. On success the upstream credentials are installed and the flow
// advances past the identity gate.
func (o *Orchestrator) VerifyOtp(ctx context.Context, s *cart.Session, code string) error {
	if s.Authenticated() {
		s.Otp.Verified = true
		s.Stage = models.StageAddonsSelection
		return nil
	}

	s.Otp.Status = models.StatusLoading
	s.Otp.Error = ""

	result, err := o.otp.Verify(ctx, services.VerifyOtpInput{
		UserID: s.Otp.UserID,
		Email:  s.Otp.Identifier.Email,
		Phone:  s.Otp.Identifier.Phone,
		Otp:    code,
	})
	if err != nil {
		s.Otp.Status = models.StatusFailed
		s.Otp.Error = err.Error()
		return err
	}

	s.Otp.Status = models.StatusSucceeded
	s.Otp.Verified = true
	s.SetCredentials(result.Token, result.User)
	s.Stage = models.StageAddonsSelection
	return nil
}

// ApplyCoupon resolves a promo code against the current gross total.
// The resolved discount is advisory; reconciliation re-derives the
// authoritative amount server-side.
func (o *Orchestrator) ApplyCoupon(ctx context.Context, s *cart.Session, code string) error {
	if len(s.Items) == 0 {
		return &ValidationError{Message: "cart is empty"}
	}

	s.SetCouponCode(code)
	s.Coupon.Status = models.StatusLoading

	totals := cart.ComputeTotals(s.Items, 0)
	result, err := o.coupons.Apply(ctx, s.Token, code, totals.GrossTotal, s.Items[0].Date)
	if err != nil {
		s.Coupon.Status = models.StatusFailed
		s.Coupon.Discount = 0
		s.Coupon.Data = nil
		s.Coupon.Error = err.Error()
		o.invalidateOnAuthFailure(s, err, "coupons/apply")
		return err
	}

	s.Coupon.Status = models.StatusSucceeded
	s.Coupon.Code = result.Code
	s.Coupon.Discount = result.Discount
	s.Coupon.Data = result.Coupon
	s.Stage = models.StageReviewAndCoupon
	return nil
}

// InitiateResult is the outcome of a successful checkout initiation.
type InitiateResult struct {
	RedirectURL string
	OrderRef    string
	ServerTotal float64
}

// Initiate runs reconciliation and payment initiation. Validation
// failures are caught before any network call. The server-computed
// total supersedes the local one for the payment amount.
func (o *Orchestrator) Initiate(ctx context.Context, s *cart.Session) (InitiateResult, error) {
	if err := o.validateForCheckout(s); err != nil {
		return InitiateResult{}, err
	}

	s.Stage = models.StageReconciling
	serverTotal, err := o.cartSync.Replace(ctx, s.Token, s.Items)
	if err != nil {
		o.invalidateOnAuthFailure(s, err, "cart")
		if errors.Is(err, services.ErrServerTotalInvalid) {
			return InitiateResult{}, &ValidationError{Message: "payable amount must be greater than zero"}
		}
		return InitiateResult{}, err
	}

	s.Stage = models.StagePaymentInitiating
	orderRef := generateOrderRef()
	mobile := utils.TenDigitMobile(s.Contact.Phone)

	txn := &models.PaymentTransaction{
		SessionID:  s.ID,
		OrderRef:   orderRef,
		Status:     models.TxnStatusInitiated,
		Amount:     serverTotal,
		Currency:   o.currency,
		Email:      s.Contact.Email,
		Mobile:     mobile,
		CouponCode: s.Coupon.Code,
	}
	if err := o.txns.Create(ctx, txn); err != nil {
		return InitiateResult{}, err
	}

	result, initErr := o.payphi.Initiate(ctx, s.Token, services.InitiateInput{
		Email:      s.Contact.Email,
		Mobile:     mobile,
		Amount:     serverTotal,
		Currency:   o.currency,
		Name:       s.Contact.Name,
		CouponCode: s.Coupon.Code,
	})

	txn.Attempts = result.Attempts
	txn.ResponseCode = result.ResponseCode
	txn.ResponseMessage = result.ResponseMessage
	txn.TranCtx = result.TranCtx

	if initErr != nil {
		txn.Status = models.TxnStatusFailed
		txn.ErrorMessage = initErr.Error()
		if err := o.txns.Update(ctx, txn); err != nil {
			log.Printf("payment transaction update failed for %s: %v", orderRef, err)
		}
		return InitiateResult{}, initErr
	}

	txn.Status = models.TxnStatusRedirected
	txn.RedirectURL = result.RedirectURL
	if err := o.txns.Update(ctx, txn); err != nil {
		log.Printf("payment transaction update failed for %s: %v", orderRef, err)
	}

	s.Stage = models.StageExternalRedirect
	return InitiateResult{
		RedirectURL: result.RedirectURL,
		OrderRef:    orderRef,
		ServerTotal: serverTotal,
	}, nil
}

// Status looks up the audit record the success page polls.
func (o *Orchestrator) Status(ctx context.Context, orderRef string) (*models.PaymentTransaction, error) {
	return o.txns.FindByOrderRef(ctx, orderRef)
}

// Settle applies the gateway callback outcome to the audit record.
func (o *Orchestrator) Settle(ctx context.Context, orderRef, responseCode, responseMessage string) (*models.PaymentTransaction, error) {
	txn, err := o.txns.FindByOrderRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}

	if responseCode == services.PayphiCodeSuccess {
		txn.Status = models.TxnStatusPaid
	} else {
		txn.Status = models.TxnStatusFailed
		txn.ErrorMessage = fmt.Sprintf("%s [%s]", responseMessage, responseCode)
	}
	txn.ResponseCode = responseCode
	if responseMessage != "" {
		txn.ResponseMessage = responseMessage
	}

	if err := o.txns.Update(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (o *Orchestrator) validateForCheckout(s *cart.Session) error {
	if len(s.Items) == 0 {
		return &ValidationError{Message: "cart is empty"}
	}
	if !s.Authenticated() {
		return &ValidationError{Message: "verification required before payment"}
	}
	if s.Contact.Email == "" {
		return &ValidationError{Message: "contact email is required"}
	}
	if utils.TenDigitMobile(s.Contact.Phone) == "" {
		return &ValidationError{Message: "a valid 10-digit mobile number is required"}
	}

	totals := s.Totals()
	if totals.FinalTotal <= 0 {
		return &ValidationError{Message: "payable amount must be greater than zero"}
	}
	return nil
}

// invalidateOnAuthFailure implements the central 401 interception: an
// upstream 401 clears the session's token unless the failing call was
// itself an auth endpoint.
func (o *Orchestrator) invalidateOnAuthFailure(s *cart.Session, err error, path string) {
	if services.IsAuthRequired(err) && !services.IsAuthEndpoint(path) {
		s.SetCredentials("", nil)
		s.Otp = models.OtpState{Status: models.StatusIdle}
		s.Stage = models.StageIdentityPending
	}
}

func generateOrderRef() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("PP-%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("PP-%d-%s", time.Now().Unix(), hex.EncodeToString(buf))
}
