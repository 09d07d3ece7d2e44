package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/parkpass/internal/cart"
	"github.com/example/parkpass/internal/checkout"
	"github.com/example/parkpass/internal/config"
	"github.com/example/parkpass/internal/middleware"
	"github.com/example/parkpass/internal/models"
	"github.com/example/parkpass/internal/utils"
)

// CheckoutHandler exposes the staged checkout flow.
type CheckoutHandler struct {
	cfg      *config.Config
	registry *cart.Registry
	orch     *checkout.Orchestrator
}

// NewCheckoutHandler constructs a CheckoutHandler.
func NewCheckoutHandler(cfg *config.Config, registry *cart.Registry, orch *checkout.Orchestrator) *CheckoutHandler {
	return &CheckoutHandler{cfg: cfg, registry: registry, orch: orch}
}

// CreateSession mints a new checkout session and its bearer token.
func (h *CheckoutHandler) CreateSession(c *fiber.Ctx) error {
	session := h.registry.Create()

	token, err := utils.GenerateToken(h.cfg.JWTSecret, session.ID, utils.ScopeCheckout, h.cfg.SessionTTL)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": session.ID,
		"token":      token,
	})
}

type contactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// SetContact stores the guest contact fields used for OTP send and
// payment initiation.
func (h *CheckoutHandler) SetContact(c *fiber.Ctx) error {
	session, ok := middleware.GetSession(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req contactRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	session.Lock()
	defer session.Unlock()

	session.Contact = models.ContactInfo{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	}

	return c.JSON(fiber.Map{"contact": session.Contact})
}

// SendOtp dispatches an OTP to the session contact. Skipped entirely
// when the session already carries an upstream token.
func (h *CheckoutHandler) SendOtp(c *fiber.Ctx) error {
	session, ok := middleware.GetSession(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	session.Lock()
	defer session.Unlock()

	if err := h.orch.SendOtp(c.UserContext(), session); err != nil {
		return mapFlowError(err)
	}

	return c.JSON(fiber.Map{"otp": session.Otp})
}

type verifyOtpRequest struct {
	Otp string `json:"otp"`
}

// VerifyOtp exchanges the submitted code for an upstream session.
func (h *CheckoutHandler) VerifyOtp(c *fiber.Ctx) error {
	session, ok := middleware.GetSession(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req verifyOtpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	session.Lock()
	defer session.Unlock()

	if err := h.orch.VerifyOtp(c.UserContext(), session, req.Otp); err != nil {
		return mapFlowError(err)
	}

	return c.JSON(fiber.Map{
		"otp":  session.Otp,
		"user": session.User,
	})
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

// ApplyCoupon resolves a promo code against the current gross total.
func (h *CheckoutHandler) ApplyCoupon(c *fiber.Ctx) error {
	session, ok := middleware.GetSession(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req applyCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	session.Lock()
	defer session.Unlock()

	if err := h.orch.ApplyCoupon(c.UserContext(), session, req.Code); err != nil {
		return mapFlowError(err)
	}

	return c.JSON(fiber.Map{
		"coupon": session.Coupon,
		"totals": session.Totals(),
	})
}

// ClearCoupon resets the coupon code edit state: any edit invalidates
// the previously applied discount until re-application.
func (h *CheckoutHandler) ClearCoupon(c *fiber.Ctx) error {
	session, ok := middleware.GetSession(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	session.Lock()
	defer session.Unlock()

	session.SetCouponCode("")

	return c.JSON(fiber.Map{
		"coupon": session.Coupon,
		"totals": session.Totals(),
	})
}

// Initiate reconciles the server cart and starts the payment flow,
// returning the gateway redirect URL on success.
func (h *CheckoutHandler) Initiate(c *fiber.Ctx) error {
	session, ok := middleware.GetSession(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	session.Lock()
	defer session.Unlock()

	result, err := h.orch.Initiate(c.UserContext(), session)
	if err != nil {
		return mapFlowError(err)
	}

	return c.JSON(fiber.Map{
		"redirect_url": result.RedirectURL,
		"order_ref":    result.OrderRef,
		"amount":       result.ServerTotal,
	})
}

// Reset discards all flow state but keeps the session alive.
func (h *CheckoutHandler) Reset(c *fiber.Ctx) error {
	session, ok := middleware.GetSession(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	session.Lock()
	defer session.Unlock()

	session.Reset()

	return c.JSON(fiber.Map{"stage": session.Stage})
}

// Status is polled by the success page after the gateway redirects back.
func (h *CheckoutHandler) Status(c *fiber.Ctx) error {
	orderRef := c.Params("orderRef")
	if orderRef == "" {
		return fiber.NewError(fiber.StatusBadRequest, "order reference is required")
	}

	txn, err := h.orch.Status(c.UserContext(), orderRef)
	if err != nil {
		return mapFlowError(err)
	}

	return c.JSON(fiber.Map{
		"order_ref": txn.OrderRef,
		"status":    txn.Status,
		"amount":    txn.Amount,
		"currency":  txn.Currency,
	})
}

type callbackRequest struct {
	OrderRef        string `json:"order_ref"`
	MerchantTxnNo   string `json:"merchantTxnNo"`
	ResponseCode    string `json:"responseCode"`
	ResponseMessage string `json:"respDescription"`
}

// Callback is the gateway's server-to-server return hook; it settles
// the audit record the success page polls.
func (h *CheckoutHandler) Callback(c *fiber.Ctx) error {
	var req callbackRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	orderRef := req.OrderRef
	if orderRef == "" {
		orderRef = req.MerchantTxnNo
	}
	if orderRef == "" {
		return fiber.NewError(fiber.StatusBadRequest, "order reference is required")
	}

	txn, err := h.orch.Settle(c.UserContext(), orderRef, req.ResponseCode, req.ResponseMessage)
	if err != nil {
		return mapFlowError(err)
	}

	// A settled order retires its cart; the session may already be gone.
	if txn.Status == models.TxnStatusPaid {
		if session, ok := h.registry.Get(txn.SessionID); ok {
			session.Lock()
			session.ClearItems()
			session.Unlock()
		}
	}

	return c.JSON(fiber.Map{
		"order_ref": txn.OrderRef,
		"status":    txn.Status,
	})
}
