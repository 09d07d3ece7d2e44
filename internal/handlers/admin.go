package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/parkpass/internal/checkout"
	"github.com/example/parkpass/internal/config"
	"github.com/example/parkpass/internal/utils"
)

// AdminHandler serves the back-office surface: ops login and the
// payment transactions listing.
type AdminHandler struct {
	cfg  *config.Config
	txns checkout.TransactionLog
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(cfg *config.Config, txns checkout.TransactionLog) *AdminHandler {
	return &AdminHandler{cfg: cfg, txns: txns}
}

type adminLoginRequest struct {
	Password string `json:"password"`
}

// Login checks the ops password and mints a scoped token.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	if h.cfg.OpsPasswordHash == "" {
		return fiber.NewError(fiber.StatusServiceUnavailable, "ops access is not configured")
	}

	var req adminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if !utils.CheckPassword(h.cfg.OpsPasswordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, uuid.New(), utils.ScopeOps, h.cfg.SessionTTL)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   token,
	})
}

// ListTransactions returns the payment audit trail, newest first.
func (h *AdminHandler) ListTransactions(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)

	txns, total, err := h.txns.List(c.UserContext(), p.Limit, p.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"transactions": txns,
		"total":        total,
		"page":         p.Page,
		"limit":        p.Limit,
	})
}
