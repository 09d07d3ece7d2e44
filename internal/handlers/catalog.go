package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/parkpass/internal/services"
)

// CatalogHandler proxies the read-only catalog surface (attractions,
// combos, slots, addons) to the upstream backend. The cart-building UI
// consumes these directly; request cancellation propagates so changing
// a date aborts the in-flight slot fetch for the old one.
type CatalogHandler struct {
	backend *services.Backend
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(backend *services.Backend) *CatalogHandler {
	return &CatalogHandler{backend: backend}
}

// Proxy forwards a catalog GET to the upstream backend verbatim.
func (h *CatalogHandler) Proxy(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodGet {
		return fiber.NewError(fiber.StatusMethodNotAllowed, "catalog endpoints are read-only")
	}

	path := strings.TrimPrefix(c.Path(), "/api/")

	query := make(map[string]string)
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		query[string(key)] = string(value)
	})

	resp, err := h.backend.Do(c.UserContext(), services.RequestOpts{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	})
	if err != nil {
		return mapFlowError(err)
	}

	c.Set(fiber.HeaderContentType, resp.Header.Get(fiber.HeaderContentType))
	return c.Status(resp.Status).Send(resp.Body)
}
