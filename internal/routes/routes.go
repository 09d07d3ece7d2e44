package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/parkpass/internal/cart"
	"github.com/example/parkpass/internal/checkout"
	"github.com/example/parkpass/internal/config"
	"github.com/example/parkpass/internal/handlers"
	"github.com/example/parkpass/internal/middleware"
	"github.com/example/parkpass/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	backend := services.NewBackend(cfg.BackendBaseURL, cfg.BackendTimeout)
	registry := cart.NewRegistry(cfg.SessionTTL)
	txnLog := checkout.NewGormTransactionLog(db)

	orch := checkout.New(
		services.NewOtpService(backend),
		services.NewCouponService(backend),
		services.NewCartSyncService(backend),
		services.NewPayphiService(backend, cfg.RetryCountryCode),
		txnLog,
		cfg.PaymentCurrency,
	)

	cartHandler := handlers.NewCartHandler()
	checkoutHandler := handlers.NewCheckoutHandler(cfg, registry, orch)
	catalogHandler := handlers.NewCatalogHandler(backend)
	adminHandler := handlers.NewAdminHandler(cfg, txnLog)

	api := app.Group("/api")

	// Session mint and gateway callback stay outside the session gate.
	api.Post("/checkout/session", checkoutHandler.CreateSession)
	api.Post("/checkout/payphi/callback", checkoutHandler.Callback)
	api.Get("/checkout/status/:orderRef", checkoutHandler.Status)

	// Read-only catalog proxy consumed while building the cart.
	for _, prefix := range []string{"/attractions", "/combos", "/slots", "/combo-slots", "/addons"} {
		api.Get(prefix, catalogHandler.Proxy)
		api.Get(prefix+"/*", catalogHandler.Proxy)
	}

	// Everything below requires a live checkout session.
	session := api.Group("", middleware.SessionMiddleware(cfg, registry))

	session.Get("/cart", cartHandler.GetCart)
	session.Post("/cart/items", cartHandler.AddItem)
	session.Patch("/cart/items/:id", cartHandler.UpdateItem)
	session.Delete("/cart/items/:id", cartHandler.RemoveItem)
	session.Delete("/cart", cartHandler.Clear)
	session.Put("/cart/items/:id/addons", cartHandler.SetAddons)

	session.Put("/checkout/contact", checkoutHandler.SetContact)
	session.Post("/checkout/otp/send", checkoutHandler.SendOtp)
	session.Post("/checkout/otp/verify", checkoutHandler.VerifyOtp)
	session.Post("/checkout/coupon", checkoutHandler.ApplyCoupon)
	session.Delete("/checkout/coupon", checkoutHandler.ClearCoupon)
	session.Post("/checkout/initiate", checkoutHandler.Initiate)
	session.Post("/checkout/reset", checkoutHandler.Reset)

	// Back-office surface.
	api.Post("/admin/login", adminHandler.Login)
	ops := api.Group("/admin", middleware.OpsMiddleware(cfg))
	ops.Get("/transactions", adminHandler.ListTransactions)
}
