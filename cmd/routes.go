package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders, makeResponseJSON)
	authMiddleware := standardMiddleware.Append(app.deviceAuth)

	mux := pat.New()

	// Devices
	mux.Post("/api/devices/register", standardMiddleware.ThenFunc(app.deviceHandler.Register))
	mux.Post("/api/devices/login", standardMiddleware.ThenFunc(app.deviceHandler.Login))
	mux.Put("/api/devices/fcm_token", authMiddleware.ThenFunc(app.deviceHandler.UpdateFCMToken))

	// Catalog
	mux.Get("/api/products", authMiddleware.ThenFunc(app.catalogHandler.ListProducts))
	mux.Post("/api/products/refresh", authMiddleware.ThenFunc(app.catalogHandler.RefreshCatalog))

	// Purchase flow
	mux.Post("/api/purchase", authMiddleware.ThenFunc(app.purchaseHandler.Purchase))
	mux.Post("/api/restore", authMiddleware.ThenFunc(app.purchaseHandler.Restore))
	mux.Post("/api/transactions", authMiddleware.ThenFunc(app.transactionHandler.Report))
	mux.Post("/api/restore/complete", authMiddleware.ThenFunc(app.transactionHandler.RestoreComplete))

	// Receipts
	mux.Post("/api/receipts", authMiddleware.ThenFunc(app.receiptHandler.Upload))

	// Entitlements
	mux.Get("/api/entitlements", authMiddleware.ThenFunc(app.entitlementHandler.List))
	// The refresh route must precede the :product_id routes; pat matches in
	// registration order.
	mux.Post("/api/entitlements/refresh", authMiddleware.ThenFunc(app.entitlementHandler.RefreshSubscriptions))
	mux.Get("/api/entitlements/:product_id", authMiddleware.ThenFunc(app.entitlementHandler.Status))
	mux.Post("/api/entitlements/:product_id", authMiddleware.ThenFunc(app.entitlementHandler.Grant))
	mux.Del("/api/entitlements/:product_id", authMiddleware.ThenFunc(app.entitlementHandler.Revoke))

	// Store server callbacks. Apple and Google call these, not devices.
	mux.Post("/api/apple/notifications", standardMiddleware.ThenFunc(app.appleNotifications.Notifications))
	mux.Post("/api/apple/verify", authMiddleware.ThenFunc(app.appleNotifications.VerifyTransaction))
	mux.Post("/api/google/verify", authMiddleware.ThenFunc(app.googlePlayHandler.VerifyPurchase))

	// Event stream
	mux.Get("/ws", http.HandlerFunc(app.WebSocketHandler))

	return standardMiddleware.Then(mux)
}
