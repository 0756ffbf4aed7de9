package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"

	"firebase.google.com/go/messaging"

	"storeBack/internal/handlers"
	"storeBack/internal/iap"
	"storeBack/internal/repositories"
	"storeBack/internal/services"
	"storeBack/utils"
)

type application struct {
	errorLog   *log.Logger
	infoLog    *log.Logger
	signingKey string

	store  *iap.Store
	bridge *iap.QueueBridge

	wsManager *WebSocketManager

	deviceRepo  *repositories.DeviceRepository
	receiptRepo *repositories.ReceiptRepository

	catalogHandler     *handlers.CatalogHandler
	purchaseHandler    *handlers.PurchaseHandler
	entitlementHandler *handlers.EntitlementHandler
	transactionHandler *handlers.TransactionHandler
	receiptHandler     *handlers.ReceiptHandler
	deviceHandler      *handlers.DeviceHandler
	appleNotifications *handlers.AppleNotificationsHandler
	googlePlayHandler  *handlers.GooglePlayHandler
}

func initializeApp(
	store *iap.Store,
	bridge *iap.QueueBridge,
	wsManager *WebSocketManager,
	deviceRepo *repositories.DeviceRepository,
	receiptRepo *repositories.ReceiptRepository,
	vault *receiptVault,
	tokens *utils.Manager,
	fcmClient *messaging.Client,
	signingKey string,
	errorLog, infoLog *log.Logger,
) *application {
	logger := appLogger{infoLog: infoLog, errorLog: errorLog}

	receiptHandler := handlers.NewReceiptHandler(receiptRepo, store, logger)
	receiptHandler.Uploaded = vault.notifyUploaded

	appleService, err := services.NewAppleAPIService(services.AppleAPIConfig{
		IssuerID:    os.Getenv("APPLE_ISSUER_ID"),
		BundleID:    os.Getenv("APPLE_BUNDLE_ID"),
		KeyID:       os.Getenv("APPLE_KEY_ID"),
		PrivateKey:  os.Getenv("APPLE_PRIVATE_KEY"),
		Environment: os.Getenv("IAP_ENVIRONMENT"),
	})
	if err != nil {
		infoLog.Printf("apple notifications disabled: %v", err)
		appleService = nil
	}
	appleNotifications := handlers.NewAppleNotificationsHandler(appleService, store)

	var googlePlayHandler *handlers.GooglePlayHandler
	googleService, err := services.NewGooglePlayService(services.GooglePlayConfig{
		PackageName:        os.Getenv("GOOGLE_PLAY_PACKAGE_NAME"),
		ServiceAccountJSON: os.Getenv("GOOGLE_PLAY_SERVICE_ACCOUNT_JSON"),
	})
	if err != nil {
		infoLog.Printf("google play verification disabled: %v", err)
		googlePlayHandler = handlers.NewGooglePlayHandler(nil, store)
	} else {
		googlePlayHandler = handlers.NewGooglePlayHandler(googleService, store)
	}

	if fcmClient != nil {
		push := services.NewPushService(fcmClient, deviceRepo, logger)
		store.Subscribe(services.NewPushListener(push))
	}

	return &application{
		errorLog:           errorLog,
		infoLog:            infoLog,
		signingKey:         signingKey,
		store:              store,
		bridge:             bridge,
		wsManager:          wsManager,
		deviceRepo:         deviceRepo,
		receiptRepo:        receiptRepo,
		catalogHandler:     handlers.NewCatalogHandler(store),
		purchaseHandler:    handlers.NewPurchaseHandler(store),
		entitlementHandler: handlers.NewEntitlementHandler(store),
		transactionHandler: handlers.NewTransactionHandler(bridge),
		receiptHandler:     receiptHandler,
		deviceHandler:      handlers.NewDeviceHandler(deviceRepo, tokens),
		appleNotifications: appleNotifications,
		googlePlayHandler:  googlePlayHandler,
	}
}

func openDB(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(35)
	return db, nil
}

func addSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "deny")
		next.ServeHTTP(w, r)
	})
}

// appLogger adapts the two stdlib loggers to the iap.Logger interface.
type appLogger struct {
	infoLog  *log.Logger
	errorLog *log.Logger
}

func (l appLogger) Infof(format string, args ...interface{}) {
	l.infoLog.Printf(format, args...)
}

func (l appLogger) Errorf(format string, args ...interface{}) {
	l.errorLog.Printf(format, args...)
}
