package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"google.golang.org/api/option"

	"storeBack/internal/config"
	"storeBack/internal/iap"
	"storeBack/internal/repositories"
	"storeBack/utils"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}
	cfg := config.LoadConfig()

	addrDefault := cfg.Server.Address
	if port := os.Getenv("PORT"); port != "" {
		addrDefault = ":" + port
	}
	if addrDefault == "" {
		addrDefault = ":4001"
	}
	addr := flag.String("addr", addrDefault, "HTTP network address")
	flag.Parse()

	infoLog := log.New(os.Stdout, "INFO\t", log.Ldate|log.Ltime)
	errorLog := log.New(os.Stderr, "ERROR\t", log.Ldate|log.Ltime|log.Lshortfile)
	logger := appLogger{infoLog: infoLog, errorLog: errorLog}

	db, err := openDB(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		errorLog.Fatal(err)
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	iapCfg, err := iap.LoadConfig()
	if err != nil {
		errorLog.Fatal(err)
	}

	signingKey := os.Getenv("JWT_SIGNING_KEY")
	tokens, err := utils.NewManager(signingKey)
	if err != nil {
		errorLog.Fatal(err)
	}

	wsManager := NewWebSocketManager()
	go wsManager.Run()

	deviceRepo := repositories.NewDeviceRepository(db)
	receiptRepo := repositories.NewReceiptRepository(db)
	vault := newReceiptVault(receiptRepo, wsManager)

	bridge := iap.NewQueueBridge(logger)
	defer bridge.Close()

	deps := iap.Deps{
		DB:       db,
		RDB:      rdb,
		Logger:   logger,
		Config:   iapCfg,
		Queue:    bridge,
		Provider: iap.NewProductsClient(nil, iapCfg.CatalogURL),
		Receipts: vault,
		Busy:     &wsBusy{manager: wsManager},
	}
	if archive, err := utils.NewReceiptArchiveFromEnv(); err != nil {
		infoLog.Printf("receipt archiving disabled: %v", err)
	} else {
		deps.Archive = archive
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := iap.Bootstrap(ctx, deps)
	if err != nil {
		errorLog.Fatal(err)
	}
	store.Subscribe(&wsListener{manager: wsManager})

	fcmClient := newFCMClient(ctx, infoLog)

	app := initializeApp(store, bridge, wsManager, deviceRepo, receiptRepo, vault, tokens, fcmClient, signingKey, errorLog, infoLog)
	app.startSubscriptionRefresher(ctx, iapCfg.RefreshInterval)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: true,
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
	})

	srv := &http.Server{
		Addr:         *addr,
		ErrorLog:     errorLog,
		Handler:      addSecurityHeaders(c.Handler(app.routes())),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	infoLog.Printf("Starting server on %s", *addr)
	if err := srv.ListenAndServe(); err != nil {
		errorLog.Fatal(err)
	}
}

// newFCMClient builds the push client when FIREBASE_CREDENTIALS points at a
// service account file. Pushes are optional.
func newFCMClient(ctx context.Context, infoLog *log.Logger) *messaging.Client {
	credentials := os.Getenv("FIREBASE_CREDENTIALS")
	if credentials == "" {
		infoLog.Print("push notifications disabled: FIREBASE_CREDENTIALS is not set")
		return nil
	}
	fbApp, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentials))
	if err != nil {
		infoLog.Printf("push notifications disabled: %v", err)
		return nil
	}
	client, err := fbApp.Messaging(ctx)
	if err != nil {
		infoLog.Printf("push notifications disabled: %v", err)
		return nil
	}
	return client
}
