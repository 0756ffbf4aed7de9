package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"storeBack/internal/iap"
	"storeBack/internal/models"
)

const (
	readLimit     = 1 << 20
	readDeadline  = 120 * time.Second
	writeDeadline = 5 * time.Second
	pingInterval  = 15 * time.Second
)

type wsClient struct {
	conn *websocket.Conn
}

// WebSocketManager pushes store lifecycle events to connected clients. All
// operations on clients happen in Run.
type WebSocketManager struct {
	clients    map[*websocket.Conn]struct{}
	broadcast  chan models.StoreEvent
	register   chan wsClient
	unregister chan *websocket.Conn
}

func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*websocket.Conn]struct{}),
		broadcast:  make(chan models.StoreEvent, 16),
		register:   make(chan wsClient),
		unregister: make(chan *websocket.Conn),
	}
}

func (ws *WebSocketManager) Run() {
	for {
		select {
		case client := <-ws.register:
			ws.clients[client.conn] = struct{}{}
			log.Printf("WS register, clients=%d", len(ws.clients))

		case conn := <-ws.unregister:
			if _, ok := ws.clients[conn]; ok {
				_ = conn.Close()
				delete(ws.clients, conn)
				log.Printf("WS unregister, clients=%d", len(ws.clients))
			}

		case event := <-ws.broadcast:
			for conn := range ws.clients {
				_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := conn.WriteJSON(event); err != nil {
					log.Printf("WS broadcast error: %v", err)
					_ = conn.Close()
					delete(ws.clients, conn)
				}
			}
		}
	}
}

// Broadcast queues an event for delivery. Drops the event when the buffer is
// full so a stalled consumer never blocks the engine.
func (ws *WebSocketManager) Broadcast(event models.StoreEvent) {
	event.At = time.Now().UTC()
	select {
	case ws.broadcast <- event:
	default:
		log.Printf("WS broadcast buffer full, dropping %s", event.Event)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	ReadBufferSize:    1024,
	WriteBufferSize:   1024,
	EnableCompression: true,
}

func (app *application) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("WebSocket upgrade error:", err)
		return
	}
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	app.wsManager.register <- wsClient{conn: conn}

	go app.pingLoop(conn)
	go app.readLoop(conn)
}

func (app *application) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for range ticker.C {
		_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			app.wsManager.unregister <- conn
			return
		}
	}
}

// readLoop drains client frames so pongs are processed; the stream is
// server-to-client only.
func (app *application) readLoop(conn *websocket.Conn) {
	defer func() {
		app.wsManager.unregister <- conn
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// wsListener mirrors the purchase lifecycle onto the websocket stream.
type wsListener struct {
	manager *WebSocketManager
}

var _ iap.Listener = (*wsListener)(nil)

func (l *wsListener) WillPurchase(item models.Item) {
	l.manager.Broadcast(models.StoreEvent{Event: "will_purchase", ProductID: item.ProductID})
}

func (l *wsListener) DidPurchase(item models.Item) {
	l.manager.Broadcast(models.StoreEvent{Event: "did_purchase", ProductID: item.ProductID})
}

func (l *wsListener) DidRestore(item models.Item) {
	l.manager.Broadcast(models.StoreEvent{Event: "did_restore", ProductID: item.ProductID})
}

func (l *wsListener) DidRestoreUnlisted(productID string) {
	l.manager.Broadcast(models.StoreEvent{Event: "did_restore_unlisted", ProductID: productID})
}

func (l *wsListener) CatalogUpdated(items []models.Item) {
	l.manager.Broadcast(models.StoreEvent{Event: "catalog_updated", Items: items})
}

func (l *wsListener) CatalogError(err error) {
	l.manager.Broadcast(models.StoreEvent{Event: "catalog_error", Error: err.Error()})
}

func (l *wsListener) PurchaseError(err error) {
	l.manager.Broadcast(models.StoreEvent{Event: "purchase_error", Error: err.Error()})
}

func (l *wsListener) RestoreError(err error) {
	l.manager.Broadcast(models.StoreEvent{Event: "restore_error", Error: err.Error()})
}

func (l *wsListener) PurchaseCanceled(err error) {
	l.manager.Broadcast(models.StoreEvent{Event: "purchase_canceled", Error: err.Error()})
}

// wsBusy mirrors the busy signal onto the websocket stream so clients can
// show a spinner while a purchase or restore is in flight.
type wsBusy struct {
	manager *WebSocketManager
}

func (b *wsBusy) Begin() {
	busy := true
	b.manager.Broadcast(models.StoreEvent{Event: "busy", Busy: &busy})
}

func (b *wsBusy) End() {
	busy := false
	b.manager.Broadcast(models.StoreEvent{Event: "busy", Busy: &busy})
}
