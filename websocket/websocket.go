package websocket

import (
	"context"
	"log"
	"net/http"
	"time"

	"batepapo/backend/models"
	"batepapo/backend/utils"

	"github.com/gorilla/websocket"
)

const (
	// 將訊息寫入到遠端對等點的最長時間
	writeWait = 10 * time.Second

	// 允許從遠端對等點讀取下一個 pong 訊息的最長時間。
	pongWait = 60 * time.Second

	// 發送 ping 訊息給遠端對等點的週期。
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// upgrader 用於將 HTTP 連線升級為 WebSocket 連線
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 設定true:允許所有來源的連線
		return true
	},
}

// Client 代表一個訂閱即時訊息的 WebSocket 客戶端
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan models.Message // 用於發送訊息的緩衝通道
	Name string              // 參與者名稱，決定這條連線看得到哪些訊息
}

// readPump 等待客戶端關閉連線。訊息一律走 HTTP 發送，
// 這條連線上收到的內容直接忽略。
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Println("Client disconnected gracefully.")
			} else {
				log.Printf("Error reading message: %v", err)
			}
			break
		}
	}
}

// writePump 接收 Hub 廣播來的訊息，丟給前端
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 如果這個 channel 被關閉了（ok == false），就送出 CloseMessage
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				log.Printf("Error writing message to %s: %v", c.Name, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub 負責管理所有客戶端和訊息流
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan models.Message
	register   chan *Client
	unregister chan *Client
}

// NewHub 創建並返回一個新的 Hub 實例
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan models.Message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Publish 把一則新儲存的訊息交給 Hub 分發
func (h *Hub) Publish(message models.Message) {
	select {
	case h.broadcast <- message:
	default:
		// Hub 塞滿時丟棄，即時推送是盡力而為，訊息本身已經落庫
		log.Println("Hub broadcast channel is full, dropping live update.")
	}
}

// Run 啟動 Hub 的運行迴圈，直到 ctx 被取消
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			log.Printf("Client %s connected. Total clients: %d", client.Name, len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("Client %s disconnected. Total clients: %d", client.Name, len(h.clients))
			}
		case message := <-h.broadcast:
			// 只推送給看得到這則訊息的客戶端
			for client := range h.clients {
				if !message.VisibleTo(client.Name) {
					continue
				}
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
					log.Printf("Client channel is full, unregistered client %s", client.Name)
				}
			}
		}
	}
}

// ActiveChecker 在升級連線前確認請求者是在線參與者
type ActiveChecker interface {
	IsActive(ctx context.Context, name string) (bool, error)
}

// HandleConnections 處理 WebSocket 連線請求。
// 參與者名稱從 user 查詢參數取得，解碼方式與 HTTP 標頭相同。
func HandleConnections(hub *Hub, registry ActiveChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawName := r.URL.Query().Get("user")
		if rawName == "" {
			http.Error(w, "User is required for WebSocket connection", http.StatusUnprocessableEntity)
			return
		}
		name := utils.DecodeLatin1(rawName)

		active, err := registry.IsActive(r.Context(), name)
		if err != nil {
			log.Printf("Error checking participant %s: %v", name, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if !active {
			http.Error(w, "Not an active participant", http.StatusUnprocessableEntity)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("Failed to upgrade to WebSocket: %v", err)
			return
		}

		client := &Client{
			hub:  hub,
			conn: conn,
			send: make(chan models.Message, 256),
			Name: name,
		}
		client.hub.register <- client

		go client.writePump()
		client.readPump() // readPump 會在連線關閉時自動取消註冊
	}
}
