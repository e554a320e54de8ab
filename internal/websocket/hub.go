package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"quizsmith-backend/internal/middleware"
	"quizsmith-backend/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans generation-progress messages out to a user's websocket connections.
// Messages arrive over Redis pub/sub on user_updates:<userID>; one subscription
// runs per connected user.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*websocket.Conn
	redisClient *redis.Client
	jwtAuth     *middleware.JWTAuth
	cancelFuncs map[string]context.CancelFunc
}

func NewHub(redisClient *redis.Client, jwtAuth *middleware.JWTAuth) *Hub {
	return &Hub{
		connections: make(map[string][]*websocket.Conn),
		redisClient: redisClient,
		jwtAuth:     jwtAuth,
		cancelFuncs: make(map[string]context.CancelFunc),
	}
}

// HandleWebSocket authenticates via an optional token query param. Anonymous
// clients share the anonymous progress channel.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := session.AnonymousUser
	if tokenStr := r.URL.Query().Get("token"); tokenStr != "" {
		id, err := h.jwtAuth.ParseToken(tokenStr)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		userID = id
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.registerConnection(userID, conn)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(userID, conn)
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[userID] = append(h.connections[userID], conn)

	// First connection for this user starts the pub/sub subscription
	if len(h.connections[userID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[userID] = cancel
		go h.subscribeToPubSub(ctx, userID)
	}

	log.Printf("WebSocket connected: user %s (total: %d)", userID, len(h.connections[userID]))
}

func (h *Hub) unregisterConnection(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()

	conns := h.connections[userID]
	for i, c := range conns {
		if c == conn {
			h.connections[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[userID]) == 0 {
		delete(h.connections, userID)
		if cancel, ok := h.cancelFuncs[userID]; ok {
			cancel()
			delete(h.cancelFuncs, userID)
		}
	}

	log.Printf("WebSocket disconnected: user %s", userID)
}

func (h *Hub) subscribeToPubSub(ctx context.Context, userID string) {
	channel := "user_updates:" + userID
	pubsub := h.redisClient.Subscribe(ctx, channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(userID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(userID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.connections[userID] {
		conn.WriteMessage(websocket.TextMessage, data)
	}
}

// SendToUser bypasses pub/sub for messages originating in this process.
func (h *Hub) SendToUser(userID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.broadcast(userID, data)
}
