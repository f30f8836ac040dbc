package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/lnurl-gateway/backend/internal/auth"
	"github.com/lnurl-gateway/backend/internal/config"
	"github.com/lnurl-gateway/backend/internal/events"
	"github.com/lnurl-gateway/backend/internal/lnurl"
	"github.com/lnurl-gateway/backend/internal/middleware"
	"go.uber.org/zap"
)

// wsClient is either an operator (all events) or a page watching one k1.
type wsClient struct {
	k1 string
}

func (c *wsClient) wants(event events.Event) bool {
	if c.k1 == "" {
		return true
	}
	k1, _ := event.Payload["k1"].(string)
	return k1 == c.k1
}

type WSHub struct {
	cfg        *config.Config
	subscriber events.Subscriber
	sessions   middleware.SessionValidator
	log        *zap.Logger
	mu         sync.RWMutex
	clients    map[*websocket.Conn]*wsClient
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, sessions middleware.SessionValidator, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:        cfg,
		subscriber: subscriber,
		sessions:   sessions,
		log:        log,
		clients:    make(map[*websocket.Conn]*wsClient),
	}
}

func (h *WSHub) Start(ctx context.Context) error {
	return h.subscriber.Subscribe(ctx, events.Stream, h.broadcast)
}

func (h *WSHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn, client := range h.clients {
		if !client.wants(event) {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug("ws write failed", zap.Error(err))
		}
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// HandleWS GET /ws?token= for the operator feed, /ws?k1= to follow one challenge.
func (h *WSHub) HandleWS(conn *websocket.Conn) {
	client, reason := h.authorize(conn)
	if client == nil {
		_ = conn.WriteJSON(fiber.Map{"error": reason})
		conn.Close()
		return
	}

	// Register
	h.mu.Lock()
	h.clients[conn] = client
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *WSHub) authorize(conn *websocket.Conn) (*wsClient, string) {
	if k1 := conn.Query("k1"); k1 != "" {
		n, err := lnurl.NormalizeK1(k1)
		if err != nil {
			return nil, "invalid k1"
		}
		return &wsClient{k1: n}, ""
	}

	tokenStr := conn.Query("token")
	if tokenStr == "" {
		return nil, "missing token"
	}
	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		return nil, "invalid token"
	}
	sess, err := h.sessions.Validate(context.Background(), claims.SessionID)
	if err != nil {
		return nil, "session expired"
	}
	if !h.cfg.IsAdmin(sess.LinkingKey) {
		return nil, "admin access required"
	}
	return &wsClient{}, ""
}
