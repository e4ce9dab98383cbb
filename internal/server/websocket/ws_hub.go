package websocket

import (
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/skypanel/cbs/internal/domain"
)

// WsHub fans payment and balance updates out to the dashboard websocket
// clients of the affected user.
type WsHub struct {
	Clients    map[string]map[*websocket.Conn]bool
	Broadcast  chan WsMessage
	Register   chan *WsClient
	Unregister chan *WsClient
	Logger     zerolog.Logger
}

type WsClient struct {
	UserID string
	Conn   *websocket.Conn
}

type WsMessage struct {
	Type    string                 `json:"type"`
	Session *domain.PaymentSession `json:"session,omitempty"`
	Balance *domain.BalanceChange  `json:"balance,omitempty"`
}

func NewWsHub(logger zerolog.Logger) *WsHub {
	return &WsHub{
		Clients:    make(map[string]map[*websocket.Conn]bool),
		Broadcast:  make(chan WsMessage, 100),
		Register:   make(chan *WsClient, 100),
		Unregister: make(chan *WsClient, 100),
		Logger:     logger,
	}
}

func (h *WsHub) Run() {
	for {
		select {
		case client := <-h.Register:
			if h.Clients[client.UserID] == nil {
				h.Clients[client.UserID] = make(map[*websocket.Conn]bool)
			}
			h.Clients[client.UserID][client.Conn] = true
			h.Logger.Info().
				Str("user_id", client.UserID).
				Int("connection_count", len(h.Clients[client.UserID])).
				Msg("WebSocket client registered")

		case client := <-h.Unregister:
			if clients, ok := h.Clients[client.UserID]; ok {
				delete(clients, client.Conn)
				if len(clients) == 0 {
					delete(h.Clients, client.UserID)
				}
				client.Conn.Close()
				h.Logger.Info().
					Str("user_id", client.UserID).
					Int("connection_count", len(clients)).
					Msg("WebSocket client unregistered")
			}

		case message := <-h.Broadcast:
			userID := message.userID()
			clients, ok := h.Clients[userID]
			if !ok || userID == "" {
				continue
			}
			for conn := range clients {
				if err := conn.WriteJSON(message); err != nil {
					h.Logger.Err(err).
						Str("user_id", userID).
						Str("type", message.Type).
						Msg("Failed to send WebSocket message")
					conn.Close()
					delete(clients, conn)
				}
			}
			if len(clients) == 0 {
				delete(h.Clients, userID)
			}
		}
	}
}

func (m WsMessage) userID() string {
	switch m.Type {
	case "session":
		if m.Session != nil {
			return m.Session.UserID
		}
	case "balance":
		if m.Balance != nil {
			return m.Balance.UserID
		}
	}
	return ""
}

func (h *WsHub) BroadcastSession(session domain.PaymentSession) {
	h.Broadcast <- WsMessage{
		Type:    "session",
		Session: &session,
	}
}

func (h *WsHub) BroadcastBalance(change domain.BalanceChange) {
	h.Broadcast <- WsMessage{
		Type:    "balance",
		Balance: &change,
	}
}
