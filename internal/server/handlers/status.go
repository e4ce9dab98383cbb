package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/skypanel/cbs/internal/domain"
	"github.com/skypanel/cbs/internal/server/websocket"
)

// StatusHandler upgrades dashboard clients to a websocket that streams
// their own balance and payment session updates.
type StatusHandler struct {
	logger zerolog.Logger
	wsHub  *websocket.WsHub
}

func NewStatusHandler(wsHub *websocket.WsHub, logger zerolog.Logger) *StatusHandler {
	return &StatusHandler{
		logger: logger,
		wsHub:  wsHub,
	}
}

var upgrader = gws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *StatusHandler) HandleWebSocket(c *gin.Context) {
	userID, ok := authenticatedUser(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Err(err).
			Str("user_id", userID).
			Msg("Failed to upgrade to WebSocket")
		c.JSON(http.StatusInternalServerError, domain.ApiResponse{
			Message: "Failed to establish WebSocket connection: " + err.Error(),
			Success: false,
			Status:  http.StatusInternalServerError,
		})
		return
	}

	client := &websocket.WsClient{
		UserID: userID,
		Conn:   conn,
	}
	h.wsHub.Register <- client

	go func() {
		defer func() {
			h.wsHub.Unregister <- client
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.logger.Debug().Err(err).
					Str("user_id", userID).
					Msg("WebSocket closed")
				break
			}
		}
	}()
}
