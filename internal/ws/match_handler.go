package ws

import (
	"context"
	"errors"
	"net/http"

	"github.com/almajlis/backend/internal/events"
	"github.com/almajlis/backend/internal/game"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// HandleWebSocket upgrades a live board viewer for /matches/:id/ws. The first
// message is the current snapshot; later ones arrive as the board changes.
// Viewers never see the content of unopened tiles.
func HandleWebSocket(hub *Hub, mgr *game.MatchManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		matchID := c.Param("id")
		snapshot := func() (*game.Board, error) {
			return mgr.GetBoard(context.Background(), matchID)
		}

		if _, err := snapshot(); err != nil {
			if errors.Is(err, game.ErrMatchNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
				return
			}
			log.Printf("[WS] snapshot failed for match %s: %v", matchID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade error: %v", err)
			return
		}

		client := &Client{
			hub:     hub,
			conn:    conn,
			id:      uuid.NewString(),
			matchID: matchID,
			send:    make(chan []byte, sendBuffer),
		}
		hub.register(client)

		// Loaded after registering so no committed change can slip between
		// the snapshot and the first broadcast.
		if board, err := snapshot(); err == nil {
			client.enqueue(events.NewMatchEvent(board))
		} else {
			client.sendError("board unavailable")
		}

		go client.writePump()
		go client.readPump(snapshot)
	}
}
