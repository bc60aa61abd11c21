package handlers

import (
	"github.com/almajlis/backend/internal/game"
	"github.com/almajlis/backend/internal/ws"
	"github.com/gin-gonic/gin"
)

// HandleMatchWebSocket streams live board snapshots to viewers
func HandleMatchWebSocket(hub *ws.Hub, mgr *game.MatchManager) gin.HandlerFunc {
	return ws.HandleWebSocket(hub, mgr)
}
