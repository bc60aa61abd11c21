package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/almajlis/backend/internal/events"
	"github.com/almajlis/backend/internal/game"
	"github.com/almajlis/backend/internal/store/memstore"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Hub, *game.MatchManager, *game.Board, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := memstore.New()
	st.SeedCategory("hist", "History", 2)
	hub := NewHub()
	mgr := game.NewMatchManager(st, hub, game.Options{FirstMatchFree: true})

	board, err := mgr.CreateMatch(context.Background(), game.Session{UserID: "host"}, game.CreateMatchRequest{
		CategoryIDs: []string{"hist"}, TeamAName: "Falcons", TeamBName: "Eagles",
	})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/matches/:id/ws", HandleWebSocket(hub, mgr))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, mgr, board, srv
}

func dial(t *testing.T, srv *httptest.Server, matchID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/matches/" + matchID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestViewerGetsSnapshotThenUpdates(t *testing.T) {
	hub, mgr, board, srv := setup(t)
	conn := dial(t, srv, board.Match.ID)
	defer conn.Close()

	var ev events.MatchEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, events.TypeBoard, ev.Type)
	require.NotNil(t, ev.Board)
	assert.Equal(t, 6, ev.Board.RemainingTiles)
	for _, tile := range ev.Board.Columns[0].Tiles {
		assert.Empty(t, tile.Question, "unopened tile content must stay hidden")
	}
	assert.Equal(t, 1, hub.RoomSize(board.Match.ID))

	tileID := board.Columns[0].Tiles[0].ID
	_, err := mgr.Resolve(context.Background(), game.Session{UserID: "host"}, board.Match.ID, tileID, game.TeamA)
	require.NoError(t, err)

	ev = events.MatchEvent{}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, 200, ev.Board.Match.TeamAScore)
	assert.Equal(t, "B", ev.Board.Match.Turn)
	assert.True(t, ev.Board.Columns[0].Tiles[0].Opened)
	assert.NotEmpty(t, ev.Board.Columns[0].Tiles[0].Question)
}

func TestSyncRequestReturnsSnapshot(t *testing.T) {
	_, _, board, srv := setup(t)
	conn := dial(t, srv, board.Match.ID)
	defer conn.Close()

	var ev events.MatchEvent
	require.NoError(t, conn.ReadJSON(&ev))

	require.NoError(t, conn.WriteJSON(WSMessage{Type: "sync"}))
	ev = events.MatchEvent{}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, board.Match.ID, ev.MatchID)
}

func TestViewerLeavesRoomOnClose(t *testing.T) {
	hub, _, board, srv := setup(t)
	conn := dial(t, srv, board.Match.ID)

	var ev events.MatchEvent
	require.NoError(t, conn.ReadJSON(&ev))
	conn.Close()

	assert.Eventually(t, func() bool { return hub.RoomSize(board.Match.ID) == 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestUnknownMatchIs404(t *testing.T) {
	_, _, _, srv := setup(t)
	resp, err := http.Get(srv.URL + "/matches/nope/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStaleSnapshotIsDropped(t *testing.T) {
	hub, mgr, board, srv := setup(t)
	conn := dial(t, srv, board.Match.ID)
	defer conn.Close()

	var ev events.MatchEvent
	require.NoError(t, conn.ReadJSON(&ev))
	require.Eventually(t, func() bool { return hub.RoomSize(board.Match.ID) == 1 }, 2*time.Second, 20*time.Millisecond)

	host := game.Session{UserID: "host"}
	_, err := mgr.Resolve(context.Background(), host, board.Match.ID, board.Columns[0].Tiles[0].ID, game.TeamA)
	require.NoError(t, err)
	ev = events.MatchEvent{}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, int64(1), ev.Version)

	// the creation snapshot arrives late
	require.NoError(t, hub.Publish(context.Background(), board))

	_, err = mgr.Resolve(context.Background(), host, board.Match.ID, board.Columns[0].Tiles[1].ID, game.TeamB)
	require.NoError(t, err)
	ev = events.MatchEvent{}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, int64(2), ev.Version)
	assert.Equal(t, 200, ev.Board.Match.TeamAScore)
	assert.Equal(t, 200, ev.Board.Match.TeamBScore)
}

func TestSameVersionSnapshotIsDelivered(t *testing.T) {
	hub, mgr, board, srv := setup(t)
	conn := dial(t, srv, board.Match.ID)
	defer conn.Close()

	var ev events.MatchEvent
	require.NoError(t, conn.ReadJSON(&ev))
	require.Eventually(t, func() bool { return hub.RoomSize(board.Match.ID) == 1 }, 2*time.Second, 20*time.Millisecond)

	snap, err := mgr.GetBoard(context.Background(), board.Match.ID)
	require.NoError(t, err)
	require.NoError(t, hub.Publish(context.Background(), snap))
	require.NoError(t, hub.Publish(context.Background(), snap))
	for i := 0; i < 2; i++ {
		ev = events.MatchEvent{}
		require.NoError(t, conn.ReadJSON(&ev))
		assert.Equal(t, int64(0), ev.Version)
	}
}
