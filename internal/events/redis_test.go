package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/almajlis/backend/internal/game"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBoard(status game.MatchStatus) *game.Board {
	return &game.Board{
		Match:          game.MatchView{ID: "m-1", TeamAName: "A", TeamBName: "B", Status: string(status), Turn: "A"},
		Columns:        []game.Column{{Position: 1, CategoryID: "c-1", Name: "History"}},
		RemainingTiles: 6,
	}
}

func TestNewMatchEventType(t *testing.T) {
	assert.Equal(t, TypeBoard, NewMatchEvent(sampleBoard(game.StatusActive)).Type)
	assert.Equal(t, TypeMatchEnded, NewMatchEvent(sampleBoard(game.StatusEnded)).Type)
}

func TestDecodeRoundTrip(t *testing.T) {
	data, err := json.Marshal(NewMatchEvent(sampleBoard(game.StatusActive)))
	require.NoError(t, err)

	ev, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "m-1", ev.MatchID)
	require.NotNil(t, ev.Board)
	assert.Equal(t, "History", ev.Board.Columns[0].Name)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"type":"board"}`))
	assert.Error(t, err)
}

func TestRedisNotifierPublish(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := rdb.Subscribe(ctx, MatchEventsChannel)
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, NewRedisNotifier(rdb).Publish(ctx, sampleBoard(game.StatusActive)))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	ev, err := Decode([]byte(msg.Payload))
	require.NoError(t, err)
	assert.Equal(t, "m-1", ev.MatchID)
}

func TestMatchEventCarriesVersion(t *testing.T) {
	b := sampleBoard(game.StatusActive)
	b.Match.Version = 9
	data, err := json.Marshal(NewMatchEvent(b))
	require.NoError(t, err)

	ev, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, int64(9), ev.Version)
}
