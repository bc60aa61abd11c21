// Package events carries board snapshots between processes over redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/almajlis/backend/internal/game"
	"github.com/redis/go-redis/v9"
)

// MatchEventsChannel is the redis channel board snapshots are published on
const MatchEventsChannel = "match_events"

// Event types
const (
	TypeBoard      = "board"
	TypeMatchEnded = "match_ended"
)

// MatchEvent is the wire payload on MatchEventsChannel and on the websocket
type MatchEvent struct {
	Type    string      `json:"type"`
	MatchID string      `json:"match_id"`
	Version int64       `json:"version"`
	Board   *game.Board `json:"board"`
}

// NewMatchEvent wraps a snapshot, typing it match_ended once the match is over
func NewMatchEvent(board *game.Board) MatchEvent {
	t := TypeBoard
	if board.Match.Status == string(game.StatusEnded) {
		t = TypeMatchEnded
	}
	return MatchEvent{Type: t, MatchID: board.Match.ID, Version: board.Match.Version, Board: board}
}

// Decode parses a MatchEvent payload
func Decode(payload []byte) (*MatchEvent, error) {
	var ev MatchEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode match event: %w", err)
	}
	if ev.MatchID == "" {
		return nil, fmt.Errorf("decode match event: missing match_id")
	}
	return &ev, nil
}

// RedisNotifier publishes snapshots so every server instance can fan them out
// to its own websocket viewers.
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
}

var _ game.Notifier = (*RedisNotifier)(nil)

// NewRedisNotifier publishes on MatchEventsChannel
func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, channel: MatchEventsChannel}
}

// Publish sends the board snapshot to subscribers
func (n *RedisNotifier) Publish(ctx context.Context, board *game.Board) error {
	data, err := json.Marshal(NewMatchEvent(board))
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, n.channel, data).Err()
}
