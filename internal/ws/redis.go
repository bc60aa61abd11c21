package ws

import (
	"context"

	"github.com/almajlis/backend/internal/events"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// StartMatchEventSubscriber subscribes to the match_events channel and
// broadcasts incoming snapshots to the viewers connected to this instance.
func StartMatchEventSubscriber(ctx context.Context, rdb *redis.Client, hub *Hub) {
	if rdb == nil {
		log.Println("[WS] Redis client not set; match event subscriber not started")
		return
	}

	pubsub := rdb.Subscribe(ctx, events.MatchEventsChannel)
	ch := pubsub.Channel()
	go func() {
		<-ctx.Done()
		pubsub.Close()
	}()
	go func() {
		log.Printf("[WS] %s subscriber started", events.MatchEventsChannel)
		for msg := range ch {
			ev, err := events.Decode([]byte(msg.Payload))
			if err != nil {
				log.Printf("[WS] invalid event payload: %v", err)
				continue
			}

			if hub.RoomSize(ev.MatchID) == 0 {
				log.Debugf("[WS] no viewers for match %s; %s dropped", ev.MatchID, ev.Type)
				continue
			}
			log.Debugf("[WS] broadcasting %s for match %s (room_size=%d)", ev.Type, ev.MatchID, hub.RoomSize(ev.MatchID))
			hub.broadcastVersioned(ev.MatchID, ev.Version, []byte(msg.Payload))
		}
		log.Println("[WS] match event subscriber stopped")
	}()
}
