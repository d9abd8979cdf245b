package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Subscription is a live stream of one battle's notifications.
type Subscription struct {
	C  <-chan Notification
	ps *redis.PubSub
}

// Subscribe opens a subscription to a battle's channel. Malformed payloads
// are dropped with a log line; the subscriber's polling fallback covers any
// gap. Callers must Close the subscription.
func Subscribe(ctx context.Context, rdb redis.UniversalClient, prefix, code string) *Subscription {
	ps := rdb.Subscribe(ctx, ChannelKey(prefix, code))
	out := make(chan Notification, 16)

	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var n Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				slog.WarnContext(ctx, "broadcast: drop malformed notification", "error", err)
				continue
			}
			out <- n
		}
	}()

	return &Subscription{C: out, ps: ps}
}

func (s *Subscription) Close() error {
	return s.ps.Close()
}
