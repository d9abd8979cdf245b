// Package broadcast carries battle state changes to connected clients over
// redis pub/sub, one channel per battle. The coordinator is the only
// publisher for a battle's channel, so event order as published is
// preserved; delivery is at-least-once and clients reconcile idempotently.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/AmanSingh336699/ai-interview-battle/internal/domain"
	"github.com/AmanSingh336699/ai-interview-battle/internal/event"
)

// Notification is the wire envelope delivered on a battle channel.
type Notification struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type PublisherConfig struct {
	EventBus *event.Bus
	Redis    Redis
	Prefix   string
}

// Publisher bridges the in-process event bus to the redis battle channels.
// Publish failures are logged by the bus and swallowed: the state change is
// already committed, and the clients' polling fallback covers missed
// broadcasts.
type Publisher struct {
	redis  Redis
	prefix string
}

func NewPublisher(c PublisherConfig) *Publisher {
	p := &Publisher{
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	for _, name := range []string{
		domain.EventNamePlayerJoined,
		domain.EventNameBattleStarted,
		domain.EventNameScoreUpdated,
		domain.EventNameNextQuestion,
		domain.EventNameBattleCompleted,
		domain.EventNameTyping,
		domain.EventNameMemberAdded,
		domain.EventNameMemberRemoved,
	} {
		c.EventBus.Subscribe(name, p.handle)
	}

	return p
}

func (p *Publisher) handle(ctx context.Context, e event.Event) error {
	be, ok := e.(domain.BattleEvent)
	if !ok {
		return fmt.Errorf("broadcast: event %s has no battle scope", e.Name())
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("broadcast: marshal %s: %v", e.Name(), err)
	}

	n := Notification{Event: e.Name(), Data: data}
	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("broadcast: marshal %s: %v", e.Name(), err)
	}

	return p.redis.Publish(ctx, ChannelKey(p.prefix, be.Battle()), b).Err()
}

// ChannelKey is the redis channel for one battle's events.
func ChannelKey(prefix, code string) string {
	return fmt.Sprintf("%s:battle:%s", prefix, code)
}
