package broadcast

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AmanSingh336699/ai-interview-battle/internal/domain"
	"github.com/AmanSingh336699/ai-interview-battle/internal/event"
)

// Presence tracks which participants are currently connected to a battle.
// Redis pub/sub has no native membership, so clients heartbeat periodically:
// each heartbeat refreshes a per-battle sorted set scored by last-seen time,
// and a sweep loop expires members that fell silent past the TTL. First
// heartbeat emits member-added, expiry emits member-removed. Presence is
// advisory; the battle roster in the store stays authoritative.
type Presence struct {
	redis  redis.UniversalClient
	eb     *event.Bus
	prefix string
	ttl    time.Duration
	sweep  time.Duration

	mu      sync.Mutex
	tracked map[string]bool

	done    chan struct{}
	stopped chan struct{}
}

type PresenceConfig struct {
	Redis    redis.UniversalClient
	EventBus *event.Bus
	Prefix   string
	// TTL is how long a member stays present without a heartbeat.
	TTL time.Duration
	// SweepInterval is how often expired members are reaped.
	SweepInterval time.Duration
}

type Member struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

func NewPresence(c PresenceConfig) *Presence {
	return &Presence{
		redis:   c.Redis,
		eb:      c.EventBus,
		prefix:  c.Prefix,
		ttl:     c.TTL,
		sweep:   c.SweepInterval,
		tracked: make(map[string]bool),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Heartbeat marks userID as present in the battle. The first heartbeat for a
// member broadcasts member-added.
func (p *Presence) Heartbeat(ctx context.Context, code, userID, name string) error {
	added, err := p.redis.ZAdd(ctx, p.seenKey(code), redis.Z{
		Score:  float64(time.Now().UnixMilli()),
		Member: userID,
	}).Result()
	if err != nil {
		return fmt.Errorf("presence: heartbeat: %w", err)
	}

	if err := p.redis.HSet(ctx, p.namesKey(code), userID, name).Err(); err != nil {
		return fmt.Errorf("presence: heartbeat: %w", err)
	}

	p.mu.Lock()
	p.tracked[code] = true
	p.mu.Unlock()

	if added > 0 {
		p.eb.Publish(ctx, domain.EventMemberAdded{BattleCode: code, UserID: userID, UserName: name})
	}

	return nil
}

// Members lists the currently-present participants of a battle.
func (p *Presence) Members(ctx context.Context, code string) ([]Member, error) {
	ids, err := p.redis.ZRange(ctx, p.seenKey(code), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: members: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	names, err := p.redis.HGetAll(ctx, p.namesKey(code)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: members: %w", err)
	}

	members := make([]Member, 0, len(ids))
	for _, id := range ids {
		members = append(members, Member{UserID: id, Name: names[id]})
	}
	return members, nil
}

// Start runs the expiry sweep until Stop.
func (p *Presence) Start() {
	go func() {
		defer close(p.stopped)

		t := time.NewTicker(p.sweep)
		defer t.Stop()

		for {
			select {
			case <-p.done:
				return
			case <-t.C:
				p.reap()
			}
		}
	}()
}

func (p *Presence) Stop() {
	close(p.done)
	<-p.stopped
}

func (p *Presence) reap() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p.mu.Lock()
	codes := make([]string, 0, len(p.tracked))
	for code := range p.tracked {
		codes = append(codes, code)
	}
	p.mu.Unlock()

	for _, code := range codes {
		p.reapBattle(ctx, code)
	}
}

// reapBattle expires members whose last heartbeat is older than the TTL and
// untracks battles with no members left.
func (p *Presence) reapBattle(ctx context.Context, code string) {
	cutoff := time.Now().Add(-p.ttl).UnixMilli()
	max := strconv.FormatInt(cutoff, 10)

	expired, err := p.redis.ZRangeByScore(ctx, p.seenKey(code), &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil || len(expired) == 0 {
		p.untrackIfEmpty(ctx, code)
		return
	}

	names, _ := p.redis.HGetAll(ctx, p.namesKey(code)).Result()

	members := make([]any, len(expired))
	for i, id := range expired {
		members[i] = id
	}
	if err := p.redis.ZRem(ctx, p.seenKey(code), members...).Err(); err != nil {
		return
	}
	p.redis.HDel(ctx, p.namesKey(code), expired...)

	for _, id := range expired {
		p.eb.Publish(ctx, domain.EventMemberRemoved{BattleCode: code, UserID: id, UserName: names[id]})
	}

	p.untrackIfEmpty(ctx, code)
}

func (p *Presence) untrackIfEmpty(ctx context.Context, code string) {
	n, err := p.redis.ZCard(ctx, p.seenKey(code)).Result()
	if err != nil || n > 0 {
		return
	}

	p.redis.Del(ctx, p.seenKey(code), p.namesKey(code))

	p.mu.Lock()
	delete(p.tracked, code)
	p.mu.Unlock()
}

func (p *Presence) seenKey(code string) string {
	return fmt.Sprintf("%s:presence:%s:seen", p.prefix, code)
}

func (p *Presence) namesKey(code string) string {
	return fmt.Sprintf("%s:presence:%s:names", p.prefix, code)
}
