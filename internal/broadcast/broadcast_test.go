package broadcast_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/AmanSingh336699/ai-interview-battle/internal/broadcast"
	"github.com/AmanSingh336699/ai-interview-battle/internal/domain"
	"github.com/AmanSingh336699/ai-interview-battle/internal/event"
)

func makeRedis(t *testing.T) redis.UniversalClient {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")
	return rc
}

func TestPublisher(t *testing.T) {
	ctx := context.Background()
	rc := makeRedis(t)
	eb := event.NewBus()

	broadcast.NewPublisher(broadcast.PublisherConfig{
		EventBus: eb,
		Redis:    rc,
		Prefix:   "test",
	})

	sub := broadcast.Subscribe(ctx, rc, "test", "B1")
	defer sub.Close()

	// Subscribe is async against miniredis; give the subscription a moment.
	time.Sleep(50 * time.Millisecond)

	eb.Publish(ctx, domain.EventNextQuestion{
		BattleCode:   "B1",
		CurrentIndex: 2,
		Question:     "explain binary search",
		Status:       domain.StatusOngoing,
	})
	eb.Stop()

	select {
	case n := <-sub.C:
		require.Equal(t, domain.EventNameNextQuestion, n.Event)

		var data struct {
			CurrentQuestionIndex int           `json:"currentQuestionIndex"`
			Question             string        `json:"question"`
			Status               domain.Status `json:"status"`
		}
		require.NoError(t, json.Unmarshal(n.Data, &data))
		require.Equal(t, 2, data.CurrentQuestionIndex)
		require.Equal(t, "explain binary search", data.Question)
		require.Equal(t, domain.StatusOngoing, data.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestPublisher_ChannelIsolation(t *testing.T) {
	ctx := context.Background()
	rc := makeRedis(t)
	eb := event.NewBus()

	broadcast.NewPublisher(broadcast.PublisherConfig{EventBus: eb, Redis: rc, Prefix: "test"})

	subB2 := broadcast.Subscribe(ctx, rc, "test", "B2")
	defer subB2.Close()
	time.Sleep(50 * time.Millisecond)

	eb.Publish(ctx, domain.EventBattleCompleted{BattleCode: "B1", Status: domain.StatusCompleted})
	eb.Stop()

	select {
	case n := <-subB2.C:
		t.Fatalf("event for B1 leaked onto B2's channel: %+v", n)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPresence(t *testing.T) {
	ctx := context.Background()
	rc := makeRedis(t)
	eb := event.NewBus()

	var (
		mu      sync.Mutex
		added   []domain.EventMemberAdded
		removed []domain.EventMemberRemoved
	)
	eb.Subscribe(domain.EventNameMemberAdded, func(ctx context.Context, e event.Event) error {
		mu.Lock()
		added = append(added, e.(domain.EventMemberAdded))
		mu.Unlock()
		return nil
	})
	eb.Subscribe(domain.EventNameMemberRemoved, func(ctx context.Context, e event.Event) error {
		mu.Lock()
		removed = append(removed, e.(domain.EventMemberRemoved))
		mu.Unlock()
		return nil
	})

	p := broadcast.NewPresence(broadcast.PresenceConfig{
		Redis:         rc,
		EventBus:      eb,
		Prefix:        "test",
		TTL:           100 * time.Millisecond,
		SweepInterval: 25 * time.Millisecond,
	})

	t.Run("first heartbeat adds the member", func(t *testing.T) {
		require.NoError(t, p.Heartbeat(ctx, "B1", "u1", "Alice"))
		require.NoError(t, p.Heartbeat(ctx, "B1", "u2", "Bob"))
		// A refresh is not a new membership.
		require.NoError(t, p.Heartbeat(ctx, "B1", "u1", "Alice"))
		eb.Stop()

		members, err := p.Members(ctx, "B1")
		require.NoError(t, err)
		require.ElementsMatch(t, []broadcast.Member{
			{UserID: "u1", Name: "Alice"},
			{UserID: "u2", Name: "Bob"},
		}, members)

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, added, 2)
	})

	t.Run("silent members are reaped", func(t *testing.T) {
		p.Start()
		defer p.Stop()

		require.Eventually(t, func() bool {
			members, err := p.Members(ctx, "B1")
			return err == nil && len(members) == 0
		}, 2*time.Second, 25*time.Millisecond, "members should expire after TTL of silence")

		eb.Stop()
		mu.Lock()
		defer mu.Unlock()
		require.Len(t, removed, 2)
	})
}
