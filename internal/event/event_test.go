package event_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AmanSingh336699/ai-interview-battle/internal/domain"
	"github.com/AmanSingh336699/ai-interview-battle/internal/event"
)

func TestBus_PublishSubscribe(t *testing.T) {
	t.Run("subscriber only receives events it subscribed to", func(t *testing.T) {
		t.Parallel()

		b := event.NewBus()
		var (
			mu       sync.Mutex
			received []event.Event
		)
		b.Subscribe(domain.EventNameNextQuestion, func(ctx context.Context, e event.Event) error {
			mu.Lock()
			received = append(received, e)
			mu.Unlock()
			return nil
		})

		b.Publish(context.Background(), domain.EventNextQuestion{BattleCode: "B1", CurrentIndex: 1})
		b.Publish(context.Background(), domain.EventScoreUpdated{BattleCode: "B1"})
		b.Stop()

		assert.Equal(t, []event.Event{domain.EventNextQuestion{BattleCode: "B1", CurrentIndex: 1}}, received)
	})

	t.Run("one event fans out to all subscribers", func(t *testing.T) {
		t.Parallel()

		b := event.NewBus()
		var (
			mu     sync.Mutex
			counts = make(map[string]int)
		)
		for _, name := range []string{"s1", "s2", "s3"} {
			name := name
			b.Subscribe(domain.EventNameBattleCompleted, func(ctx context.Context, e event.Event) error {
				mu.Lock()
				counts[name]++
				mu.Unlock()
				return nil
			})
		}

		b.Publish(context.Background(), domain.EventBattleCompleted{BattleCode: "B1", Status: domain.StatusCompleted})
		b.Stop()

		assert.Equal(t, map[string]int{"s1": 1, "s2": 1, "s3": 1}, counts)
	})

	t.Run("duplicate publishes are all delivered", func(t *testing.T) {
		t.Parallel()

		b := event.NewBus()
		var (
			mu sync.Mutex
			n  int
		)
		b.Subscribe(domain.EventNameScoreUpdated, func(ctx context.Context, e event.Event) error {
			mu.Lock()
			n++
			mu.Unlock()
			return nil
		})

		b.Publish(context.Background(), domain.EventScoreUpdated{BattleCode: "B1"})
		b.Publish(context.Background(), domain.EventScoreUpdated{BattleCode: "B1"})
		b.Stop()

		assert.Equal(t, 2, n)
	})

	t.Run("a failing handler does not affect other handlers", func(t *testing.T) {
		t.Parallel()

		b := event.NewBus()
		var (
			mu sync.Mutex
			ok bool
		)
		b.Subscribe(domain.EventNameBattleStarted, func(ctx context.Context, e event.Event) error {
			return errors.New("publish failed")
		})
		b.Subscribe(domain.EventNameBattleStarted, func(ctx context.Context, e event.Event) error {
			mu.Lock()
			ok = true
			mu.Unlock()
			return nil
		})

		b.Publish(context.Background(), domain.EventBattleStarted{BattleCode: "B1"})
		b.Stop()

		assert.True(t, ok)
	})
}
