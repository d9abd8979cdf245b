// Package store holds the durable battle record and the append-only answer
// ledger. Both exist in a Postgres implementation for shared deployments and
// an in-memory implementation for tests and single-process runs; the two
// honor the same compare-and-set and uniqueness contracts.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/AmanSingh336699/ai-interview-battle/internal/domain"
)

// ErrVersionConflict is returned by BattleStore.Update when the battle was
// modified since it was read. Callers re-read and retry.
var ErrVersionConflict = errors.New("store: battle modified concurrently")

// BattleStore persists battle records. Update is a compare-and-set on
// Battle.Version: the roster-capacity and round-advance checks in the
// coordinator rely on it to serialize read-check-write sequences.
type BattleStore interface {
	Insert(ctx context.Context, b *domain.Battle) error
	Get(ctx context.Context, code string) (*domain.Battle, error)
	Exists(ctx context.Context, code string) (bool, error)
	// Update writes b if the stored version still equals b.Version, then
	// increments b.Version. Returns ErrVersionConflict otherwise.
	Update(ctx context.Context, b *domain.Battle) error
}

// AnswerLedger records submissions. Record enforces uniqueness of the
// (battle, user, question) triple at the storage layer; CountForRound
// reflects every record committed before it returns, since that count gates
// the one-way round advance.
type AnswerLedger interface {
	Record(ctx context.Context, a domain.Answer) error
	CountForRound(ctx context.Context, code string, index int) (int, error)
	HasAnswered(ctx context.Context, code, userID string, index int) (bool, error)
	ListByBattle(ctx context.Context, code string) ([]domain.Answer, error)
}

// Purger removes expired records. Battles and answers have independently
// configured retention windows, matching the product's TTL semantics.
type Purger interface {
	PurgeBattles(ctx context.Context, olderThan time.Time) (int, error)
	PurgeAnswers(ctx context.Context, olderThan time.Time) (int, error)
}
