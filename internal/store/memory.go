package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AmanSingh336699/ai-interview-battle/internal/domain"
	"github.com/AmanSingh336699/ai-interview-battle/internal/errors"
)

// Memory implements BattleStore, AnswerLedger and Purger in process memory.
// It honors the same version compare-and-set contract as Postgres, so the
// coordinator's retry path is exercised identically in tests.
type Memory struct {
	mu      sync.Mutex
	battles map[string]domain.Battle
	answers map[answerKey]domain.Answer
}

type answerKey struct {
	code   string
	userID string
	index  int
}

func NewMemory() *Memory {
	return &Memory{
		battles: make(map[string]domain.Battle),
		answers: make(map[answerKey]domain.Answer),
	}
}

func (m *Memory) Insert(_ context.Context, b *domain.Battle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.battles[b.Code]; ok {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("battle code %s already exists", b.Code))
	}

	m.battles[b.Code] = cloneBattle(b)
	return nil
}

func (m *Memory) Get(_ context.Context, code string) (*domain.Battle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.battles[code]
	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("battle %s not found", code))
	}

	c := cloneBattle(&b)
	return &c, nil
}

func (m *Memory) Exists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.battles[code]
	return ok, nil
}

func (m *Memory) Update(_ context.Context, b *domain.Battle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.battles[b.Code]
	if !ok {
		return errors.New(errors.CodeNotFound,
			errors.WithMessagef("battle %s not found", b.Code))
	}
	if cur.Version != b.Version {
		return ErrVersionConflict
	}

	b.Version++
	m.battles[b.Code] = cloneBattle(b)
	return nil
}

func (m *Memory) Record(_ context.Context, a domain.Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := answerKey{code: a.BattleCode, userID: a.UserID, index: a.QuestionIndex}
	if _, ok := m.answers[k]; ok {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("already answered: battle=%s user=%s question=%d", a.BattleCode, a.UserID, a.QuestionIndex))
	}

	m.answers[k] = a
	return nil
}

func (m *Memory) CountForRound(_ context.Context, code string, index int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k := range m.answers {
		if k.code == code && k.index == index {
			n++
		}
	}
	return n, nil
}

func (m *Memory) HasAnswered(_ context.Context, code, userID string, index int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.answers[answerKey{code: code, userID: userID, index: index}]
	return ok, nil
}

func (m *Memory) ListByBattle(_ context.Context, code string) ([]domain.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var answers []domain.Answer
	for k, a := range m.answers {
		if k.code == code {
			answers = append(answers, a)
		}
	}
	sort.Slice(answers, func(i, j int) bool {
		if answers[i].QuestionIndex != answers[j].QuestionIndex {
			return answers[i].QuestionIndex < answers[j].QuestionIndex
		}
		return answers[i].UserID < answers[j].UserID
	})
	return answers, nil
}

func (m *Memory) PurgeBattles(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for code, b := range m.battles {
		at := b.CreatedAt
		if !b.CompletedAt.IsZero() {
			at = b.CompletedAt
		}
		if at.Before(olderThan) {
			delete(m.battles, code)
			n++
		}
	}
	return n, nil
}

func (m *Memory) PurgeAnswers(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, a := range m.answers {
		if a.CreatedAt.Before(olderThan) {
			delete(m.answers, k)
			n++
		}
	}
	return n, nil
}

func cloneBattle(b *domain.Battle) domain.Battle {
	c := *b
	c.Players = append([]domain.Player(nil), b.Players...)
	c.Questions = append([]string(nil), b.Questions...)
	c.RankedAnswers = append([]domain.RankedAnswer(nil), b.RankedAnswers...)
	return c
}
