package store

import (
	"context"
	_ "embed"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AmanSingh336699/ai-interview-battle/internal/domain"
	"github.com/AmanSingh336699/ai-interview-battle/internal/errors"
)

//go:embed schema.sql
var schema string

const codeUniqueViolation = "23505"

// Postgres implements BattleStore, AnswerLedger and Purger on a shared
// pgx pool.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// Migrate applies the embedded schema. Statements are idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Insert(ctx context.Context, b *domain.Battle) error {
	const stmt = `
INSERT INTO battles (battle_code, created_by, topic, difficulty, max_players, players, questions, current_index, status, version, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`

	_, err := p.db.Exec(ctx, stmt,
		b.Code, b.CreatedBy, b.Topic, b.Difficulty, b.MaxPlayers,
		b.Players, b.Questions, b.CurrentIndex, b.Status, b.Version, b.CreatedAt,
	)

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("battle code %s already exists", b.Code),
			errors.WithCause(err))
	}
	if err != nil {
		return fmt.Errorf("store: insert battle: %w", err)
	}

	return nil
}

func (p *Postgres) Get(ctx context.Context, code string) (*domain.Battle, error) {
	const stmt = `
SELECT battle_code, created_by, topic, difficulty, max_players, players, questions, current_index, status, ranked_answers, version, created_at, completed_at
FROM battles WHERE battle_code = $1;`

	var (
		b           domain.Battle
		completedAt *time.Time
	)
	err := p.db.QueryRow(ctx, stmt, code).Scan(
		&b.Code, &b.CreatedBy, &b.Topic, &b.Difficulty, &b.MaxPlayers,
		&b.Players, &b.Questions, &b.CurrentIndex, &b.Status, &b.RankedAnswers,
		&b.Version, &b.CreatedAt, &completedAt,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("battle %s not found", code))
	}
	if err != nil {
		return nil, fmt.Errorf("store: get battle: %w", err)
	}
	if completedAt != nil {
		b.CompletedAt = *completedAt
	}

	return &b, nil
}

func (p *Postgres) Exists(ctx context.Context, code string) (bool, error) {
	const stmt = `SELECT EXISTS (SELECT 1 FROM battles WHERE battle_code = $1);`

	var exists bool
	if err := p.db.QueryRow(ctx, stmt, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("store: battle exists: %w", err)
	}

	return exists, nil
}

func (p *Postgres) Update(ctx context.Context, b *domain.Battle) error {
	const stmt = `
UPDATE battles
SET players = $3, current_index = $4, status = $5, ranked_answers = $6, completed_at = $7, version = version + 1
WHERE battle_code = $1 AND version = $2;`

	var completedAt *time.Time
	if !b.CompletedAt.IsZero() {
		completedAt = &b.CompletedAt
	}

	tag, err := p.db.Exec(ctx, stmt,
		b.Code, b.Version,
		b.Players, b.CurrentIndex, b.Status, b.RankedAnswers, completedAt,
	)
	if err != nil {
		return fmt.Errorf("store: update battle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	b.Version++
	return nil
}

func (p *Postgres) Record(ctx context.Context, a domain.Answer) error {
	const stmt = `
INSERT INTO answers (battle_code, user_id, question_index, answer, score, created_at)
VALUES ($1, $2, $3, $4, $5, $6);`

	_, err := p.db.Exec(ctx, stmt, a.BattleCode, a.UserID, a.QuestionIndex, a.Text, a.Score, a.CreatedAt)

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("already answered: battle=%s user=%s question=%d", a.BattleCode, a.UserID, a.QuestionIndex),
			errors.WithCause(err))
	}
	if err != nil {
		return fmt.Errorf("store: record answer: %w", err)
	}

	return nil
}

func (p *Postgres) CountForRound(ctx context.Context, code string, index int) (int, error) {
	const stmt = `SELECT COUNT(*) FROM answers WHERE battle_code = $1 AND question_index = $2;`

	var n int
	if err := p.db.QueryRow(ctx, stmt, code, index).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count answers: %w", err)
	}

	return n, nil
}

func (p *Postgres) HasAnswered(ctx context.Context, code, userID string, index int) (bool, error) {
	const stmt = `SELECT EXISTS (SELECT 1 FROM answers WHERE battle_code = $1 AND user_id = $2 AND question_index = $3);`

	var exists bool
	if err := p.db.QueryRow(ctx, stmt, code, userID, index).Scan(&exists); err != nil {
		return false, fmt.Errorf("store: has answered: %w", err)
	}

	return exists, nil
}

func (p *Postgres) ListByBattle(ctx context.Context, code string) ([]domain.Answer, error) {
	const stmt = `
SELECT battle_code, user_id, question_index, answer, score, created_at
FROM answers WHERE battle_code = $1
ORDER BY question_index, created_at;`

	rows, err := p.db.Query(ctx, stmt, code)
	if err != nil {
		return nil, fmt.Errorf("store: list answers: %w", err)
	}

	answers, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Answer, error) {
		var a domain.Answer
		if err := r.Scan(&a.BattleCode, &a.UserID, &a.QuestionIndex, &a.Text, &a.Score, &a.CreatedAt); err != nil {
			return domain.Answer{}, err
		}
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list answers: %w", err)
	}

	return answers, nil
}

func (p *Postgres) PurgeBattles(ctx context.Context, olderThan time.Time) (int, error) {
	const stmt = `DELETE FROM battles WHERE COALESCE(completed_at, created_at) < $1;`

	tag, err := p.db.Exec(ctx, stmt, olderThan)
	if err != nil {
		return 0, fmt.Errorf("store: purge battles: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func (p *Postgres) PurgeAnswers(ctx context.Context, olderThan time.Time) (int, error) {
	const stmt = `DELETE FROM answers WHERE created_at < $1;`

	tag, err := p.db.Exec(ctx, stmt, olderThan)
	if err != nil {
		return 0, fmt.Errorf("store: purge answers: %w", err)
	}

	return int(tag.RowsAffected()), nil
}
