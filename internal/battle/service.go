// Package battle is the coordinator for multiplayer quiz sessions: it owns
// every state transition (join, answer submit, round advance, completion)
// and serializes concurrent mutations through the store's version
// compare-and-set, retrying bounded times on conflict.
package battle

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sort"
	"time"

	"github.com/AmanSingh336699/ai-interview-battle/internal/domain"
	"github.com/AmanSingh336699/ai-interview-battle/internal/errors"
	"github.com/AmanSingh336699/ai-interview-battle/internal/event"
	"github.com/AmanSingh336699/ai-interview-battle/internal/oracle"
	"github.com/AmanSingh336699/ai-interview-battle/internal/store"
)

const (
	// casAttempts bounds the optimistic-concurrency retry loop. Conflicts only
	// happen when participants of the same battle race, so contention is
	// bounded by the roster size.
	casAttempts = 5

	defaultScoreTimeout = 15 * time.Second
)

type Config struct {
	Battles      store.BattleStore
	Answers      store.AnswerLedger
	Oracle       oracle.Oracle
	EventBus     *event.Bus
	ScoreTimeout time.Duration
}

type Service struct {
	battles      store.BattleStore
	answers      store.AnswerLedger
	oracle       oracle.Oracle
	eb           *event.Bus
	scoreTimeout time.Duration
	now          func() time.Time
}

func NewService(c Config) *Service {
	t := c.ScoreTimeout
	if t <= 0 {
		t = defaultScoreTimeout
	}

	return &Service{
		battles:      c.Battles,
		answers:      c.Answers,
		oracle:       c.Oracle,
		eb:           c.EventBus,
		scoreTimeout: t,
		now:          time.Now,
	}
}

type CreateBattleRequest struct {
	UserID     string
	Name       string
	Avatar     string
	Topic      string
	Difficulty string
	MaxPlayers int
}

// CreateBattle generates the question set, assigns a collision-checked code
// and persists a waiting battle with the owner as first participant. If
// question generation fails no battle is persisted.
func (s *Service) CreateBattle(ctx context.Context, req CreateBattleRequest) (string, error) {
	switch {
	case req.UserID == "" || req.Name == "" || req.Topic == "" || req.Difficulty == "":
		return "", errors.New(errors.CodeInvalidArgument, errors.WithMessagef("missing required fields"))
	case req.MaxPlayers < 2:
		return "", errors.New(errors.CodeInvalidArgument, errors.WithMessagef("maxPlayers must be at least 2"))
	case req.MaxPlayers > 10:
		return "", errors.New(errors.CodeInvalidArgument, errors.WithMessagef("maxPlayers must be at most 10"))
	}

	questions, err := s.oracle.GenerateQuestions(ctx, req.Topic, req.Difficulty)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		code, err := s.newCode(ctx)
		if err != nil {
			return "", err
		}

		b := &domain.Battle{
			Code:       code,
			CreatedBy:  req.UserID,
			Topic:      req.Topic,
			Difficulty: req.Difficulty,
			MaxPlayers: req.MaxPlayers,
			Players:    []domain.Player{{UserID: req.UserID, Name: req.Name, Avatar: req.Avatar}},
			Questions:  questions,
			Status:     domain.StatusWaiting,
			Version:    1,
			CreatedAt:  s.now(),
		}

		err = s.battles.Insert(ctx, b)
		if errors.IsCode(err, errors.CodeAlreadyExists) {
			// Lost a code collision race between the existence check and the
			// insert; pick a new code.
			continue
		}
		if err != nil {
			return "", err
		}

		return code, nil
	}

	return "", errors.New(errors.CodeInternal, errors.WithMessagef("could not allocate a battle code"))
}

type JoinBattleRequest struct {
	Code   string
	UserID string
	Name   string
	Avatar string
}

// JoinBattle appends a participant and, when the roster reaches capacity,
// performs the waiting -> ongoing transition in the same serialized unit.
func (s *Service) JoinBattle(ctx context.Context, req JoinBattleRequest) error {
	if req.Code == "" || req.UserID == "" || req.Name == "" {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("missing required fields"))
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		b, err := s.battles.Get(ctx, req.Code)
		if err != nil {
			return err
		}

		switch {
		case b.CreatedBy == req.UserID:
			return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("creator cannot join their own battle"))
		case b.PlayerByID(req.UserID) != nil:
			return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("already joined"))
		case b.Full():
			return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("battle is full"))
		case b.Status != domain.StatusWaiting:
			return errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("battle already started"))
		}

		b.Players = append(b.Players, domain.Player{UserID: req.UserID, Name: req.Name, Avatar: req.Avatar})
		started := b.Full()
		if started {
			b.Status = domain.StatusOngoing
		}

		err = s.battles.Update(ctx, b)
		if stderrors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return err
		}

		s.eb.Publish(ctx, domain.EventPlayerJoined{BattleCode: b.Code, Players: b.Players})
		if started {
			s.eb.Publish(ctx, domain.EventBattleStarted{BattleCode: b.Code})
		}
		return nil
	}

	return errors.New(errors.CodeAborted, errors.WithMessagef("battle %s is contended, retry", req.Code))
}

type SubmitAnswerRequest struct {
	Code   string
	UserID string
	Text   string
}

// SubmitAnswer scores and records one answer for the current round, updates
// the participant's cached score, and performs the round-advance or
// completion transition when the round's answer count reaches the roster
// size. A failed scoring call records score 0 rather than stalling the round.
func (s *Service) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) error {
	if req.Code == "" || req.UserID == "" || req.Text == "" {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("missing required fields"))
	}

	b, err := s.battles.Get(ctx, req.Code)
	if err != nil {
		return err
	}
	if b.Status != domain.StatusOngoing {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("battle is %s, not ongoing", b.Status))
	}
	if b.PlayerByID(req.UserID) == nil {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("player not in battle"))
	}

	// The round this submission belongs to is fixed at read time.
	idx := b.CurrentIndex
	if idx >= len(b.Questions) {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("no active round"))
	}

	// Cheap duplicate reject before spending an oracle call; the ledger's
	// unique constraint below remains the authoritative defense.
	if answered, err := s.answers.HasAnswered(ctx, b.Code, req.UserID, idx); err != nil {
		return err
	} else if answered {
		return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("already answered"))
	}

	score := s.scoreAnswer(ctx, b.Questions[idx], req.Text)

	// The ledger's uniqueness constraint is the authoritative duplicate
	// defense: concurrent submits for the same triple collapse to one record.
	err = s.answers.Record(ctx, domain.Answer{
		BattleCode:    b.Code,
		UserID:        req.UserID,
		QuestionIndex: idx,
		Text:          req.Text,
		Score:         score,
		CreatedAt:     s.now(),
	})
	if err != nil {
		return err
	}

	count, err := s.answers.CountForRound(ctx, b.Code, idx)
	if err != nil {
		return err
	}

	advanced, completed, err := s.applySubmission(ctx, req.Code, req.UserID, idx, score, count)
	if err != nil {
		return err
	}

	// Round events precede the score update, matching the client contract.
	b, err = s.battles.Get(ctx, req.Code)
	if err != nil {
		return err
	}
	if completed {
		s.eb.Publish(ctx, domain.EventBattleCompleted{BattleCode: b.Code, Status: domain.StatusCompleted})
	} else if advanced {
		s.eb.Publish(ctx, domain.EventNextQuestion{
			BattleCode:   b.Code,
			CurrentIndex: b.CurrentIndex,
			Question:     b.Questions[b.CurrentIndex],
			Status:       b.Status,
		})
	}
	s.eb.Publish(ctx, domain.EventScoreUpdated{BattleCode: b.Code, Players: b.Players})

	return nil
}

// applySubmission folds one recorded answer into the battle record under the
// CAS loop: bump the cached score, and advance the round exactly once when
// the count matches the roster. The cursor guard (CurrentIndex == idx) makes
// N simultaneous final submissions elect a single winner.
func (s *Service) applySubmission(ctx context.Context, code, userID string, idx, score, count int) (advanced, completed bool, err error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		b, err := s.battles.Get(ctx, code)
		if err != nil {
			return false, false, err
		}

		if p := b.PlayerByID(userID); p != nil {
			p.Score += score
		}

		advanced, completed = false, false
		if count == len(b.Players) && b.CurrentIndex == idx {
			b.CurrentIndex++
			advanced = true
			if b.Finished() {
				b.Status = domain.StatusCompleted
				b.CompletedAt = s.now()
				completed = true
			}
		}

		err = s.battles.Update(ctx, b)
		if stderrors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return false, false, err
		}

		return advanced, completed, nil
	}

	return false, false, errors.New(errors.CodeAborted,
		errors.WithMessagef("battle %s is contended, retry", code))
}

func (s *Service) scoreAnswer(ctx context.Context, question, answer string) int {
	ctx, cancel := context.WithTimeout(ctx, s.scoreTimeout)
	defer cancel()

	score, err := s.oracle.Score(ctx, question, answer)
	if err != nil {
		slog.WarnContext(ctx, "battle: scoring failed, recording 0", "error", err)
		return 0
	}

	return oracle.ClampScore(score)
}

type CurrentQuestion struct {
	Question     string          `json:"question"`
	CurrentIndex int             `json:"currentIndex"`
	Status       domain.Status   `json:"status"`
	Players      []domain.Player `json:"players"`
	Finished     bool            `json:"finished"`
}

// GetCurrentQuestion is a pure read of the active round. When the cursor ran
// past the last question it returns a terminal indicator instead of a
// question.
func (s *Service) GetCurrentQuestion(ctx context.Context, code string) (*CurrentQuestion, error) {
	b, err := s.battles.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	q := &CurrentQuestion{
		CurrentIndex: b.CurrentIndex,
		Status:       b.Status,
		Players:      b.Players,
	}
	if b.Finished() {
		q.Finished = true
		return q, nil
	}

	q.Question = b.Questions[b.CurrentIndex]
	return q, nil
}

// HasAnswered reports whether the participant already answered the current
// round.
func (s *Service) HasAnswered(ctx context.Context, code, userID string) (bool, error) {
	b, err := s.battles.Get(ctx, code)
	if err != nil {
		return false, err
	}

	return s.answers.HasAnswered(ctx, code, userID, b.CurrentIndex)
}

type Lobby struct {
	Players    []domain.Player `json:"players"`
	MaxPlayers int             `json:"maxPlayers"`
	Status     domain.Status   `json:"status"`
	Topic      string          `json:"topic"`
	Difficulty string          `json:"difficulty"`
}

// GetLobby is the pre-start roster view.
func (s *Service) GetLobby(ctx context.Context, code string) (*Lobby, error) {
	b, err := s.battles.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	return &Lobby{
		Players:    b.Players,
		MaxPlayers: b.MaxPlayers,
		Status:     b.Status,
		Topic:      b.Topic,
		Difficulty: b.Difficulty,
	}, nil
}

type Summary struct {
	Ready    bool                  `json:"ready"`
	Status   domain.Status         `json:"status"`
	Players  []domain.Player       `json:"players"`
	Rankings []domain.RankedAnswer `json:"rankings,omitempty"`
}

// GetRankedSummary returns the cached top-answer ranking, computing and
// snapshotting it on first read. While the battle is still running it
// reports not-ready instead of failing, so callers redirect back into the
// live session. The ranking oracle is nondeterministic; whichever result
// gets cached first wins.
func (s *Service) GetRankedSummary(ctx context.Context, code string) (*Summary, error) {
	b, err := s.battles.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	if b.Status != domain.StatusCompleted {
		return &Summary{Ready: false, Status: b.Status, Players: b.Players}, nil
	}
	if len(b.RankedAnswers) > 0 {
		return &Summary{Ready: true, Status: b.Status, Players: b.Players, Rankings: b.RankedAnswers}, nil
	}

	rankings, err := s.computeRanking(ctx, b)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		b.RankedAnswers = rankings
		err = s.battles.Update(ctx, b)
		if stderrors.Is(err, store.ErrVersionConflict) {
			b, err = s.battles.Get(ctx, code)
			if err != nil {
				return nil, err
			}
			if len(b.RankedAnswers) > 0 {
				// Another reader cached first; theirs wins.
				rankings = b.RankedAnswers
				break
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}

	return &Summary{Ready: true, Status: b.Status, Players: b.Players, Rankings: rankings}, nil
}

func (s *Service) computeRanking(ctx context.Context, b *domain.Battle) ([]domain.RankedAnswer, error) {
	answers, err := s.answers.ListByBattle(ctx, b.Code)
	if err != nil {
		return nil, err
	}
	if len(answers) == 0 {
		return nil, nil
	}

	entries := make([]oracle.RankEntry, 0, len(answers))
	for _, a := range answers {
		if a.QuestionIndex >= len(b.Questions) {
			continue
		}
		entries = append(entries, oracle.RankEntry{
			UserID:   a.UserID,
			Question: b.Questions[a.QuestionIndex],
			Answer:   a.Text,
		})
	}

	picks, err := s.oracle.Rank(ctx, entries)
	if err != nil {
		slog.WarnContext(ctx, "battle: ranking failed, falling back to top scores", "battle", b.Code, "error", err)
		picks = topScoredEntries(b, answers)
	}

	rankings := make([]domain.RankedAnswer, 0, len(picks))
	for _, p := range picks {
		name := "Unknown"
		if pl := b.PlayerByID(p.UserID); pl != nil {
			name = pl.Name
		}
		rankings = append(rankings, domain.RankedAnswer{
			Username: name,
			Question: p.Question,
			Answer:   p.Answer,
		})
	}

	return rankings, nil
}

// topScoredEntries is the deterministic ranking fallback: highest ledger
// score first, one answer per distinct question, capped like the oracle.
func topScoredEntries(b *domain.Battle, answers []domain.Answer) []oracle.RankEntry {
	sorted := append([]domain.Answer(nil), answers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	entries := make([]oracle.RankEntry, 0, len(sorted))
	for _, a := range sorted {
		if a.QuestionIndex >= len(b.Questions) {
			continue
		}
		entries = append(entries, oracle.RankEntry{
			UserID:   a.UserID,
			Question: b.Questions[a.QuestionIndex],
			Answer:   a.Text,
		})
	}

	return oracle.CapRanking(entries)
}

// Typing broadcasts a best-effort typing hint to the battle's peers. It is
// fire-and-forget: no persistence, no delivery guarantee.
func (s *Service) Typing(ctx context.Context, code, userID string, typing bool) {
	s.eb.Publish(ctx, domain.EventTyping{BattleCode: code, UserID: userID, Typing: typing})
}
