package domain

import (
	"time"
)

// Status is the lifecycle state of a battle.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
)

// Player is a joined participant with a running score.
type Player struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Avatar string `json:"avatar,omitempty"`
}

// Battle is one multiplayer quiz session, identified by a shareable code.
// CurrentIndex is the cursor into Questions; CurrentIndex == len(Questions)
// implies StatusCompleted. Version backs the store's compare-and-set.
type Battle struct {
	Code          string
	CreatedBy     string
	Topic         string
	Difficulty    string
	MaxPlayers    int
	Players       []Player
	Questions     []string
	CurrentIndex  int
	Status        Status
	RankedAnswers []RankedAnswer
	Version       int64
	CreatedAt     time.Time
	CompletedAt   time.Time
}

// PlayerByID returns the roster entry for userID, or nil.
func (b *Battle) PlayerByID(userID string) *Player {
	for i := range b.Players {
		if b.Players[i].UserID == userID {
			return &b.Players[i]
		}
	}
	return nil
}

// Full reports whether the roster reached MaxPlayers.
func (b *Battle) Full() bool {
	return len(b.Players) >= b.MaxPlayers
}

// Finished reports whether the question cursor ran past the last question.
func (b *Battle) Finished() bool {
	return b.CurrentIndex >= len(b.Questions)
}

// Answer is one participant's submission for one round. The triple
// (BattleCode, UserID, QuestionIndex) is unique; the score is immutable
// once recorded.
type Answer struct {
	BattleCode    string
	UserID        string
	QuestionIndex int
	Text          string
	Score         int
	CreatedAt     time.Time
}

// RankedAnswer is one entry of the cached top-answer ranking shown on the
// battle summary.
type RankedAnswer struct {
	Username string `json:"username"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
