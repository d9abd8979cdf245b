// Package oracle wraps the AI service calls the battle flow depends on:
// question generation at creation, answer scoring on submit, and the
// best-answer ranking behind the summary. Every call is treated as a black
// box that may fail; callers decide whether a failure is fatal (question
// generation) or degrades to a default (scoring, ranking).
package oracle

import (
	"context"
)

// RankEntry is one recorded answer handed to the ranking call.
type RankEntry struct {
	UserID   string `json:"userId"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type Oracle interface {
	// GenerateQuestions returns the fixed-length question sequence for a new
	// battle. An error here is fatal to battle creation.
	GenerateQuestions(ctx context.Context, topic, difficulty string) ([]string, error)

	// Score rates an answer from 0 to 10. Callers fall back to 0 on error so
	// a failed scoring call never stalls a round.
	Score(ctx context.Context, question, answer string) (int, error)

	// Rank picks the best answers across a battle: at most one per distinct
	// question, at most three total. Nondeterministic and best-effort.
	Rank(ctx context.Context, entries []RankEntry) ([]RankEntry, error)
}
