// Package view is the per-participant reconciliation of a live battle: it
// merges the participant's own confirmed actions, broadcast events, and
// polling snapshots into one local state. When the sources disagree the
// precedence is own action > broadcast > poll. Applying any broadcast twice
// yields the same state as applying it once.
package view

import (
	"encoding/json"
	"sync"

	"github.com/AmanSingh336699/ai-interview-battle/internal/broadcast"
	"github.com/AmanSingh336699/ai-interview-battle/internal/domain"
)

// Peer is one roster entry as the client sees it, with the ephemeral typing
// flag that is never persisted server-side.
type Peer struct {
	UserID   string
	Name     string
	Score    int
	IsTyping bool
}

// State is a point-in-time snapshot of the reconciled view.
type State struct {
	Question     string
	CurrentIndex int
	Status       domain.Status
	Players      []Peer
	HasAnswered  bool
}

// View reconciles one participant's battle state. Safe for concurrent use:
// the subscription goroutine applies notifications while the UI reads
// snapshots.
type View struct {
	mu     sync.Mutex
	userID string
	st     State

	// confirmedIndex is the round the participant's own submission was
	// confirmed for. It outranks any later poll claiming otherwise.
	confirmedIndex int
}

func New(userID string) *View {
	return &View{
		userID:         userID,
		confirmedIndex: -1,
	}
}

// Snapshot returns a copy of the current state.
func (v *View) Snapshot() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	st := v.st
	st.Players = append([]Peer(nil), v.st.Players...)
	return st
}

// ConfirmAnswered records the direct confirmation of the participant's own
// submission for the current round. This is the highest-precedence source.
func (v *View) ConfirmAnswered() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.st.HasAnswered = true
	v.confirmedIndex = v.st.CurrentIndex
}

// SyncFromPoll applies a polled snapshot. Used on initial mount and
// reconnect; it never downgrades an own-action confirmation for the same
// round.
func (v *View) SyncFromPoll(question string, index int, status domain.Status, players []domain.Player, hasAnswered bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.st.Question = question
	v.st.CurrentIndex = index
	v.st.Status = status
	v.mergePlayers(players)

	if !hasAnswered && v.confirmedIndex == index {
		return
	}
	v.st.HasAnswered = hasAnswered
}

// ApplyNotification folds one broadcast into the view. Unknown events and
// duplicate deliveries are no-ops.
func (v *View) ApplyNotification(n broadcast.Notification) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch n.Event {
	case domain.EventNamePlayerJoined, domain.EventNameScoreUpdated:
		var data struct {
			Players []domain.Player `json:"players"`
		}
		if json.Unmarshal(n.Data, &data) != nil {
			return
		}
		v.mergePlayers(data.Players)

	case domain.EventNameBattleStarted:
		if v.st.Status == "" || v.st.Status == domain.StatusWaiting {
			v.st.Status = domain.StatusOngoing
		}

	case domain.EventNameNextQuestion:
		var data struct {
			CurrentIndex int           `json:"currentQuestionIndex"`
			Question     string        `json:"question"`
			Status       domain.Status `json:"status"`
		}
		if json.Unmarshal(n.Data, &data) != nil {
			return
		}
		// Stale or duplicate round advances are no-ops; the cursor only
		// moves forward.
		if data.CurrentIndex <= v.st.CurrentIndex {
			return
		}
		v.st.CurrentIndex = data.CurrentIndex
		v.st.Question = data.Question
		v.st.Status = data.Status
		v.st.HasAnswered = v.confirmedIndex == data.CurrentIndex
		for i := range v.st.Players {
			v.st.Players[i].IsTyping = false
		}

	case domain.EventNameBattleCompleted:
		v.st.Status = domain.StatusCompleted

	case domain.EventNameTyping:
		var data struct {
			UserID string `json:"userId"`
			Typing bool   `json:"typing"`
		}
		if json.Unmarshal(n.Data, &data) != nil {
			return
		}
		// Own typing echoes are ignored.
		if data.UserID == v.userID {
			return
		}
		for i := range v.st.Players {
			if v.st.Players[i].UserID == data.UserID {
				v.st.Players[i].IsTyping = data.Typing
			}
		}

	case domain.EventNameMemberAdded:
		var data struct {
			UserID string `json:"userId"`
			Name   string `json:"name"`
		}
		if json.Unmarshal(n.Data, &data) != nil {
			return
		}
		for _, p := range v.st.Players {
			if p.UserID == data.UserID {
				return
			}
		}
		v.st.Players = append(v.st.Players, Peer{UserID: data.UserID, Name: data.Name})

	case domain.EventNameMemberRemoved:
		var data struct {
			UserID string `json:"userId"`
		}
		if json.Unmarshal(n.Data, &data) != nil {
			return
		}
		players := v.st.Players[:0]
		for _, p := range v.st.Players {
			if p.UserID != data.UserID {
				players = append(players, p)
			}
		}
		v.st.Players = players
	}
}

// mergePlayers replaces the roster while preserving known typing flags,
// which only exist client-side.
func (v *View) mergePlayers(players []domain.Player) {
	typing := make(map[string]bool, len(v.st.Players))
	for _, p := range v.st.Players {
		typing[p.UserID] = p.IsTyping
	}

	merged := make([]Peer, 0, len(players))
	for _, p := range players {
		merged = append(merged, Peer{
			UserID:   p.UserID,
			Name:     p.Name,
			Score:    p.Score,
			IsTyping: typing[p.UserID],
		})
	}
	v.st.Players = merged
}
