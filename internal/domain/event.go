package domain

// Event names double as the wire event names delivered to connected clients,
// so they keep the dashed form the UI binds to.
const (
	EventNamePlayerJoined    = "player-joined"
	EventNameBattleStarted   = "battle-started"
	EventNameScoreUpdated    = "score-updated"
	EventNameNextQuestion    = "next-question"
	EventNameBattleCompleted = "battle-completed"
	EventNameTyping          = "typing-event"
	EventNameMemberAdded     = "member-added"
	EventNameMemberRemoved   = "member-removed"
)

// BattleEvent is an event scoped to a single battle's channel.
type BattleEvent interface {
	Name() string
	Battle() string
}

type EventPlayerJoined struct {
	BattleCode string   `json:"-"`
	Players    []Player `json:"players"`
}

func (EventPlayerJoined) Name() string     { return EventNamePlayerJoined }
func (e EventPlayerJoined) Battle() string { return e.BattleCode }

type EventBattleStarted struct {
	BattleCode string `json:"battleCode"`
}

func (EventBattleStarted) Name() string     { return EventNameBattleStarted }
func (e EventBattleStarted) Battle() string { return e.BattleCode }

type EventScoreUpdated struct {
	BattleCode string   `json:"-"`
	Players    []Player `json:"players"`
}

func (EventScoreUpdated) Name() string     { return EventNameScoreUpdated }
func (e EventScoreUpdated) Battle() string { return e.BattleCode }

type EventNextQuestion struct {
	BattleCode   string `json:"-"`
	CurrentIndex int    `json:"currentQuestionIndex"`
	Question     string `json:"question"`
	Status       Status `json:"status"`
}

func (EventNextQuestion) Name() string     { return EventNameNextQuestion }
func (e EventNextQuestion) Battle() string { return e.BattleCode }

type EventBattleCompleted struct {
	BattleCode string `json:"-"`
	Status     Status `json:"status"`
}

func (EventBattleCompleted) Name() string     { return EventNameBattleCompleted }
func (e EventBattleCompleted) Battle() string { return e.BattleCode }

type EventTyping struct {
	BattleCode string `json:"-"`
	UserID     string `json:"userId"`
	Typing     bool   `json:"typing"`
}

func (EventTyping) Name() string     { return EventNameTyping }
func (e EventTyping) Battle() string { return e.BattleCode }

type EventMemberAdded struct {
	BattleCode string `json:"-"`
	UserID     string `json:"userId"`
	UserName   string `json:"name"`
}

func (EventMemberAdded) Name() string     { return EventNameMemberAdded }
func (e EventMemberAdded) Battle() string { return e.BattleCode }

type EventMemberRemoved struct {
	BattleCode string `json:"-"`
	UserID     string `json:"userId"`
	UserName   string `json:"name"`
}

func (EventMemberRemoved) Name() string     { return EventNameMemberRemoved }
func (e EventMemberRemoved) Battle() string { return e.BattleCode }
