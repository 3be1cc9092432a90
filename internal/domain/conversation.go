package domain

import "time"

// Session represents one ongoing conversation between a user and the
// assistant. A session always belongs to a user; a session without an
// owner is invalid.
type Session struct {
	ID             SessionID
	UserID         UserID
	Status         SessionStatus
	StartedAt      time.Time
	LastActivityAt time.Time
}

// Turn is a single message inside a session. User utterance and system
// reply are always appended together as a pair.
type Turn struct {
	ID        TurnID
	SessionID SessionID
	Sender    Sender
	Text      string
	Category  Category
	CreatedAt time.Time
}

// KeyAnswer records a question together with the (truncated) answer it
// received, so later prompts can stay consistent with earlier replies.
type KeyAnswer struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Category  Category  `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationContext accumulates what a session has been about:
// topics, detected infractions, statute articles the assistant cited,
// and the most salient Q/A pairs. All lists are bounded; the context
// manager trims them after every update.
type ConversationContext struct {
	SessionID           SessionID
	Topics              []string
	PrimaryTopic        Category
	ViolationsMentioned []string
	StatuteReferences   []string
	SalientQuestions    []string
	KeyAnswers          []KeyAnswer
	UpdatedAt           time.Time
}

// Source describes where a retrieved passage came from, with a short
// excerpt suitable for citation display.
type Source struct {
	Excerpt string `json:"extracto"`
	Page    int    `json:"pagina"`
	File    string `json:"archivo"`
}

// Passage is one retrieval hit: the full (whitespace-normalized) text
// handed to the prompt composer plus its source descriptor.
type Passage struct {
	Text   string
	Source Source
}
