package chat

import "time"

// A Message is a chat message as held by the feed and exposed to the
// presentation layer. DisplayName, Body and the author avatar are stored
// encrypted; they carry ciphertext until a batch has passed through the
// decryption gateway.
type Message struct {
	ID          string      `json:"id"`
	AuthorID    string      `json:"user_id"`
	DisplayName string      `json:"user_name"`
	Body        string      `json:"text"`
	CreatedAt   time.Time   `json:"created_at"`
	ReplyToID   string      `json:"reply_to_message_id,omitempty"`
	ReplyCount  int         `json:"reply_count"`
	Author      *AuthorInfo `json:"users"`
	Pending     bool        `json:"pending,omitempty"`
}

// AuthorInfo carries the fields joined from the users relation. A nil
// AuthorInfo means the join produced no row; readers must check before use.
type AuthorInfo struct {
	Avatar       string `json:"image"`
	IsPrivileged bool   `json:"is_author"`
}

// A Draft is the payload for a message insert. Display name and body are
// ciphertext; encryption happens before a draft is built.
type Draft struct {
	AuthorID          string
	DisplayNameCipher string
	BodyCipher        string
	ReplyToID         string
}

// A Session identifies the signed-in user. It is supplied by the external
// authentication provider and consumed read-only.
type Session struct {
	UserID       string
	DisplayName  string
	AvatarURL    string
	IsPrivileged bool
}

// EventType classifies a row-level change on the messages relation.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// An Event is a row-level change reported by the store's change feed.
// Update events carry an authoritative reply count only; other fields are
// ignored on apply.
type Event struct {
	Type    EventType
	Message Message
}

// A Navigation is the scroll-and-highlight side effect emitted when a
// mention or a reply parent is clicked. It never mutates the message list.
type Navigation struct {
	MessageID string
	Highlight bool
}
