package redis

import (
	"time"

	"github.com/edgeee/chathub/chat"
)

// A message represents a cached message hash. Name, text and avatar fields
// hold ciphertext, exactly as stored.
type message struct {
	ID               string    `redis:"id"`
	UserID           string    `redis:"user_id"`
	UserName         string    `redis:"user_name"`
	Text             string    `redis:"text"`
	CreatedAt        time.Time `redis:"created_at"`
	ReplyToMessageID string    `redis:"reply_to_message_id"`
	ReplyCount       int       `redis:"reply_count"`
	HasAuthor        bool      `redis:"has_author"`
	AuthorImage      string    `redis:"author_image"`
	AuthorPrivileged bool      `redis:"author_privileged"`
}

func fromChat(m chat.Message) *message {
	out := &message{
		ID:               m.ID,
		UserID:           m.AuthorID,
		UserName:         m.DisplayName,
		Text:             m.Body,
		CreatedAt:        m.CreatedAt,
		ReplyToMessageID: m.ReplyToID,
		ReplyCount:       m.ReplyCount,
	}
	if m.Author != nil {
		out.HasAuthor = true
		out.AuthorImage = m.Author.Avatar
		out.AuthorPrivileged = m.Author.IsPrivileged
	}
	return out
}

func (m message) ChatMessage() chat.Message {
	out := chat.Message{
		ID:          m.ID,
		AuthorID:    m.UserID,
		DisplayName: m.UserName,
		Body:        m.Text,
		CreatedAt:   m.CreatedAt,
		ReplyToID:   m.ReplyToMessageID,
		ReplyCount:  m.ReplyCount,
	}
	if m.HasAuthor {
		out.Author = &chat.AuthorInfo{
			Avatar:       m.AuthorImage,
			IsPrivileged: m.AuthorPrivileged,
		}
	}
	return out
}
