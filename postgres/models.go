package postgres

import (
	"database/sql"
	"time"

	"github.com/edgeee/chathub/chat"
	"github.com/uptrace/bun"
)

// A message represents a row of the messages relation. Display name and text
// columns hold ciphertext.
type message struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID               string         `bun:"id,pk,type:uuid,default:uuid_generate_v4()"`
	UserID           string         `bun:"user_id,notnull"`
	UserName         string         `bun:"user_name,notnull"`
	MessageText      string         `bun:"text,notnull"`
	CreatedAt        time.Time      `bun:"created_at,nullzero,default:now()"`
	ReplyToMessageID sql.NullString `bun:"reply_to_message_id"`
	ReplyCount       int            `bun:"reply_count,notnull,default:0"`
	User             *user          `bun:"rel:belongs-to,join:user_id=id"`
}

// A user represents a row of the users relation; only the fields joined into
// message reads are mapped. The image column is ciphertext.
type user struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID       string         `bun:"id,pk,type:uuid"`
	Image    sql.NullString `bun:"image"`
	IsAuthor sql.NullBool   `bun:"is_author"`
}

func (m message) ChatMessage() chat.Message {
	out := chat.Message{
		ID:          m.ID,
		AuthorID:    m.UserID,
		DisplayName: m.UserName,
		Body:        m.MessageText,
		CreatedAt:   m.CreatedAt,
		ReplyToID:   m.ReplyToMessageID.String,
		ReplyCount:  m.ReplyCount,
	}
	if m.User != nil {
		out.Author = m.User.AuthorInfo()
	}
	return out
}

func (u user) AuthorInfo() *chat.AuthorInfo {
	return &chat.AuthorInfo{
		Avatar:       u.Image.String,
		IsPrivileged: u.IsAuthor.Bool,
	}
}
