// Package postgres provides message storage in PostgreSQL and the row-level
// change feed over LISTEN/NOTIFY. Reply counts are maintained by triggers on
// the store side (see schema.sql); this package only reads them.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgeee/chathub/chat"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// notifyChannel is the NOTIFY channel the row-change trigger publishes to.
const notifyChannel = "chat_messages"

// Store provides storage in PostgreSQL. It implements chat.Store.
type Store struct {
	bun *bun.DB
	log *slog.Logger
}

// Connect connects to the database and pings it to ensure the connection is
// working.
func Connect(ctx context.Context, connStr string, log *slog.Logger) (*Store, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		bun: db,
		log: log,
	}, nil
}

// FetchAll returns every message joined with its author fields, ordered by
// created_at ascending.
func (s *Store) FetchAll(ctx context.Context) ([]chat.Message, error) {
	var msgs []message
	err := s.bun.NewSelect().
		Model(&msgs).
		Relation("User").
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	out := make([]chat.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.ChatMessage()
	}
	return out, nil
}

// FetchRecent returns the newest limit messages, reordered ascending so
// callers render them the same way as a full fetch.
func (s *Store) FetchRecent(ctx context.Context, limit int) ([]chat.Message, error) {
	var msgs []message
	err := s.bun.NewSelect().
		Model(&msgs).
		Relation("User").
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	out := make([]chat.Message, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = m.ChatMessage()
	}
	return out, nil
}

// Insert inserts a message. The returned message holds the server-assigned
// id, timestamp and defaulted reply count.
func (s *Store) Insert(ctx context.Context, draft chat.Draft) (chat.Message, error) {
	m := &message{
		UserID:      draft.AuthorID,
		UserName:    draft.DisplayNameCipher,
		MessageText: draft.BodyCipher,
	}
	if draft.ReplyToID != "" {
		m.ReplyToMessageID = sql.NullString{String: draft.ReplyToID, Valid: true}
	}
	if _, err := s.bun.NewInsert().Model(m).Exec(ctx); err != nil {
		return chat.Message{}, fmt.Errorf("insert: %w", err)
	}
	return m.ChatMessage(), nil
}

// Delete removes a message by id. Row-level security on the relation is the
// authoritative privilege check; a decrement of the parent's reply count
// happens by trigger.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.bun.NewDelete().
		Model((*message)(nil)).
		Where("id = ?", id).
		Exec(ctx); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// notification is the JSON payload published by the row-change trigger.
type notification struct {
	Op  string `json:"op"`
	Row struct {
		ID               string    `json:"id"`
		UserID           string    `json:"user_id"`
		UserName         string    `json:"user_name"`
		Text             string    `json:"text"`
		CreatedAt        time.Time `json:"created_at"`
		ReplyToMessageID *string   `json:"reply_to_message_id"`
		ReplyCount       int       `json:"reply_count"`
	} `json:"row"`
}

// Subscribe listens for row-level changes on the messages relation and calls
// handler once per notification. Delivery is at-least-once: the driver
// reconnects and re-listens on connection loss, which may redeliver events
// for rows the caller has already seen. Insert events are enriched with the
// author's joined fields, like the initial fetch. The returned function
// releases the listening connection; handler is never called after it
// returns.
func (s *Store) Subscribe(ctx context.Context, handler func(chat.Event)) (func(), error) {
	ln := pgdriver.NewListener(s.bun)
	if err := ln.Listen(ctx, notifyChannel); err != nil {
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}
	go func() {
		for notif := range ln.Channel() {
			ev, err := s.decodeEvent(ctx, notif.Payload)
			if err != nil {
				s.log.Warn("Could not decode change notification", "error", err.Error())
				continue
			}
			handler(ev)
		}
	}()
	return func() {
		if err := ln.Close(); err != nil {
			s.log.Warn("Could not close listener", "error", err.Error())
		}
	}, nil
}

func (s *Store) decodeEvent(ctx context.Context, payload string) (chat.Event, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return chat.Event{}, fmt.Errorf("unmarshal payload: %w", err)
	}

	msg := chat.Message{
		ID:          n.Row.ID,
		AuthorID:    n.Row.UserID,
		DisplayName: n.Row.UserName,
		Body:        n.Row.Text,
		CreatedAt:   n.Row.CreatedAt,
		ReplyCount:  n.Row.ReplyCount,
	}
	if n.Row.ReplyToMessageID != nil {
		msg.ReplyToID = *n.Row.ReplyToMessageID
	}

	var typ chat.EventType
	switch n.Op {
	case "INSERT":
		typ = chat.EventInsert
		msg.Author = s.lookupAuthor(ctx, msg.AuthorID)
	case "UPDATE":
		typ = chat.EventUpdate
	case "DELETE":
		typ = chat.EventDelete
	default:
		return chat.Event{}, fmt.Errorf("unknown op %q", n.Op)
	}
	return chat.Event{Type: typ, Message: msg}, nil
}

// lookupAuthor fetches the joined user fields for a freshly inserted row.
// A missing row yields a nil AuthorInfo, which readers handle.
func (s *Store) lookupAuthor(ctx context.Context, userID string) *chat.AuthorInfo {
	var u user
	err := s.bun.NewSelect().
		Model(&u).
		Where("id = ?", userID).
		Scan(ctx)
	if err != nil {
		s.log.Warn("Could not load author for insert event", "user_id", userID, "error", err.Error())
		return nil
	}
	return u.AuthorInfo()
}
