package chat

import (
	"context"
	"errors"
	"testing"
)

func TestComposer_Send(t *testing.T) {
	sess := &Session{UserID: "alice", DisplayName: "Alice"}
	var gotDraft Draft
	store := &teststore{
		insert: func(t *testing.T, draft Draft) (Message, error) {
			gotDraft = draft
			return Message{ID: "srv-1", AuthorID: draft.AuthorID, CreatedAt: at(1)}, nil
		},
	}
	f := newTestFeed(t, store, sess)
	start(t, f)
	settle(t, f)

	c := NewComposer(f)
	parent := Message{ID: "m0"}
	c.SetReplyTarget(&parent)
	c.SetDraft("replying to you")

	if err := c.Send(context.Background()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotDraft.ReplyToID != "m0" {
		t.Errorf("ReplyToID = %q, want m0", gotDraft.ReplyToID)
	}
	if c.Draft() != "" {
		t.Errorf("Draft() = %q after send, want cleared", c.Draft())
	}
	if c.ReplyTarget() != nil {
		t.Error("ReplyTarget() still set after send")
	}
}

func TestComposer_BlockedSend(t *testing.T) {
	store := &teststore{} // any store call fails the test
	f := newTestFeed(t, store, &Session{UserID: "alice", DisplayName: "Alice"})
	start(t, f)
	settle(t, f)

	c := NewComposer(f)
	c.SetDraft("   ")
	if err := c.Send(context.Background()); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("Send() error = %v, want ErrEmptyMessage", err)
	}
}

func TestComposer_KeepsStateOnFailure(t *testing.T) {
	store := &teststore{
		insert: func(t *testing.T, draft Draft) (Message, error) {
			return Message{}, errors.New("something went wrong")
		},
	}
	f := newTestFeed(t, store, &Session{UserID: "alice", DisplayName: "Alice"})
	start(t, f)
	settle(t, f)

	c := NewComposer(f)
	c.SetDraft("do not lose me")
	if err := c.Send(context.Background()); err == nil {
		t.Fatal("Send succeeded, want error")
	}
	if c.Draft() != "do not lose me" {
		t.Errorf("Draft() = %q, failed send must keep it", c.Draft())
	}
}
