package chat

import (
	"context"
	"strings"
	"sync"
)

// A Composer tracks the input draft and the currently targeted reply parent.
// It lives outside the feed's apply path and only consumes its output.
type Composer struct {
	feed *Feed

	mu      sync.Mutex
	draft   string
	replyTo *Message
}

// NewComposer builds a Composer sending through feed.
func NewComposer(feed *Feed) *Composer {
	return &Composer{feed: feed}
}

// SetDraft replaces the input text.
func (c *Composer) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	c.mu.Unlock()
}

// Draft returns the current input text.
func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// SetReplyTarget targets msg for the next send, or clears the target when
// msg is nil.
func (c *Composer) SetReplyTarget(msg *Message) {
	c.mu.Lock()
	c.replyTo = msg
	c.mu.Unlock()
}

// ReplyTarget returns the targeted reply parent, nil when none.
func (c *Composer) ReplyTarget() *Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replyTo
}

// Send submits the draft, threading it under the reply target if one is
// set. A blank draft blocks the send with ErrEmptyMessage before any
// round-trip. Draft and target are cleared on success only.
func (c *Composer) Send(ctx context.Context) error {
	c.mu.Lock()
	text := strings.TrimSpace(c.draft)
	replyToID := ""
	if c.replyTo != nil {
		replyToID = c.replyTo.ID
	}
	c.mu.Unlock()

	if text == "" {
		return ErrEmptyMessage
	}
	if err := c.feed.Send(ctx, text, replyToID); err != nil {
		return err
	}

	c.mu.Lock()
	c.draft = ""
	c.replyTo = nil
	c.mu.Unlock()
	return nil
}
