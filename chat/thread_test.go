package chat

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func threadFixture(t *testing.T) (*Feed, *teststore) {
	t.Helper()
	store := &teststore{
		fetchAll: func(t *testing.T) ([]Message, error) {
			q := encMsg("m1", "alice", "Alice", "Q1", at(1))
			q.ReplyCount = 2
			a := encMsg("m2", "bob", "Bob", "A1", at(2))
			a.ReplyToID = "m1"
			self := encMsg("m3", "alice", "Alice", "answering my own question", at(3))
			self.ReplyToID = "m1"
			orphan := encMsg("m4", "bob", "Bob", "reply to a deleted message", at(4))
			orphan.ReplyToID = "gone"
			return []Message{q, a, self, orphan}, nil
		},
	}
	f := newTestFeed(t, store, nil)
	start(t, f)
	settle(t, f)
	return f, store
}

func TestFeed_Parent(t *testing.T) {
	f, _ := threadFixture(t)

	parent, ok := f.Parent(mustGet(t, f, "m2"))
	if !ok {
		t.Fatal("Parent(m2) not resolved")
	}
	if parent.ID != "m1" {
		t.Errorf("Parent(m2) = %s, want m1", parent.ID)
	}

	if _, ok := f.Parent(mustGet(t, f, "m1")); ok {
		t.Error("Parent(m1) resolved for a non-reply")
	}

	// A reply whose parent is no longer loaded is displayable, not an error.
	if _, ok := f.Parent(mustGet(t, f, "m4")); ok {
		t.Error("Parent(m4) resolved for an orphaned reply")
	}
}

func TestReplyCount(t *testing.T) {
	f, _ := threadFixture(t)
	if got := ReplyCount(mustGet(t, f, "m1")); got != 2 {
		t.Errorf("ReplyCount(m1) = %d, want the store-maintained 2", got)
	}
}

func TestReplyLabel(t *testing.T) {
	f, _ := threadFixture(t)
	parent := mustGet(t, f, "m1")

	if got := ReplyLabel(parent, mustGet(t, f, "m2")); got != "Replying to Alice" {
		t.Errorf("ReplyLabel = %q", got)
	}
	if got := ReplyLabel(parent, mustGet(t, f, "m3")); got != "Replying to themselves" {
		t.Errorf("ReplyLabel for self-reply = %q", got)
	}
}

func TestFeed_JumpToParent(t *testing.T) {
	store := &teststore{
		fetchAll: func(t *testing.T) ([]Message, error) {
			q := encMsg("m1", "alice", "Alice", "Q1", at(1))
			a := encMsg("m2", "bob", "Bob", "A1", at(2))
			a.ReplyToID = "m1"
			orphan := encMsg("m3", "bob", "Bob", "??", at(3))
			orphan.ReplyToID = "gone"
			return []Message{q, a, orphan}, nil
		},
	}
	store.t = t

	var navs []Navigation
	f := NewFeed(Options{
		Store:    store,
		Codec:    testcodec{},
		Session:  func() *Session { return nil },
		Navigate: func(n Navigation) { navs = append(navs, n) },
	})
	t.Cleanup(f.Close)
	start(t, f)
	settle(t, f)

	if !f.JumpToParent(mustGet(t, f, "m2")) {
		t.Fatal("JumpToParent(m2) = false")
	}
	want := []Navigation{{MessageID: "m1", Highlight: true}}
	if diff := cmp.Diff(want, navs); diff != "" {
		t.Errorf("Navigation (-want +got):\n%s", diff)
	}

	if f.JumpToParent(mustGet(t, f, "m3")) {
		t.Error("JumpToParent on an orphaned reply = true")
	}
}
