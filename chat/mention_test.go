package chat

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMentions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "None", text: "no mentions here", want: nil},
		{name: "Single", text: "hey @Alice!", want: []string{"Alice"}},
		{name: "FullName", text: "thanks @Alice Smith, great point", want: []string{"Alice Smith"}},
		{name: "Multiple", text: "@Alice and @Bob should read this", want: []string{"Alice and", "Bob should"}},
		{name: "TerminatedByPunctuation", text: "ping @Bob, are you there?", want: []string{"Bob"}},
		{name: "UnderscoreAndDigits", text: "cc @user_42", want: []string{"user_42"}},
		{name: "BareAt", text: "just an @ sign", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Mentions(tt.text)); diff != "" {
				t.Errorf("Mentions(%q) (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestFeed_FindTarget(t *testing.T) {
	store := &teststore{
		fetchAll: func(t *testing.T) ([]Message, error) {
			return []Message{
				encMsg("m1", "alice", "Alice", "first", at(1)),
				encMsg("m2", "bob", "Bob", "between", at(2)),
				encMsg("m3", "alice", "Alice", "latest", at(3)),
			}, nil
		},
	}
	f := newTestFeed(t, store, nil)
	start(t, f)
	settle(t, f)

	got, ok := f.FindTarget("Alice")
	if !ok {
		t.Fatal("FindTarget(Alice) not found")
	}
	if got.ID != "m3" {
		t.Errorf("FindTarget(Alice) = %s, want the most recent m3", got.ID)
	}

	if _, ok := f.FindTarget("Carol"); ok {
		t.Error("FindTarget(Carol) found a message for an unknown name")
	}
}

func TestFeed_JumpToMention(t *testing.T) {
	store := &teststore{
		fetchAll: func(t *testing.T) ([]Message, error) {
			return []Message{encMsg("m1", "alice", "Alice", "hi", at(1))}, nil
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

	if !f.JumpToMention("Alice") {
		t.Fatal("JumpToMention(Alice) = false")
	}
	want := []Navigation{{MessageID: "m1", Highlight: true}}
	if diff := cmp.Diff(want, navs); diff != "" {
		t.Errorf("Navigation (-want +got):\n%s", diff)
	}

	if f.JumpToMention("Nobody") {
		t.Error("JumpToMention(Nobody) = true")
	}
	if len(navs) != 1 {
		t.Errorf("unresolved mention emitted a navigation: %v", navs)
	}
}

// Navigation is a side effect only: jumping must never change the list.
func TestFeed_JumpDoesNotMutate(t *testing.T) {
	store := &teststore{
		fetchAll: func(t *testing.T) ([]Message, error) {
			return []Message{encMsg("m1", "alice", "Alice", "hi", at(1))}, nil
		},
	}
	f := newTestFeed(t, store, nil)
	start(t, f)
	settle(t, f)

	before := f.Messages()
	f.JumpToMention("Alice")
	if diff := cmp.Diff(before, f.Messages()); diff != "" {
		t.Errorf("list changed (-want +got):\n%s", diff)
	}
}
