package chat

// Parent resolves msg's reply target among the loaded messages. ok is false
// when msg is not a reply or when its parent is gone from the loaded set —
// an orphaned reply, which is a valid displayable state, not an error.
func (f *Feed) Parent(msg Message) (Message, bool) {
	if msg.ReplyToID == "" {
		return Message{}, false
	}
	return f.Get(msg.ReplyToID)
}

// ReplyCount returns the store-maintained count verbatim. The count is
// received, never computed here.
func ReplyCount(msg Message) int {
	return msg.ReplyCount
}

// ReplyLabel is the thread caption shown on a reply bubble.
func ReplyLabel(parent, msg Message) string {
	if parent.AuthorID == msg.AuthorID {
		return "Replying to themselves"
	}
	return "Replying to " + parent.DisplayName
}

// JumpToParent emits a navigation to msg's reply parent. It reports false
// for non-replies and orphaned replies.
func (f *Feed) JumpToParent(msg Message) bool {
	parent, ok := f.Parent(msg)
	if !ok {
		return false
	}
	f.emitNavigation(Navigation{MessageID: parent.ID, Highlight: true})
	return true
}
