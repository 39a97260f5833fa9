package chat

import "regexp"

// A mention is an @ followed by one or two whitespace-separated name
// segments, terminated by any non-matching character.
var mentionRE = regexp.MustCompile(`@([A-Za-z0-9_-]+(?:\s[A-Za-z0-9_-]+)?)`)

// Mentions returns the display names mentioned in text, in order of
// appearance.
func Mentions(text string) []string {
	matches := mentionRE.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m[1]
	}
	return names
}

// FindTarget returns the most recent message authored under displayName
// among the loaded messages.
func (f *Feed) FindTarget(displayName string) (Message, bool) {
	msgs := f.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].DisplayName == displayName {
			return msgs[i], true
		}
	}
	return Message{}, false
}

// JumpToMention resolves a clicked mention and emits a navigation to the
// target message. It reports false when no message from that name is loaded.
func (f *Feed) JumpToMention(displayName string) bool {
	m, ok := f.FindTarget(displayName)
	if !ok {
		return false
	}
	f.emitNavigation(Navigation{MessageID: m.ID, Highlight: true})
	return true
}
