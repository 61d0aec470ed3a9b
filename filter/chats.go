// Package filter narrows a delivered chat list by a search query.
package filter

import (
	"strings"

	"github.com/klipach/courier/chat"
)

// Chats returns the chats whose full name or last message contains query, ignoring
// case. A blank query returns chats unchanged.
func Chats(chats []chat.Chat, query string) []chat.Chat {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return chats
	}
	matched := make([]chat.Chat, 0, len(chats))
	for _, c := range chats {
		if strings.Contains(strings.ToLower(c.FullName()), q) || strings.Contains(strings.ToLower(c.Message), q) {
			matched = append(matched, c)
		}
	}
	return matched
}
