package memory

import (
	"strings"

	"github.com/voyahq/voya-agent/models"
)

const (
	titleExcerptLen = 30
	summaryTitleLen = 50
	previewLen      = 100
)

// Topics that commonly show up in travel chats. Matching ones are promoted
// into the auto-generated title.
var travelKeywords = []string{
	"tour", "travel", "visit", "rome", "paris", "london", "hotel",
	"flight", "book", "trip", "food", "museum", "walking", "guide",
}

// GenerateTitle derives a short label from the earliest user messages of a
// conversation. It is a pure function of its inputs so repeated calls over
// the same content produce the same title.
func GenerateTitle(sessionID string, userMessages []models.Message) string {
	if len(userMessages) == 0 {
		if len(sessionID) > 8 {
			sessionID = sessionID[:8]
		}
		return "Conversation " + sessionID
	}
	if len(userMessages) > 3 {
		userMessages = userMessages[:3]
	}

	parts := make([]string, 0, len(userMessages))
	for _, msg := range userMessages {
		parts = append(parts, msg.Content)
	}
	combined := strings.Join(parts, " ")
	lower := strings.ToLower(combined)

	var topics []string
	for _, kw := range travelKeywords {
		if strings.Contains(lower, kw) {
			topics = append(topics, capitalize(kw))
			if len(topics) == 2 {
				break
			}
		}
	}
	if len(topics) > 0 {
		return strings.Join(topics, ", ") + " Discussion"
	}
	return excerpt(combined, titleExcerptLen)
}

// excerpt truncates to at most max runes, appending an ellipsis when content
// was cut.
func excerpt(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max]) + "..."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
