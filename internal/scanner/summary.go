package scanner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adamsch0100/leadsynergy-sub002/internal/conversation"
)

// qualificationTopics are the questions the conversation flow tries to
// answer. The summary separates settled topics from open ones so the message
// generator never re-asks what the contact already told us.
var qualificationTopics = []string{"timeline", "budget", "area", "financing", "motivation"}

// BuildSummary renders a short human-readable digest of where a
// conversation stands: state, what is answered, what is still open, and any
// objections raised.
func BuildSummary(conv conversation.Conversation) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("state: %s", conv.State))
	if conv.LeadScore > 0 {
		parts = append(parts, fmt.Sprintf("lead score: %d", conv.LeadScore))
	}

	answered := make([]string, 0, len(conv.QualificationData))
	open := make([]string, 0, len(qualificationTopics))
	for _, topic := range qualificationTopics {
		value, ok := conv.QualificationData[topic]
		if ok && value != nil && fmt.Sprint(value) != "" {
			answered = append(answered, fmt.Sprintf("%s=%v", topic, value))
		} else {
			open = append(open, topic)
		}
	}
	// Include answered topics outside the standard list too.
	for key, value := range conv.QualificationData {
		if !containsTopic(qualificationTopics, key) && value != nil {
			answered = append(answered, fmt.Sprintf("%s=%v", key, value))
		}
	}
	sort.Strings(answered)
	if len(answered) > 0 {
		parts = append(parts, "answered: "+strings.Join(answered, ", "))
	}
	if len(open) > 0 {
		parts = append(parts, "open: "+strings.Join(open, ", "))
	}
	if len(conv.ObjectionsRaised) > 0 {
		parts = append(parts, "objections: "+strings.Join(conv.ObjectionsRaised, ", "))
	}
	return strings.Join(parts, "; ")
}

func containsTopic(topics []string, topic string) bool {
	for _, candidate := range topics {
		if candidate == topic {
			return true
		}
	}
	return false
}
