package bus

import (
	"fmt"
	"strings"
)

const (
	// topicPrefix is the standard prefix for all event topics.
	topicPrefix = "events.v1"
)

// TopicName generates a topic name following the standard naming convention.
// The event type should be in snake_case (e.g., "order_created").
// Returns a topic name in the format "events.v1.{event_type}".
func TopicName(eventType string) string {
	eventType = strings.ToLower(eventType)
	return fmt.Sprintf("%s.%s", topicPrefix, eventType)
}

// ParseEventType extracts the event type from a topic name.
// Returns the original topic when it does not match the expected format.
func ParseEventType(topic string) string {
	prefix := topicPrefix + "."
	if strings.HasPrefix(topic, prefix) {
		return strings.TrimPrefix(topic, prefix)
	}
	return topic
}

// IsValidTopic checks if a topic name follows the standard naming convention.
func IsValidTopic(topic string) bool {
	prefix := topicPrefix + "."
	return strings.HasPrefix(topic, prefix) && len(topic) > len(prefix)
}
