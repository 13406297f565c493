package bus

import "testing"

func TestTopicName(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		want      string
	}{
		{
			name:      "simple event type",
			eventType: "order_created",
			want:      "events.v1.order_created",
		},
		{
			name:      "uppercase converted",
			eventType: "ORDER_SHIPPED",
			want:      "events.v1.order_shipped",
		},
		{
			name:      "mixed case converted",
			eventType: "PriceUpdated",
			want:      "events.v1.priceupdated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TopicName(tt.eventType)
			if got != tt.want {
				t.Errorf("TopicName(%q) = %q, want %q", tt.eventType, got, tt.want)
			}
		})
	}
}

func TestParseEventType(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		want  string
	}{
		{
			name:  "valid topic",
			topic: "events.v1.order_created",
			want:  "order_created",
		},
		{
			name:  "invalid topic returns original",
			topic: "other.topic",
			want:  "other.topic",
		},
		{
			name:  "empty event type",
			topic: "events.v1.",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseEventType(tt.topic)
			if got != tt.want {
				t.Errorf("ParseEventType(%q) = %q, want %q", tt.topic, got, tt.want)
			}
		})
	}
}

func TestIsValidTopic(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		want  bool
	}{
		{
			name:  "valid topic",
			topic: "events.v1.order_created",
			want:  true,
		},
		{
			name:  "invalid prefix",
			topic: "other.events.v1.test",
			want:  false,
		},
		{
			name:  "missing event type",
			topic: "events.v1.",
			want:  false,
		},
		{
			name:  "empty string",
			topic: "",
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidTopic(tt.topic)
			if got != tt.want {
				t.Errorf("IsValidTopic(%q) = %v, want %v", tt.topic, got, tt.want)
			}
		})
	}
}
