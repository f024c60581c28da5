package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Conversation is a stored exchange as returned by the backend's history endpoint. Messages and
// Responses are parallel arrays: Responses[i] answers Messages[i], and the most recent question may be
// left unanswered.
type Conversation struct {
	ID        ConversationID `json:"id"`
	ModelName string         `json:"modelName"`
	Model     string         `json:"model,omitempty"`
	LocalData LocalTime      `json:"localData"`
	Messages  []string       `json:"messages"`
	Responses []string       `json:"responses"`
}

// ConversationID identifies a stored conversation. The backend may send it as a JSON string or number;
// either way it is kept in its textual form.
type ConversationID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ConversationID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("failed to decode conversation id: %w", err)
		}
		*id = ConversationID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("failed to decode conversation id: %w", err)
	}
	*id = ConversationID(n.String())
	return nil
}

// Label returns the model label of the conversation, preferring ModelName over the legacy Model field.
func (c Conversation) Label() string {
	if c.ModelName != "" {
		return c.ModelName
	}
	return c.Model
}

// FirstQuestion returns the question that opened the conversation, or an empty string.
func (c Conversation) FirstQuestion() string {
	if len(c.Messages) == 0 {
		return ""
	}
	return c.Messages[0]
}

// ConversationPage is one page of conversation history, newest first.
type ConversationPage struct {
	Content       []Conversation `json:"content"`
	TotalPages    int            `json:"totalPages"`
	TotalElements int            `json:"totalElements"`
	Number        int            `json:"number"`
	Size          int            `json:"size"`
}

// Health is the backend status report.
type Health struct {
	Status string            `json:"status"`
	Models map[string]string `json:"models"`
}

// Healthy reports whether the backend declares itself up.
func (h Health) Healthy() bool {
	return h.Status == "UP"
}

// ModelAvailable reports whether a per-model status string signals availability.
func ModelAvailable(status string) bool {
	return strings.Contains(status, "✅")
}

// LocalTime is a timestamp that may be serialized without a zone offset, as Java's LocalDateTime is.
// Zone-less values are interpreted in the local time zone.
type LocalTime struct {
	time.Time
}

var localTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *LocalTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("failed to decode timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range localTimeLayouts {
		parsed, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unsupported timestamp format: %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t LocalTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}
