package notifications

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/locationup/locationup-go/pkg/enums"
)

// rawPayload models the upstream event shape as best-effort extraction.
// Every field is optional; unknown fields are ignored.
type rawPayload struct {
	ID          string          `json:"id"`
	Severity    string          `json:"severity"`
	Type        string          `json:"type"`
	Category    string          `json:"category"`
	Title       string          `json:"title"`
	Message     string          `json:"message"`
	Content     string          `json:"content"`
	Timestamp   string          `json:"timestamp"`
	Recipient   string          `json:"recipient"`
	Read        *bool           `json:"read"`
	Dismissible *bool           `json:"dismissible"`
	ActionURL   string          `json:"actionUrl"`
	ActionLabel string          `json:"actionLabel"`
	ExpiresAt   string          `json:"expiresAt"`
	Metadata    json.RawMessage `json:"metadata"`
}

// Normalize converts a raw stream frame into a canonical Record. The function
// never fails: non-JSON input yields a synthetic INFO record whose content is
// the raw payload text, so one bad frame cannot kill a subscriber. Records
// arriving without an id get one minted locally so panel operations that key
// on the id still work.
func Normalize(data []byte, recipient string, receivedAt time.Time) Record {
	var raw rawPayload
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{
			ID:          uuid.NewString(),
			Severity:    enums.SeverityInfo,
			Category:    DefaultCategory,
			Content:     string(data),
			Timestamp:   receivedAt,
			Recipient:   recipient,
			Dismissible: true,
		}
	}

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		id = uuid.NewString()
	}

	record := Record{
		ID:          id,
		Severity:    normalizeSeverity(raw),
		Category:    DefaultCategory,
		Title:       raw.Title,
		Content:     normalizeContent(raw),
		Timestamp:   receivedAt,
		Recipient:   recipient,
		Dismissible: true,
		ActionURL:   raw.ActionURL,
		ActionLabel: raw.ActionLabel,
	}

	if category := strings.TrimSpace(raw.Category); category != "" {
		record.Category = category
	}
	if raw.Recipient != "" {
		record.Recipient = raw.Recipient
	}
	if raw.Read != nil {
		record.Read = *raw.Read
	}
	if raw.Dismissible != nil {
		record.Dismissible = *raw.Dismissible
	}
	if ts, err := time.Parse(time.RFC3339, raw.Timestamp); err == nil {
		record.Timestamp = ts
	}
	if expires, err := time.Parse(time.RFC3339, raw.ExpiresAt); err == nil {
		record.ExpiresAt = &expires
	}
	record.Metadata = normalizeMetadata(raw.Metadata)

	return record
}

// normalizeSeverity treats severity and type as synonyms, severity winning
// when both are present.
func normalizeSeverity(raw rawPayload) enums.Severity {
	if strings.TrimSpace(raw.Severity) != "" {
		return enums.ParseSeverity(raw.Severity)
	}
	return enums.ParseSeverity(raw.Type)
}

// normalizeContent tries message, content, then title for the body text.
func normalizeContent(raw rawPayload) string {
	for _, candidate := range []string{raw.Message, raw.Content, raw.Title} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return DefaultContent
}

// normalizeMetadata accepts either a JSON object or a JSON-encoded string
// holding an object. A string that fails to parse is preserved under "value".
func normalizeMetadata(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}

	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err == nil {
		return asMap
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err != nil {
		return nil
	}
	var nested map[string]any
	if err := json.Unmarshal([]byte(asString), &nested); err == nil {
		return nested
	}
	return map[string]any{"value": asString}
}
