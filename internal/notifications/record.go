package notifications

import (
	"time"

	"github.com/locationup/locationup-go/pkg/enums"
)

// DefaultCategory is applied when the upstream payload carries no category.
const DefaultCategory = "GENERAL"

// DefaultContent is the body used when a payload has no usable message text.
const DefaultContent = "You have a new notification."

// Record is the canonical, post-normalization notification shape.
type Record struct {
	ID          string         `json:"id,omitempty"`
	Severity    enums.Severity `json:"severity"`
	Category    string         `json:"category"`
	Title       string         `json:"title,omitempty"`
	Content     string         `json:"content"`
	Timestamp   time.Time      `json:"timestamp"`
	Recipient   string         `json:"recipient"`
	Read        bool           `json:"read"`
	Dismissible bool           `json:"dismissible"`
	ActionURL   string         `json:"actionUrl,omitempty"`
	ActionLabel string         `json:"actionLabel,omitempty"`
	ExpiresAt   *time.Time     `json:"expiresAt,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// IsExpired reports whether the record carries an expiry in the past.
func (r *Record) IsExpired(now time.Time) bool {
	if r.ExpiresAt == nil {
		return false
	}
	return now.After(*r.ExpiresAt)
}
