package enums

import "strings"

// Severity classifies a notification for icon/styling purposes.
type Severity string

const (
	SeveritySuccess Severity = "SUCCESS"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
	SeverityUrgent  Severity = "URGENT"
)

var validSeverities = []Severity{
	SeveritySuccess,
	SeverityError,
	SeverityWarning,
	SeverityInfo,
	SeverityUrgent,
}

// IsValid checks whether the given severity matches the canonical enum.
func (s Severity) IsValid() bool {
	for _, candidate := range validSeverities {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSeverity folds raw strings into a Severity. The function is total:
// unrecognized, empty, and mixed-case input coerces to INFO.
func ParseSeverity(value string) Severity {
	folded := Severity(strings.ToUpper(strings.TrimSpace(value)))
	if folded.IsValid() {
		return folded
	}
	return SeverityInfo
}
