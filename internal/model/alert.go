package model

import (
	"fmt"
	"time"
)

// Severity represents the severity level of an alert
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Severities lists all defined severity levels in descending order
var Severities = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
}

// Valid reports whether the severity is one of the defined levels
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// ParseSeverity parses a severity level from its string form
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if !sev.Valid() {
		return "", fmt.Errorf("unknown severity: %q", s)
	}
	return sev, nil
}

// AlertDraft is a candidate alert submitted by a service monitor. Drafts
// carry no timestamp or correlation id; both are assigned by the queue at
// acceptance time.
type AlertDraft struct {
	Service     string            `json:"service"`
	Severity    Severity          `json:"severity"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Context     map[string]string `json:"context,omitempty"`
}

// Alert is an accepted alert awaiting or having received notification
type Alert struct {
	CorrelationID string            `json:"correlation_id"`
	Timestamp     time.Time         `json:"timestamp"`
	Service       string            `json:"service"`
	Severity      Severity          `json:"severity"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Context       map[string]string `json:"context,omitempty"`
}

// DeliveryResult reports the outcome of a notification attempt
type DeliveryResult struct {
	Delivered bool   `json:"delivered"`
	Reason    string `json:"reason,omitempty"`
}
