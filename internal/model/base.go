package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns a short upper-case identifier with the given prefix,
// e.g. "TRF-3F9A1C2B".
func NewID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + strings.ToUpper(raw[:8])
}

// Pagination represents common pagination parameters
type Pagination struct {
	Limit  int `json:"limit" form:"limit"`
	Offset int `json:"offset" form:"offset"`
}

// TimeRange bounds a query; zero values are open ends.
type TimeRange struct {
	From time.Time `json:"from" form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To   time.Time `json:"to" form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// Contains reports whether t falls inside the range (inclusive).
func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// JSONMap represents a generic JSON object
type JSONMap map[string]interface{}

func timePtr(t time.Time) *time.Time {
	return &t
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return timePtr(*t)
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
