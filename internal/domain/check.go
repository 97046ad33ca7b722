package domain

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Check is one test of a resource's availability.
type Check struct {
	ID           string        `json:"id"`
	Resource     ResourceKey   `json:"resource"`
	CheckedAt    time.Time     `json:"checked_at"`
	Success      bool          `json:"success"`
	ResponseTime time.Duration `json:"response_time"`
	Message      string        `json:"message,omitempty"`
}

// NewCheck stamps a check with a fresh id.
func NewCheck(key ResourceKey, success bool, rt time.Duration, msg string, at time.Time) Check {
	return Check{
		ID:           uuid.NewString(),
		Resource:     key,
		CheckedAt:    at,
		Success:      success,
		ResponseTime: rt,
		Message:      msg,
	}
}

// CheckStats is derived from the full check history of a resource.
type CheckStats struct {
	Count           int           `json:"count"`
	FirstCheck      time.Time     `json:"first_check,omitempty"`
	LastCheck       time.Time     `json:"last_check,omitempty"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	MinResponseTime time.Duration `json:"min_response_time"`
	MaxResponseTime time.Duration `json:"max_response_time"`
	LastResponse    time.Duration `json:"last_response_time"`
	LastSuccess     bool          `json:"last_success"`
	LastMessage     string        `json:"last_message,omitempty"`

	// Reliability is the success percentage. HasReliability is false when
	// there are no checks at all.
	Reliability    float64 `json:"reliability"`
	HasReliability bool    `json:"has_reliability"`
}

// Stats computes CheckStats. The input order does not matter.
func Stats(checks []Check) CheckStats {
	var st CheckStats
	if len(checks) == 0 {
		return st
	}

	sorted := sortedChecks(checks)
	first, last := sorted[0], sorted[len(sorted)-1]

	st.Count = len(sorted)
	st.FirstCheck = first.CheckedAt
	st.LastCheck = last.CheckedAt
	st.LastResponse = last.ResponseTime
	st.LastSuccess = last.Success
	st.LastMessage = last.Message
	st.MinResponseTime = time.Duration(math.MaxInt64)

	var total time.Duration
	for _, c := range sorted {
		total += c.ResponseTime
		st.MinResponseTime = min(st.MinResponseTime, c.ResponseTime)
		st.MaxResponseTime = max(st.MaxResponseTime, c.ResponseTime)
	}
	st.AvgResponseTime = total / time.Duration(len(sorted))
	st.Reliability, st.HasReliability = Reliability(sorted)
	return st
}

// Reliability returns 100 * successes / total. ok is false for an empty history.
func Reliability(checks []Check) (pct float64, ok bool) {
	if len(checks) == 0 {
		return 0, false
	}
	var success int
	for _, c := range checks {
		if c.Success {
			success++
		}
	}
	return 100 * float64(success) / float64(len(checks)), true
}

// RecentReliability is Reliability over the latest window checks.
func RecentReliability(checks []Check, window int) (float64, bool) {
	if window <= 0 || len(checks) <= window {
		return Reliability(checks)
	}
	sorted := sortedChecks(checks)
	return Reliability(sorted[len(sorted)-window:])
}

func sortedChecks(checks []Check) []Check {
	out := make([]Check, len(checks))
	copy(out, checks)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CheckedAt.Before(out[j].CheckedAt)
	})
	return out
}
