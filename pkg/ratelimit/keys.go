package ratelimit

import "time"

// Key naming for rate-limit state. All keys are prefixed with
// "gramflow:ratelimit:" to avoid collisions with other tenants of the
// store.

const keyPrefix = "gramflow:ratelimit:"

// Expirations keep the store self-pruning: the daily hash survives long
// enough to cover clock skew across the day boundary, the hourly set only
// needs to reach into the previous hour, and the last-action scalar is
// irrelevant after a day of silence.
const (
	dailyExpiry      = 48 * time.Hour
	hourlyExpiry     = 2 * time.Hour
	lastActionExpiry = 24 * time.Hour
)

// dailyKey returns the counter hash for a workflow's calendar day:
// gramflow:ratelimit:{workflowID}:daily:{2006-01-02}
func dailyKey(workflowID string, t time.Time) string {
	return keyPrefix + workflowID + ":daily:" + t.Format("2006-01-02")
}

// hourlyKey returns the sorted set for a workflow's hour of day:
// gramflow:ratelimit:{workflowID}:hourly:{2006-01-02-15}
func hourlyKey(workflowID string, t time.Time) string {
	return keyPrefix + workflowID + ":hourly:" + t.Format("2006-01-02-15")
}

// lastActionKey returns the scalar holding a workflow's most recent
// action timestamp: gramflow:ratelimit:{workflowID}:last_action
func lastActionKey(workflowID string) string {
	return keyPrefix + workflowID + ":last_action"
}

// totalField is the hash field aggregating all action types.
const totalField = "total"
