package models

import "time"

// ActionType is the category of an outbound effect subject to rate limiting.
type ActionType string

const (
	ActionTypeCommentReply ActionType = "comment_reply"
	ActionTypeDMSend       ActionType = "dm_send"
)

// RateLimitConfig bounds how often a single workflow may perform outbound
// actions. Limits are per workflow; there is no cross-workflow budget.
type RateLimitConfig struct {
	MaxActionsPerDay      int  `json:"max_actions_per_day"  validate:"gte=0"`
	MaxActionsPerHour     int  `json:"max_actions_per_hour" validate:"gte=0"`
	MinDelaySeconds       int  `json:"min_delay_seconds"    validate:"gte=0"`
	MaxDelaySeconds       int  `json:"max_delay_seconds"    validate:"gtefield=MinDelaySeconds"`
	CommentRepliesEnabled bool `json:"comment_replies_enabled"`
	DMSendsEnabled        bool `json:"dm_sends_enabled"`
}

// DefaultRateLimits returns the platform defaults applied when a workflow
// configures no limits of its own. Conservative on purpose: tripping
// Instagram's own limits risks an account ban.
func DefaultRateLimits() RateLimitConfig {
	return RateLimitConfig{
		MaxActionsPerDay:      100,
		MaxActionsPerHour:     20,
		MinDelaySeconds:       30,
		MaxDelaySeconds:       120,
		CommentRepliesEnabled: true,
		DMSendsEnabled:        true,
	}
}

// ActionEnabled reports whether the given action type is switched on for
// this configuration.
func (c RateLimitConfig) ActionEnabled(actionType ActionType) bool {
	switch actionType {
	case ActionTypeCommentReply:
		return c.CommentRepliesEnabled
	case ActionTypeDMSend:
		return c.DMSendsEnabled
	}

	return false
}

// ActionBucket aggregates action counts for one window.
type ActionBucket struct {
	Total  int                `json:"total"`
	ByType map[ActionType]int `json:"by_type"`
}

// ActionStats is the limiter's view of a workflow's recent activity.
type ActionStats struct {
	Daily  ActionBucket `json:"daily"`
	Hourly ActionBucket `json:"hourly"`
}

// ActionRecord is one recorded action in the hourly history.
type ActionRecord struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      ActionType        `json:"type"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
