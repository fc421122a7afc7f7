package models

import "errors"

// TriggerKind identifies the kind of inbound social event that started an
// execution.
type TriggerKind string

const (
	TriggerKindComment TriggerKind = "comment"
	TriggerKindDM      TriggerKind = "dm"
)

// CommentEvent is an inbound comment on one of the account's posts,
// already decoded by the ingestion tier.
type CommentEvent struct {
	ID       string `json:"id"        validate:"required"`
	Text     string `json:"text"`
	PostID   string `json:"post_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// DMEvent is an inbound direct message, already decoded by the ingestion
// tier.
type DMEvent struct {
	ID       string `json:"id"        validate:"required"`
	SenderID string `json:"sender_id"`
	Text     string `json:"text"`
}

// TriggerEvent is the runtime event a workflow execution runs against:
// exactly one of Comment or DM is set.
type TriggerEvent struct {
	Kind    TriggerKind   `json:"kind"`
	Comment *CommentEvent `json:"comment,omitempty"`
	DM      *DMEvent      `json:"dm,omitempty"`
}

// NewCommentTrigger wraps a comment event as a trigger event.
func NewCommentTrigger(comment CommentEvent) *TriggerEvent {
	return &TriggerEvent{Kind: TriggerKindComment, Comment: &comment}
}

// NewDMTrigger wraps a direct-message event as a trigger event.
func NewDMTrigger(dm DMEvent) *TriggerEvent {
	return &TriggerEvent{Kind: TriggerKindDM, DM: &dm}
}

// Validate checks that the event carries the payload its kind promises.
func (e *TriggerEvent) Validate() error {
	switch e.Kind {
	case TriggerKindComment:
		if e.Comment == nil {
			return errors.New("comment trigger event has no comment payload")
		}
	case TriggerKindDM:
		if e.DM == nil {
			return errors.New("dm trigger event has no message payload")
		}
	default:
		return errors.New("unknown trigger event kind: " + string(e.Kind))
	}

	return nil
}

// RecipientID returns the user to address follow-up direct messages to:
// the comment author for comment events, the sender for DM events.
func (e *TriggerEvent) RecipientID() string {
	switch e.Kind {
	case TriggerKindComment:
		if e.Comment != nil {
			return e.Comment.UserID
		}
	case TriggerKindDM:
		if e.DM != nil {
			return e.DM.SenderID
		}
	}

	return ""
}

// Data returns the event as a generic map for persistence in the execution
// record.
func (e *TriggerEvent) Data() map[string]any {
	data := map[string]any{"kind": string(e.Kind)}

	switch {
	case e.Comment != nil:
		data["comment_id"] = e.Comment.ID
		data["post_id"] = e.Comment.PostID
		data["user_id"] = e.Comment.UserID
		data["username"] = e.Comment.Username
		data["text"] = e.Comment.Text
	case e.DM != nil:
		data["message_id"] = e.DM.ID
		data["sender_id"] = e.DM.SenderID
		data["text"] = e.DM.Text
	}

	return data
}
