package dmtrigger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/protocol"
)

func dmContext(text string) models.ExecutionContext {
	return models.ExecutionContext{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		Trigger:    models.NewDMTrigger(models.DMEvent{ID: "m-1", SenderID: "u-1", Text: text}),
	}
}

func TestMatchingMessageProducesOutputs(t *testing.T) {
	node, err := NewNode("t1", map[string]any{})
	require.NoError(t, err)

	outputs, err := node.Execute(context.Background(), dmContext("hello there"))
	require.NoError(t, err)

	assert.Equal(t, "m-1", outputs["message_id"])
	assert.Equal(t, "u-1", outputs["sender_id"])
	assert.Equal(t, "hello there", outputs["text"])
}

func TestKeywordFilter(t *testing.T) {
	node, err := NewNode("t1", map[string]any{
		"include_keywords": []any{"order"},
	})
	require.NoError(t, err)

	_, err = node.Execute(context.Background(), dmContext("where is my ORDER?"))
	require.NoError(t, err)

	_, err = node.Execute(context.Background(), dmContext("unrelated"))
	require.Error(t, err)
	assert.True(t, protocol.IsTriggerMismatch(err))
}

func TestNonDMEventMismatches(t *testing.T) {
	node, err := NewNode("t1", map[string]any{})
	require.NoError(t, err)

	execCtx := models.ExecutionContext{
		Trigger: models.NewCommentTrigger(models.CommentEvent{ID: "c-1", Text: "hi"}),
	}

	_, err = node.Execute(context.Background(), execCtx)
	require.Error(t, err)
	assert.True(t, protocol.IsTriggerMismatch(err))
}
