// Package instagram talks to the Instagram Graph API on behalf of
// workflow actions. Credentials are passed per call so one client serves
// every workflow regardless of which account owns it.
package instagram

import (
	"context"

	"github.com/gramflow/gramflow/pkg/models"
)

// Client is the outbound surface the action nodes depend on.
type Client interface {
	// ReplyToComment posts a reply under the given comment and returns
	// the created reply's ID.
	ReplyToComment(ctx context.Context, credentials models.Credentials, commentID, text string) (string, error)

	// SendDirectMessage sends a DM to the given user and returns the
	// created message's ID.
	SendDirectMessage(ctx context.Context, credentials models.Credentials, recipientID, text string) (string, error)
}
