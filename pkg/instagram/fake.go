package instagram

import (
	"context"
	"fmt"
	"sync"

	"github.com/gramflow/gramflow/pkg/models"
)

// Compile-time interface check.
var _ Client = (*Fake)(nil)

// FakeCall records one outbound call made against the Fake client.
type FakeCall struct {
	Method    string
	AccountID string
	TargetID  string
	Text      string
}

// Fake is a recording Client for tests. It returns deterministic IDs and
// can be primed with an error to simulate API failures.
type Fake struct {
	mu    sync.Mutex
	calls []FakeCall

	// Err, when set, is returned by every call instead of a fake ID.
	Err error
}

// NewFake creates an empty recording client.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) ReplyToComment(_ context.Context, credentials models.Credentials, commentID, text string) (string, error) {
	return f.record("ReplyToComment", credentials.AccountID, commentID, text)
}

func (f *Fake) SendDirectMessage(_ context.Context, credentials models.Credentials, recipientID, text string) (string, error) {
	return f.record("SendDirectMessage", credentials.AccountID, recipientID, text)
}

// Calls returns a copy of the recorded calls in order.
func (f *Fake) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	calls := make([]FakeCall, len(f.calls))
	copy(calls, f.calls)

	return calls
}

func (f *Fake) record(method, accountID, targetID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return "", f.Err
	}

	f.calls = append(f.calls, FakeCall{
		Method:    method,
		AccountID: accountID,
		TargetID:  targetID,
		Text:      text,
	})

	return fmt.Sprintf("fake-%s-%d", method, len(f.calls)), nil
}
