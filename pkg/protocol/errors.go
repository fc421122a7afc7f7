package protocol

import (
	"errors"
	"fmt"
)

// TriggerMismatchError is returned by trigger nodes whose filters reject
// the incoming event. It is routine behavior, not a system fault, but it
// fails the node and therefore the execution: the event simply was not
// for this workflow.
type TriggerMismatchError struct {
	NodeID string
	Reason string
}

func (e *TriggerMismatchError) Error() string {
	return fmt.Sprintf("trigger %s did not match: %s", e.NodeID, e.Reason)
}

// IsTriggerMismatch reports whether err is a trigger filter rejection.
func IsTriggerMismatch(err error) bool {
	var mismatch *TriggerMismatchError

	return errors.As(err, &mismatch)
}
