package instagram

import (
	"errors"
	"fmt"
)

// APIError is a structured error returned by the Graph API.
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Type       string `json:"type"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("instagram api error (http %d, code %d): %s", e.StatusCode, e.Code, e.Message)
}

// IsAPIError reports whether err is a structured Graph API error.
func IsAPIError(err error) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr)
}
