package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gramflow/gramflow/pkg/models"
)

const (
	defaultBaseURL = "https://graph.instagram.com/v23.0"
	defaultTimeout = 15 * time.Second
)

// Compile-time interface check.
var _ Client = (*GraphClient)(nil)

// GraphClient implements Client against the Instagram Graph API.
type GraphClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// GraphOption configures the GraphClient.
type GraphOption func(*GraphClient)

// WithBaseURL overrides the API base URL, for tests.
func WithBaseURL(baseURL string) GraphOption {
	return func(c *GraphClient) { c.baseURL = baseURL }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) GraphOption {
	return func(c *GraphClient) { c.httpClient = httpClient }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) GraphOption {
	return func(c *GraphClient) { c.logger = logger.With("module", "instagram") }
}

// NewGraphClient creates a Graph API client with a bounded request
// timeout.
func NewGraphClient(opts ...GraphOption) *GraphClient {
	c := &GraphClient{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default().With("module", "instagram"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *GraphClient) ReplyToComment(ctx context.Context, credentials models.Credentials, commentID, text string) (string, error) {
	payload := map[string]any{"message": text}

	endpoint := fmt.Sprintf("%s/%s/replies", c.baseURL, url.PathEscape(commentID))

	id, err := c.post(ctx, endpoint, credentials.AccessToken, payload)
	if err != nil {
		return "", fmt.Errorf("failed to reply to comment %s: %w", commentID, err)
	}

	c.logger.InfoContext(ctx, "Posted comment reply", "comment_id", commentID, "reply_id", id)

	return id, nil
}

func (c *GraphClient) SendDirectMessage(ctx context.Context, credentials models.Credentials, recipientID, text string) (string, error) {
	payload := map[string]any{
		"recipient": map[string]any{"id": recipientID},
		"message":   map[string]any{"text": text},
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.baseURL, url.PathEscape(credentials.AccountID))

	id, err := c.post(ctx, endpoint, credentials.AccessToken, payload)
	if err != nil {
		return "", fmt.Errorf("failed to send direct message to %s: %w", recipientID, err)
	}

	c.logger.InfoContext(ctx, "Sent direct message", "recipient_id", recipientID, "message_id", id)

	return id, nil
}

// post sends a JSON POST and decodes the created object's ID. Graph API
// errors come back as {"error": {...}} with a non-2xx status.
func (c *GraphClient) post(ctx context.Context, endpoint, accessToken string, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", decodeAPIError(resp.StatusCode, raw)
	}

	var created struct {
		ID        string `json:"id"`
		MessageID string `json:"message_id"`
	}

	if err := json.Unmarshal(raw, &created); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if created.ID != "" {
		return created.ID, nil
	}

	return created.MessageID, nil
}

func decodeAPIError(statusCode int, raw []byte) error {
	var envelope struct {
		Error APIError `json:"error"`
	}

	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error.Message == "" {
		return &APIError{
			StatusCode: statusCode,
			Message:    fmt.Sprintf("unexpected response: %s", bytes.TrimSpace(raw)),
		}
	}

	apiErr := envelope.Error
	apiErr.StatusCode = statusCode

	return &apiErr
}
