package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUnregistered marks a device token the push backend no longer knows.
// Callers drop these tokens instead of failing the batch.
var ErrUnregistered = errors.New("fcm token unregistered")

// Client sends push notifications via the FCM HTTP v1 API
type Client struct {
	projectID  string
	endpoint   string // overridable for tests
	httpClient *http.Client
}

// NewClient creates a new FCM client for the given project
func NewClient(projectID string) *Client {
	return &Client{
		projectID:  projectID,
		endpoint:   fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", projectID),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientWithEndpoint creates a client pointed at a custom endpoint (tests)
func NewClientWithEndpoint(projectID, endpoint string) *Client {
	c := NewClient(projectID)
	c.endpoint = endpoint
	return c
}

// Message represents one push notification
type Message struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

type sendRequest struct {
	Message messagePayload `json:"message"`
}

type messagePayload struct {
	Token        string            `json:"token"`
	Notification notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Android      *androidConfig    `json:"android,omitempty"`
}

type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type androidConfig struct {
	Priority string `json:"priority,omitempty"`
}

type sendResponse struct {
	Name string `json:"name"`
}

type errorResponse struct {
	Error struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Details []struct {
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// Send delivers one push message and returns the FCM message name
func (c *Client) Send(ctx context.Context, accessToken string, msg *Message) (string, error) {
	payload := sendRequest{
		Message: messagePayload{
			Token: msg.Token,
			Notification: notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Data:    msg.Data,
			Android: &androidConfig{Priority: "high"},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal FCM request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create FCM request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fcm send failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("fcm send failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if isUnregistered(resp.StatusCode, respBody) {
			return "", ErrUnregistered
		}
		return "", fmt.Errorf("fcm send error: status %d: %s", resp.StatusCode, string(respBody))
	}

	var out sendResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("failed to parse fcm response: %w", err)
	}
	return out.Name, nil
}

// isUnregistered detects the stale-token outcome: FCM v1 reports it as 404
// with errorCode UNREGISTERED in the error details.
func isUnregistered(status int, body []byte) bool {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		for _, d := range errResp.Error.Details {
			if d.ErrorCode == "UNREGISTERED" {
				return true
			}
		}
		if strings.EqualFold(errResp.Error.Status, "NOT_FOUND") && status == http.StatusNotFound {
			return true
		}
	}
	return status == http.StatusNotFound
}
