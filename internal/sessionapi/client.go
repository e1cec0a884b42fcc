// Package sessionapi is the REST client for the session-management
// collaborator: session start/end and the short-lived recognition
// credential exchange.
package sessionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lexlive/internal/domain"
	"lexlive/internal/logging"
)

// Client talks to the backend over its JSON envelope. Responses are
// validated at the boundary into typed results, never trusted downstream.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
	log       zerolog.Logger
}

func NewClient(baseURL, authToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		http:      &http.Client{Timeout: timeout},
		log:       logging.Component("sessionapi"),
	}
}

// envelope is the backend's uniform response shape.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type startSessionData struct {
	SessionID  string            `json:"sessionId"`
	RoomName   string            `json:"roomName"`
	LivekitURL string            `json:"livekitUrl"`
	Tokens     map[string]string `json:"tokens"`
}

// StartSession creates a new session and returns its identifiers. All four
// identifiers are issued together; a partial payload is a boundary error.
func (c *Client) StartSession(ctx context.Context) (domain.SessionInfo, error) {
	var data startSessionData
	if err := c.postJSON(ctx, c.baseURL+"/session/start", nil, &data); err != nil {
		return domain.SessionInfo{}, fmt.Errorf("failed to start session: %w", err)
	}

	if data.SessionID == "" || data.RoomName == "" || data.LivekitURL == "" || len(data.Tokens) == 0 {
		return domain.SessionInfo{}, fmt.Errorf("session-start response incomplete: sessionId=%q roomName=%q", data.SessionID, data.RoomName)
	}

	return domain.SessionInfo{
		SessionID: data.SessionID,
		RoomName:  data.RoomName,
		ServerURL: data.LivekitURL,
		Tokens:    data.Tokens,
	}, nil
}

// EndSession notifies the backend that the session ended. Fire-and-forget:
// failure is logged, never retried, and never blocks local teardown.
func (c *Client) EndSession(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	url := fmt.Sprintf("%s/session/%s/end", c.baseURL, sessionID)
	if err := c.postJSON(ctx, url, nil, nil); err != nil {
		c.log.Warn().Err(err).Str("sessionId", sessionID).Msg("session end notification failed")
	}
}

func (c *Client) postJSON(ctx context.Context, url string, body any, dest any) error {
	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		if env.Error == "" {
			env.Error = "request rejected"
		}
		return fmt.Errorf("backend error: %s", env.Error)
	}
	if dest != nil {
		if len(env.Data) == 0 {
			return fmt.Errorf("response missing data payload")
		}
		if err := json.Unmarshal(env.Data, dest); err != nil {
			return fmt.Errorf("decode data payload: %w", err)
		}
	}
	return nil
}

// CredentialClient fetches the short-lived recognition credential. The
// long-lived provider secret stays server-side; this client only ever sees
// the exchanged key, valid for one session.
type CredentialClient struct {
	url  string
	http *http.Client
}

func NewCredentialClient(url string, timeout time.Duration) *CredentialClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CredentialClient{url: url, http: &http.Client{Timeout: timeout}}
}

func (c *CredentialClient) Fetch(ctx context.Context) (string, error) {
	if c.url == "" {
		return "", fmt.Errorf("%w: credential endpoint not configured", domain.ErrCredentialUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("create credential request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCredentialUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d", domain.ErrCredentialUnavailable, resp.StatusCode)
	}

	var payload struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCredentialUnavailable, err)
	}
	if strings.TrimSpace(payload.Key) == "" {
		return "", domain.ErrCredentialUnavailable
	}
	return strings.TrimSpace(payload.Key), nil
}
