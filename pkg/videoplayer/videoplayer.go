// Package videoplayer provides a client for the external video player
// process driving the shared display. The orchestrator never speaks the
// player's wire protocol directly; everything goes through this client.
package videoplayer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/scanquest/orchestrator/internal/logger"
)

// StatusCallback receives completion and error notifications from the player.
// A nil err means the video finished normally.
type StatusCallback func(err error)

// Client defines the operations the display orchestrator needs from the
// player process
type Client interface {
	// Play starts playback of the media at path. The callback fires exactly
	// once when playback completes or fails.
	Play(ctx context.Context, path string, done StatusCallback) error
	// Pause pauses the current playback
	Pause(ctx context.Context) error
	// Stop stops the current playback
	Stop(ctx context.Context) error
	// QueueLength reports how many items the player itself has buffered
	QueueLength(ctx context.Context) (int, error)
	// BaseURL returns the configured player base URL
	BaseURL() string
}

// HTTPClient talks to a video player exposing a small JSON control API
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a player client for the given base URL
func NewHTTPClient(baseURL string, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// NewHTTPClientWithHTTPClient creates a player client with a custom http.Client
func NewHTTPClientWithHTTPClient(baseURL string, httpClient *http.Client, log logger.Logger) *HTTPClient {
	return &HTTPClient{baseURL: baseURL, httpClient: httpClient, log: log}
}

// BaseURL returns the configured player base URL
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// playResponse is the player's reply to a play command
type playResponse struct {
	Status   string  `json:"status"`
	Duration float64 `json:"duration"`
	Error    string  `json:"error,omitempty"`
}

// Play issues the play command and polls the player until the clip finishes.
// The poll loop runs on its own goroutine; the callback fires from there.
func (c *HTTPClient) Play(ctx context.Context, path string, done StatusCallback) error {
	var resp playResponse
	if err := c.doRequest(ctx, "play", map[string]string{"path": path}, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("player rejected %s: %s", path, resp.Error)
	}

	go c.watchPlayback(path, done)
	return nil
}

// watchPlayback polls the player status until it reports idle or errors out
func (c *HTTPClient) watchPlayback(path string, done StatusCallback) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		var status struct {
			State string `json:"state"`
			Error string `json:"error,omitempty"`
		}
		err := c.doRequest(ctx, "status", nil, &status)
		cancel()

		if err != nil {
			c.log.Warn("Player status check failed", "path", path, "error", err)
			done(err)
			return
		}
		if status.Error != "" {
			done(fmt.Errorf("player error: %s", status.Error))
			return
		}
		if status.State != "playing" {
			done(nil)
			return
		}
	}
}

// Pause pauses the current playback
func (c *HTTPClient) Pause(ctx context.Context) error {
	return c.doRequest(ctx, "pause", nil, nil)
}

// Stop stops the current playback
func (c *HTTPClient) Stop(ctx context.Context) error {
	return c.doRequest(ctx, "stop", nil, nil)
}

// QueueLength reports how many items the player has buffered
func (c *HTTPClient) QueueLength(ctx context.Context) (int, error) {
	var resp struct {
		Length int `json:"length"`
	}
	if err := c.doRequest(ctx, "queue", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Length, nil
}

// doRequest posts a JSON command to the player and decodes the reply
func (c *HTTPClient) doRequest(ctx context.Context, command string, params map[string]string, response interface{}) error {
	apiURL := fmt.Sprintf("%s/api/%s", c.baseURL, command)

	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode %s command: %w", command, err)
	}

	c.log.Debug("Player request", "url", apiURL, "command", command)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", command, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("player unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read player response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("player returned status %d: %s", resp.StatusCode, string(body))
	}
	if response != nil && len(body) > 0 {
		if err := json.Unmarshal(body, response); err != nil {
			return fmt.Errorf("decode player response: %w", err)
		}
	}
	return nil
}
