package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jwebster45206/narration-engine/internal/handlers"
	"github.com/jwebster45206/narration-engine/internal/services/events"
	"github.com/jwebster45206/narration-engine/internal/session"
)

// apiClient talks to the narration API.
type apiClient struct {
	client  *http.Client
	baseURL string
}

func (a *apiClient) testConnection() bool {
	resp, err := a.client.Get(a.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func (a *apiClient) getSession() (*session.View, error) {
	var v session.View
	if err := a.do(http.MethodGet, "/v1/session", nil, &v); err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &v, nil
}

func (a *apiClient) setNarration(on bool) (*session.View, error) {
	var v session.View
	if err := a.do(http.MethodPut, "/v1/settings", handlers.SettingsRequest{Narration: &on}, &v); err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	return &v, nil
}

func (a *apiClient) sendTurn(message string) (*session.Result, error) {
	return a.post("/v1/turns", handlers.TurnRequest{Message: message})
}

func (a *apiClient) submitForm(values map[string]any) (*session.Result, error) {
	return a.post("/v1/form", handlers.FormRequest{Values: values})
}

func (a *apiClient) retryForm() (*session.Result, error) {
	return a.post("/v1/form/retry", struct{}{})
}

func (a *apiClient) itemAction(action, item string) (*session.Result, error) {
	return a.post("/v1/items", handlers.ItemRequest{Action: action, Item: item})
}

func (a *apiClient) selectPregen(id string) (*session.Result, error) {
	return a.post("/v1/pregen", handlers.PregenRequest{ID: id})
}

func (a *apiClient) post(path string, body any) (*session.Result, error) {
	var res session.Result
	if err := a.do(http.MethodPost, path, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// do sends a JSON request and decodes a 200 response into out.
func (a *apiClient) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp handlers.ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
		}
		return fmt.Errorf("%s", errorResp.Error)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// listenToSSE connects to the event stream and forwards events until ctx
// ends or the stream closes.
func (a *apiClient) listenToSSE(ctx context.Context, eventChan chan<- events.Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v1/events", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The shared client has a timeout that would cut the stream.
	streamClient := &http.Client{Transport: a.client.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SSE connection failed with status %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	var name, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if name != "" && name != "connected" {
				var e events.Event
				if err := json.Unmarshal([]byte(data), &e); err == nil {
					select {
					case eventChan <- e:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
			name, data = "", ""
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return nil
}
