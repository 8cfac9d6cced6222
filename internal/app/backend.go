package app

import (
	"bufio"
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

// Backend is the model backend the analysis pipeline drives: one
// non-streaming call per chunk round and one streaming call for the final
// report. CompleteStreaming delivers zero or more token events through
// onToken and then returns either the accumulated text or an error, never
// both.
type Backend interface {
	Complete(ctx context.Context, systemPrompt, userPrompt, model string) (string, error)
	CompleteStreaming(ctx context.Context, systemPrompt, userPrompt, model string, onToken func(string)) (string, error)
}

// BackendError is a non-success response from the model backend. The
// orchestrator does not retry these; they fail the run with the status and
// message preserved.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error: status %d: %s", e.Status, e.Message)
}

// LLMClient talks to any OpenAI-compatible chat-completions endpoint.
type LLMClient struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type chatStreamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func NewLLMClient(apiKey, baseURL string) *LLMClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1/chat/completions"
	}
	return &LLMClient{
		APIKey:  apiKey,
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 300 * time.Second},
	}
}

func (c *LLMClient) mockMode() bool {
	return c.APIKey == "mock" || c.BaseURL == "mock://"
}

func (c *LLMClient) Complete(ctx context.Context, systemPrompt, userPrompt, model string) (string, error) {
	if c.mockMode() {
		return mockCompletion(userPrompt), nil
	}
	if c.APIKey == "" {
		return "", errors.New("api key is required")
	}

	resp, err := c.post(ctx, systemPrompt, userPrompt, model, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return "", &BackendError{Status: resp.StatusCode, Message: errorMessage(payload)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("invalid api response: %w", err)
	}
	if parsed.Error != nil {
		return "", &BackendError{Status: resp.StatusCode, Message: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return "", &BackendError{Status: resp.StatusCode, Message: "response carried no choices"}
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *LLMClient) CompleteStreaming(ctx context.Context, systemPrompt, userPrompt, model string, onToken func(string)) (string, error) {
	if c.mockMode() {
		out := mockCompletion(userPrompt)
		if onToken != nil {
			for _, line := range strings.SplitAfter(out, "\n") {
				if line != "" {
					onToken(line)
				}
			}
		}
		return out, nil
	}
	if c.APIKey == "" {
		return "", errors.New("api key is required")
	}

	resp, err := c.post(ctx, systemPrompt, userPrompt, model, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(resp.Body)
		return "", &BackendError{Status: resp.StatusCode, Message: errorMessage(payload)}
	}

	var out strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}
		var event chatStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			// Malformed frames are skipped; the stream either recovers
			// or ends short and the caller sees the truncated text.
			continue
		}
		for _, choice := range event.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			out.WriteString(choice.Delta.Content)
			if onToken != nil {
				onToken(choice.Delta.Content)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("stream read failed: %w", err)
	}
	return out.String(), nil
}

func (c *LLMClient) post(ctx context.Context, systemPrompt, userPrompt, model string, stream bool) (*http.Response, error) {
	reqBody := chatRequest{
		Model:  model,
		Stream: stream,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+c.APIKey)
	request.Header.Set("Content-Type", "application/json")
	if stream {
		request.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.HTTP.Do(request)
	if err != nil {
		return nil, fmt.Errorf("api request failed: %w", err)
	}
	return resp, nil
}

func errorMessage(payload []byte) string {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(payload, &errResp)
	if errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	if errResp.Message != "" {
		return errResp.Message
	}
	return strings.TrimSpace(string(payload))
}

// mockCompletion fabricates deterministic responses so the pipeline can run
// offline and in tests. Chunk rounds get a minimal valid summary; everything
// else gets a canned report.
func mockCompletion(userPrompt string) string {
	if strings.HasPrefix(userPrompt, "Chunk ") {
		return `{"modules":[{"path":"mock","responsibility":"mock module","key_functions":["Run"]}],"patterns":["layered"],"internal_deps":[],"external_deps":["stdlib"],"risks":[],"tech_stack":["go"]}`
	}
	return "# Project Guide\n\nMock analysis produced without a backend.\n"
}
