package ai

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
	"unicode/utf8"
)

// ErrUnavailable marks any failure of the model backend: unreachable host,
// non-2xx status, malformed or badly encoded output. Callers map it to a
// 503-class response and never retry at this layer.
var ErrUnavailable = errors.New("model backend unavailable")

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamChunk is one unit of incremental model output. The terminal chunk
// carries an empty Text and Done=true, and is produced exactly once.
type StreamChunk struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

type Config struct {
	BaseURL string
	Model   string
}

type OllamaClient struct {
	cfg        Config
	httpClient *http.Client
}

func NewOllamaClient(cfg Config) *OllamaClient {
	return &OllamaClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

func (c *OllamaClient) buildMessages(message, systemPrompt string) []ChatMessage {
	messages := make([]ChatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: message})
	return messages
}

func (c *OllamaClient) newRequest(ctx context.Context, message, systemPrompt string, stream bool) (*http.Request, error) {
	reqBody := map[string]interface{}{
		"model":    c.cfg.Model,
		"messages": c.buildMessages(message, systemPrompt),
		"stream":   stream,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal llm request failed: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build llm request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Complete blocks until the backend returns a finished response.
func (c *OllamaClient) Complete(ctx context.Context, message, systemPrompt string) (string, error) {
	req, err := c.newRequest(ctx, message, systemPrompt, false)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: request failed: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response failed: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(raw))
	}

	var parsed struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: parse response failed: %v", ErrUnavailable, err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrUnavailable, parsed.Error)
	}
	if !utf8.ValidString(parsed.Message.Content) {
		return "", fmt.Errorf("%w: invalid character encoding in model response", ErrUnavailable)
	}
	return parsed.Message.Content, nil
}

// Stream delivers incremental deltas through onChunk in production order,
// ending with the terminal chunk. Ollama streams one JSON object per line;
// the object with done=true closes the sequence. A non-nil error from
// onChunk stops production immediately. Chunks already delivered are never
// retracted: a mid-stream backend failure surfaces after them.
func (c *OllamaClient) Stream(ctx context.Context, message, systemPrompt string, onChunk func(StreamChunk) error) error {
	req, err := c.newRequest(ctx, message, systemPrompt, true)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: stream request failed: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: stream status %d: %s", ErrUnavailable, resp.StatusCode, string(raw))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			Done  bool   `json:"done"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return fmt.Errorf("%w: parse stream chunk failed: %v", ErrUnavailable, err)
		}
		if chunk.Error != "" {
			return fmt.Errorf("%w: %s", ErrUnavailable, chunk.Error)
		}
		if chunk.Done {
			return onChunk(StreamChunk{Text: "", Done: true})
		}
		if chunk.Message.Content == "" {
			continue
		}
		if !utf8.ValidString(chunk.Message.Content) {
			return fmt.Errorf("%w: invalid character encoding in stream chunk", ErrUnavailable)
		}
		if err := onChunk(StreamChunk{Text: chunk.Message.Content, Done: false}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: scan stream failed: %v", ErrUnavailable, err)
	}
	// body ended without a done marker
	return fmt.Errorf("%w: stream ended before completion", ErrUnavailable)
}
