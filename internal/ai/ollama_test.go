package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(handler http.HandlerFunc) (*OllamaClient, func()) {
	server := httptest.NewServer(handler)
	client := NewOllamaClient(Config{BaseURL: server.URL, Model: "gemma3"})
	return client, server.Close
}

func TestComplete(t *testing.T) {
	client, cleanup := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model    string        `json:"model"`
			Messages []ChatMessage `json:"messages"`
			Stream   bool          `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Errorf("expected stream=false")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": "hello back"},
			"done":    true,
		})
	})
	defer cleanup()

	text, err := client.Complete(context.Background(), "hello", "be nice")
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if text != "hello back" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestCompleteNoSystemPrompt(t *testing.T) {
	client, cleanup := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []ChatMessage `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("expected single user message, got %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"content": "ok"},
			"done":    true,
		})
	})
	defer cleanup()

	if _, err := client.Complete(context.Background(), "hello", ""); err != nil {
		t.Fatalf("Complete error: %v", err)
	}
}

func TestCompleteBackendErrors(t *testing.T) {
	t.Run("http status", func(t *testing.T) {
		client, cleanup := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		})
		defer cleanup()
		if _, err := client.Complete(context.Background(), "hi", ""); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("error field", func(t *testing.T) {
		client, cleanup := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"error": "out of memory"})
		})
		defer cleanup()
		if _, err := client.Complete(context.Background(), "hi", ""); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		client, cleanup := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "not json")
		})
		defer cleanup()
		if _, err := client.Complete(context.Background(), "hi", ""); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		client := NewOllamaClient(Config{BaseURL: "http://127.0.0.1:1", Model: "gemma3"})
		if _, err := client.Complete(context.Background(), "hi", ""); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})
}

func streamLine(w http.ResponseWriter, content string, done bool) {
	payload, _ := json.Marshal(map[string]interface{}{
		"message": map[string]string{"role": "assistant", "content": content},
		"done":    done,
	})
	w.Write(payload)
	w.Write([]byte("\n"))
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func TestStreamDeliversInOrder(t *testing.T) {
	deltas := []string{"He", "llo", " 세계"}
	client, cleanup := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		for _, delta := range deltas {
			streamLine(w, delta, false)
		}
		streamLine(w, "", true)
	})
	defer cleanup()

	var got []StreamChunk
	err := client.Stream(context.Background(), "hello", "", func(chunk StreamChunk) error {
		got = append(got, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream error: %v", err)
	}

	if len(got) != len(deltas)+1 {
		t.Fatalf("expected %d chunks, got %d: %+v", len(deltas)+1, len(got), got)
	}
	for i, delta := range deltas {
		if got[i].Text != delta || got[i].Done {
			t.Fatalf("chunk %d mismatch: %+v", i, got[i])
		}
	}
	if last := got[len(got)-1]; !last.Done || last.Text != "" {
		t.Fatalf("terminal chunk malformed: %+v", last)
	}
}

func TestStreamMidFailure(t *testing.T) {
	client, cleanup := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		streamLine(w, "partial", false)
		payload, _ := json.Marshal(map[string]string{"error": "backend crashed"})
		w.Write(payload)
		w.Write([]byte("\n"))
	})
	defer cleanup()

	var got []StreamChunk
	err := client.Stream(context.Background(), "hello", "", func(chunk StreamChunk) error {
		got = append(got, chunk)
		return nil
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if len(got) != 1 || got[0].Text != "partial" {
		t.Fatalf("expected the delivered chunk to survive: %+v", got)
	}
}

func TestStreamTruncated(t *testing.T) {
	client, cleanup := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		streamLine(w, "cut", false)
		// connection ends without a done marker
	})
	defer cleanup()

	err := client.Stream(context.Background(), "hello", "", func(chunk StreamChunk) error {
		return nil
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for truncated stream, got %v", err)
	}
}

func TestStreamConsumerError(t *testing.T) {
	client, cleanup := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 10; i++ {
			streamLine(w, "x", false)
		}
		streamLine(w, "", true)
	})
	defer cleanup()

	stop := errors.New("stop")
	seen := 0
	err := client.Stream(context.Background(), "hello", "", func(chunk StreamChunk) error {
		seen++
		if seen == 3 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected consumer error back, got %v", err)
	}
	if seen != 3 {
		t.Fatalf("production continued past consumer stop: %d", seen)
	}
}
