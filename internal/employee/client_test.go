package employee

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearch(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("type"); got != "name" {
			t.Errorf("type = %q", got)
		}
		if got := r.URL.Query().Get("query"); got != "김철수" {
			t.Errorf("query = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok123" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"name":"김철수","position":"팀장","department":"개발"}]`))
	}))
	defer upstream.Close()

	client := NewClient(upstream.URL)
	raw, err := client.Search(context.Background(), "name", "김철수", "tok123")
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if string(raw) != `[{"name":"김철수","position":"팀장","department":"개발"}]` {
		t.Fatalf("payload altered: %s", raw)
	}
}

func TestSearchUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	client := NewClient(upstream.URL)
	if _, err := client.Search(context.Background(), "name", "x", ""); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSearchMalformedUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer upstream.Close()

	client := NewClient(upstream.URL)
	if _, err := client.Search(context.Background(), "position", "x", ""); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSearchUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	if _, err := client.Search(context.Background(), "name", "x", ""); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
