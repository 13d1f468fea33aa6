package videosearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"cinesync/internal/providers"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New("test-key", server.URL, "IN")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSearchParsesCandidates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "kalki songs" {
			t.Errorf("query = %q", got)
		}
		if got := r.URL.Query().Get("regionCode"); got != "IN" {
			t.Errorf("regionCode = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
            {"id":{"videoId":"abc123"},"snippet":{"title":"Kalki Song","description":"official audio","channelTitle":"T-Series"}},
            {"id":{"videoId":""},"snippet":{"title":"dropped"}}
        ]}`))
	})

	candidates, err := client.Search(context.Background(), "kalki songs", providers.VideoFilters{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
	if candidates[0].URL != "https://www.youtube.com/watch?v=abc123" {
		t.Errorf("url = %q", candidates[0].URL)
	}
}

func TestSearchQuotaExceededIsRateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"The request cannot be completed because the quota has been exceeded."}}`))
	})

	_, err := client.Search(context.Background(), "anything", providers.VideoFilters{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !providers.IsRateLimited(err) {
		t.Errorf("quota-exceeded 403 should classify as rate limited, got %v", err)
	}
}

func TestSearchPlainForbidden(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"API key invalid"}}`))
	})

	_, err := client.Search(context.Background(), "anything", providers.VideoFilters{})
	if err == nil {
		t.Fatal("expected error")
	}
	if providers.IsRateLimited(err) {
		t.Errorf("plain 403 must not open the circuit, got %v", err)
	}
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if _, err := client.Search(context.Background(), "  ", providers.VideoFilters{}); err == nil {
		t.Fatal("expected validation error")
	}
}
