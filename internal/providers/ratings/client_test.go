package ratings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"cinesync/internal/providers"
)

func TestFetchParsesAllScoreShapes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("t"); got != "Inception" {
			t.Errorf("title param = %q", got)
		}
		if got := r.URL.Query().Get("y"); got != "2010" {
			t.Errorf("year param = %q", got)
		}
		w.Write([]byte(`{"Response":"True","Ratings":[
			{"Source":"Internet Movie Database","Value":"8.8/10"},
			{"Source":"Rotten Tomatoes","Value":"87%"},
			{"Source":"Metacritic","Value":"74/100"},
			{"Source":"Broken","Value":"n/a"}
		]}`))
	}))
	defer server.Close()

	client, err := New("key", server.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results, err := client.Fetch(context.Background(), "Inception", 2010)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 ratings, got %d", len(results))
	}
	expected := map[string][2]float64{
		"internet_movie_database": {8.8, 10},
		"rotten_tomatoes":         {87, 100},
		"metacritic":              {74, 100},
	}
	for _, rating := range results {
		want, ok := expected[rating.Source]
		if !ok {
			t.Errorf("unexpected source %q", rating.Source)
			continue
		}
		if rating.Value != want[0] || rating.Scale != want[1] {
			t.Errorf("%s = %f/%f, want %f/%f", rating.Source, rating.Value, rating.Scale, want[0], want[1])
		}
	}
}

func TestFetchUnknownTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Response":"False","Error":"Movie not found!"}`))
	}))
	defer server.Close()

	client, err := New("key", server.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.Fetch(context.Background(), "No Such Movie", 0); !providers.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestFetchQuotaBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Response":"False","Error":"Request limit reached!"}`))
	}))
	defer server.Close()

	client, err := New("key", server.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.Fetch(context.Background(), "Inception", 2010); !providers.IsRateLimited(err) {
		t.Fatalf("expected rate-limited, got %v", err)
	}
}
