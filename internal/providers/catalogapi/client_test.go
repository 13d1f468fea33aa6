package catalogapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cinesync/internal/providers"
)

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("parse date %q: %v", value, err)
	}
	return parsed
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New("test-key", server.URL, "IN")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestSearchParsesHitsAndSkipsUntitled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/movie" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("query"); got != "kalki" {
			t.Errorf("query = %q", got)
		}
		if r.URL.Query().Get("api_key") == "" {
			t.Error("api_key missing from request")
		}
		w.Write([]byte(`{"results":[
			{"id":830784,"title":"Kalki 2898 AD","original_language":"te","release_date":"2024-06-27","popularity":128.4},
			{"id":99,"title":"","original_language":"en","release_date":"2024-01-01","popularity":3.0},
			{"id":4242,"title":"Kalki","original_language":"ml","release_date":"","popularity":9.1}
		],"total_pages":1}`))
	})

	hits, err := client.Search(context.Background(), "kalki")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ExternalID != 830784 || hits[0].Title != "Kalki 2898 AD" {
		t.Errorf("first hit = %+v", hits[0])
	}
	if hits[0].ReleaseDate == nil || hits[0].ReleaseDate.Year() != 2024 {
		t.Errorf("first hit release date = %v", hits[0].ReleaseDate)
	}
	if hits[1].ReleaseDate != nil {
		t.Errorf("blank release date should stay nil, got %v", hits[1].ReleaseDate)
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty query")
	})
	if _, err := client.Search(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestSearchMapsStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"rate limited", http.StatusTooManyRequests, providers.IsRateLimited},
		{"not found", http.StatusNotFound, providers.IsNotFound},
		{"server error", http.StatusInternalServerError, providers.IsTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := client.Search(context.Background(), "anything")
			if err == nil || !tt.check(err) {
				t.Fatalf("status %d mapped to %v", tt.status, err)
			}
		})
	}
}

func TestMovieDetailsMapsCreditsAndImages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/830784" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("append_to_response"); got != "credits" {
			t.Errorf("append_to_response = %q", got)
		}
		w.Write([]byte(`{
			"id":830784,"title":"Kalki 2898 AD","original_language":"te",
			"release_date":"2024-06-27","overview":"A modern avatar rises.",
			"poster_path":"/poster.jpg","backdrop_path":"",
			"genres":[{"name":"Science Fiction"},{"name":""}],
			"credits":{"cast":[
				{"id":1,"name":"Prabhas","character":"Bhairava","profile_path":"/p.jpg","order":0},
				{"id":2,"name":"","character":"ghost credit","order":1}
			]}
		}`))
	})

	details, err := client.MovieDetails(context.Background(), 830784)
	if err != nil {
		t.Fatalf("MovieDetails: %v", err)
	}
	if details.Title != "Kalki 2898 AD" || details.Language != "te" {
		t.Errorf("details = %+v", details)
	}
	if len(details.Genres) != 1 || details.Genres[0] != "Science Fiction" {
		t.Errorf("genres = %v", details.Genres)
	}
	if len(details.Cast) != 1 || details.Cast[0].Name != "Prabhas" {
		t.Errorf("cast = %+v", details.Cast)
	}
	if details.PosterURL == "" || details.BackdropURL != "" {
		t.Errorf("poster=%q backdrop=%q", details.PosterURL, details.BackdropURL)
	}
}

func TestDiscoverReportsMorePages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/discover/movie" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("region"); got != "IN" {
			t.Errorf("region = %q", got)
		}
		if got := r.URL.Query().Get("page"); got != "1" {
			t.Errorf("page = %q", got)
		}
		w.Write([]byte(`{"results":[{"id":7,"title":"Window Movie","original_language":"hi","release_date":"2024-02-02","popularity":5}],"total_pages":3}`))
	})

	window := providers.DiscoverWindow{From: mustDate(t, "2024-01-01"), To: mustDate(t, "2024-03-01")}
	hits, more, err := client.Discover(context.Background(), window, "", 0)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(hits) != 1 || hits[0].ExternalID != 7 {
		t.Errorf("hits = %+v", hits)
	}
	if !more {
		t.Error("expected more pages")
	}
}
