package wikipedia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"cinesync/internal/providers"
)

func TestSearchParsesHitsAndStripsMarkup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("srsearch"); got != "Kalki soundtrack" {
			t.Errorf("srsearch = %q", got)
		}
		w.Write([]byte(`{"query":{"search":[
			{"title":"Kalki 2898 AD","snippet":"a <span class=\"searchmatch\">Kalki</span> film"},
			{"title":"Kalki (soundtrack)","snippet":"album"}
		]}}`))
	}))
	defer server.Close()

	client, err := New(server.URL, "cinesync/test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	hits, err := client.Search(context.Background(), "Kalki soundtrack")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Snippet != "a Kalki film" {
		t.Errorf("snippet markup not stripped: %q", hits[0].Snippet)
	}
}

func TestPageLeadMissingPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"query":{"pages":{"-1":{"missing":""}}}}`))
	}))
	defer server.Close()

	client, err := New(server.URL, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.PageLead(context.Background(), "No Such Film"); !providers.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestTracklistSectionHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("prop") {
		case "sections":
			w.Write([]byte(`{"parse":{"sections":[
				{"index":"1","line":"Plot"},
				{"index":"4","line":"Soundtrack"},
				{"index":"5","line":"Release"}
			]}}`))
		case "text":
			if got := r.URL.Query().Get("section"); got != "4" {
				t.Errorf("section = %q", got)
			}
			w.Write([]byte(`{"parse":{"text":{"*":"<ol><li>\"Theme of Kalki\"</li></ol>"}}}`))
		default:
			t.Errorf("unexpected prop %q", r.URL.Query().Get("prop"))
		}
	}))
	defer server.Close()

	client, err := New(server.URL, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	html, err := client.TracklistSectionHTML(context.Background(), "Kalki 2898 AD")
	if err != nil {
		t.Fatalf("TracklistSectionHTML: %v", err)
	}
	if html == "" {
		t.Fatal("expected section html")
	}
}

func TestTracklistSectionMissingSection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"parse":{"sections":[{"index":"1","line":"Plot"}]}}`))
	}))
	defer server.Close()

	client, err := New(server.URL, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	html, err := client.TracklistSectionHTML(context.Background(), "Some Film")
	if err != nil {
		t.Fatalf("TracklistSectionHTML: %v", err)
	}
	if html != "" {
		t.Fatalf("expected empty html, got %q", html)
	}
}
