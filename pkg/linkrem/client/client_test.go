package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
)

func sorted(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func equal(a, b []string) bool {
	a, b = sorted(a), sorted(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLinksFillsCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("tag") != "news" {
			t.Errorf("Expected tag filter, got %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string][]Link{
			"links": {{ID: 1, Name: "a", URL: "https://a.example.com", Tags: []string{"news", "work"}}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "tok")
	links, err := c.Links(context.Background(), "news")
	if err != nil {
		t.Fatalf("Links failed: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("Expected 1 link, got %d", len(links))
	}

	tags, ok := c.CachedTags(1)
	if !ok || !equal(tags, []string{"news", "work"}) {
		t.Errorf("Expected cached tags, got %v %v", tags, ok)
	}
}

func TestSetTagsIsOptimistic(t *testing.T) {
	var c *Client
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string][]Link{
				"links": {{ID: 7, Tags: []string{"work", "news"}}},
			})
		case http.MethodPut:
			// The local cache already reflects the edit while the request is in flight
			if tags, _ := c.CachedTags(7); !equal(tags, []string{"news", "urgent"}) {
				t.Errorf("Expected optimistic tags, got %v", tags)
			}
			var body map[string][]string
			json.NewDecoder(r.Body).Decode(&body)
			json.NewEncoder(w).Encode(TagEdit{
				Message:  "Tags updated",
				Changed:  true,
				Attached: []string{"urgent"},
				Detached: []string{"work"},
				Tags:     body["tags"],
			})
		}
	}))
	defer srv.Close()

	c = New(srv.URL, "tok")
	ctx := context.Background()
	if _, err := c.Links(ctx, ""); err != nil {
		t.Fatalf("Links failed: %v", err)
	}

	edit, err := c.SetTags(ctx, 7, []string{"news", "urgent", "news"})
	if err != nil {
		t.Fatalf("SetTags failed: %v", err)
	}
	if !edit.Changed || len(edit.Tags) != 2 {
		t.Errorf("Unexpected edit %+v", edit)
	}
	if tags, _ := c.CachedTags(7); !equal(tags, []string{"news", "urgent"}) {
		t.Errorf("Expected server tags in cache, got %v", tags)
	}
}

func TestSetTagsRollsBackOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string][]Link{
				"links": {{ID: 3, Tags: []string{"keep"}}},
			})
		case http.MethodPut:
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"message": "Tag name is too long"})
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	ctx := context.Background()
	c.Links(ctx, "")

	_, err := c.SetTags(ctx, 3, []string{"something-else"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "Tag name is too long" {
		t.Errorf("Unexpected error %+v", apiErr)
	}

	if tags, _ := c.CachedTags(3); !equal(tags, []string{"keep"}) {
		t.Errorf("Expected cache to be rolled back, got %v", tags)
	}
}

func TestSetTagsRollbackKeepsNewerEdit(t *testing.T) {
	var c *Client
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string][]Link{
				"links": {{ID: 5, Tags: []string{"old"}}},
			})
			return
		}
		var body map[string][]string
		json.NewDecoder(r.Body).Decode(&body)
		if equal(body["tags"], []string{"slow"}) {
			// A second edit completes while this one is still in flight
			if _, err := c.SetTags(r.Context(), 5, []string{"fast"}); err != nil {
				t.Errorf("Inner SetTags failed: %v", err)
			}
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(TagEdit{Message: "Tags updated", Changed: true, Tags: body["tags"]})
	}))
	defer srv.Close()

	c = New(srv.URL, "tok")
	ctx := context.Background()
	c.Links(ctx, "")

	if _, err := c.SetTags(ctx, 5, []string{"slow"}); err == nil {
		t.Fatal("Expected error from failed edit")
	}
	if tags, _ := c.CachedTags(5); !equal(tags, []string{"fast"}) {
		t.Errorf("Expected newer edit to survive rollback, got %v", tags)
	}
}

func TestSetTagsUnknownLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	_, err := c.SetTags(context.Background(), 99, []string{"x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Not Found" {
		t.Errorf("Expected 404 APIError, got %v", err)
	}
	if _, ok := c.CachedTags(99); ok {
		t.Error("Expected no cache entry for an unknown link")
	}
}

func TestOpenTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags/to read/open" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"action": "openMultipleLinks",
			"urls":   []string{"https://a.example.com", "https://b.example.com"},
		})
	}))
	defer srv.Close()

	urls, err := New(srv.URL, "tok").OpenTag(context.Background(), "to read")
	if err != nil {
		t.Fatalf("OpenTag failed: %v", err)
	}
	if len(urls) != 2 {
		t.Errorf("Expected 2 URLs, got %v", urls)
	}
}
