// Package client is a Go client for the Linkrem API.
//
// Tag edits are applied to a local cache before the request is sent so
// callers see the new tag set immediately; a failed request restores the
// previous set.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Uzaifm127/linkrem/pkg/linkrem/tagdiff"
)

const DefaultTimeout = 10 * time.Second

// Link is a saved link as returned by the API
type Link struct {
	ID         uint     `json:"id"`
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Tags       []string `json:"tags"`
	Shortcut   string   `json:"shortcut,omitempty"`
	ClickCount uint     `json:"click_count"`
}

// Tag is an entry of the tag listing
type Tag struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Locked    bool   `json:"locked"`
	LinkCount int    `json:"link_count"`
}

// TagEdit is the server's answer to a tag edit
type TagEdit struct {
	Message  string   `json:"message"`
	Changed  bool     `json:"changed"`
	Attached []string `json:"attached"`
	Detached []string `json:"detached"`
	Tags     []string `json:"tags"`
}

// APIError is a non-2xx response
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("linkrem: %d %s", e.Status, e.Message)
}

// Client talks to a Linkrem server with a bearer token
type Client struct {
	base  string
	token string
	hc    *http.Client

	mu   sync.Mutex
	tags map[uint][]string
	rev  map[uint]uint64
}

// New creates a client for the server at base
func New(base, token string) *Client {
	return &Client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		hc:    &http.Client{Timeout: DefaultTimeout},
		tags:  make(map[uint][]string),
		rev:   make(map[uint]uint64),
	}
}

// WithHTTPClient replaces the underlying http.Client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.hc = hc
	return c
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Message}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Links lists the user's links, optionally filtered by tag, and refreshes the
// local tag cache from the result.
func (c *Client) Links(ctx context.Context, tag string) ([]Link, error) {
	path := "/api/link/my-links?limit=100"
	if tag != "" {
		path += "&tag=" + url.QueryEscape(tag)
	}

	var out struct {
		Links []Link `json:"links"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	c.mu.Lock()
	for _, l := range out.Links {
		c.store(l.ID, append([]string(nil), l.Tags...))
	}
	c.mu.Unlock()
	return out.Links, nil
}

// Tags lists the user's tags
func (c *Client) Tags(ctx context.Context) ([]Tag, error) {
	var out []Tag
	err := c.do(ctx, http.MethodGet, "/api/tags", nil, &out)
	return out, err
}

// CachedTags returns the locally known tags of a link
func (c *Client) CachedTags(linkID uint) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tags[linkID]
	return append([]string(nil), t...), ok
}

// SetTags replaces the tags of a link. The local cache is patched before the
// request and restored if it fails.
func (c *Client) SetTags(ctx context.Context, linkID uint, desired []string) (*TagEdit, error) {
	c.mu.Lock()
	previous, known := c.tags[linkID]
	var rev uint64
	if known {
		rev = c.store(linkID, tagdiff.Apply(previous, tagdiff.Diff(previous, desired)))
	}
	c.mu.Unlock()

	var out TagEdit
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/links/%d/tags", linkID),
		map[string][]string{"tags": tagdiff.Normalize(desired)}, &out)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		// Leave the entry alone if another edit has replaced it meanwhile
		if known && c.rev[linkID] == rev {
			c.store(linkID, previous)
		}
		return nil, err
	}
	c.store(linkID, out.Tags)
	return &out, nil
}

// store replaces the cached tags of a link and returns the new revision.
// Callers hold c.mu.
func (c *Client) store(linkID uint, tags []string) uint64 {
	c.tags[linkID] = tags
	c.rev[linkID]++
	return c.rev[linkID]
}

// OpenTag returns the URLs of every link carrying tag
func (c *Client) OpenTag(ctx context.Context, tag string) ([]string, error) {
	var out struct {
		Action string   `json:"action"`
		URLs   []string `json:"urls"`
	}
	err := c.do(ctx, http.MethodGet, "/api/tags/"+url.PathEscape(tag)+"/open", nil, &out)
	return out.URLs, err
}
