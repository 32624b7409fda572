package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Uzaifm127/linkrem/pkg/linkrem/cache"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/client"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/middleware"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/models"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/reconcile"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/server"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

// setupFullServer builds the same router the server binary serves
func setupFullServer(db *gorm.DB, limiter *middleware.IPRateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	tagCache := cache.NewTagCache(cache.NewMemoryStore(), time.Minute, quiet)
	engine := reconcile.New(db, reconcile.WithLogger(quiet), reconcile.WithInvalidator(tagCache))
	return server.NewRouter(server.Options{
		Engine:       engine,
		TagCache:     tagCache,
		Logger:       quiet,
		CORSOrigins:  []string{"*"},
		LoginLimiter: limiter,
		TokenLimiter: limiter,
	})
}

func call(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		buf = bytes.NewBuffer(b)
	}
	req, _ := http.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func registerUser(t *testing.T, router http.Handler, email string) string {
	t.Helper()
	resp := call(t, router, "POST", "/api/auth/register", "", map[string]string{
		"email": email, "password": "password123", "name": "Test User",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Register failed: %d %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	json.Unmarshal(resp.Body.Bytes(), &body)
	return body.Token
}

// TestServerStartup verifies that all routes can be registered without conflicts
func TestServerStartup(t *testing.T) {
	db := setupTestDB(t)

	// This will panic if there are route conflicts
	router := setupFullServer(db, nil)

	if router == nil {
		t.Fatal("Expected router to be created")
	}
}

// TestPublicEndpointsNoAuth verifies that public endpoints don't require auth
func TestPublicEndpointsNoAuth(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(db, nil)

	publicEndpoints := []struct {
		method       string
		path         string
		expectedCode int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/api/health", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
		{"GET", "/swagger/doc.json", http.StatusOK},
		{"POST", "/api/auth/register", http.StatusBadRequest}, // Bad request (no body), but not 401
		{"POST", "/api/auth/login", http.StatusBadRequest},
	}

	for _, endpoint := range publicEndpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			resp := call(t, router, endpoint.method, endpoint.path, "", nil)
			if resp.Code != endpoint.expectedCode {
				t.Errorf("Expected status %d for %s %s, got %d", endpoint.expectedCode, endpoint.method, endpoint.path, resp.Code)
			}
		})
	}
}

// TestProtectedEndpointsRequireAuth verifies that protected endpoints return 401 without auth
func TestProtectedEndpointsRequireAuth(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(db, nil)

	protectedEndpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/api/token"},
		{"PUT", "/api/link"},
		{"GET", "/api/link/my-links"},
		{"GET", "/api/tags"},
		{"POST", "/api/session"},
		{"GET", "/api/shortcuts/x"},
		{"GET", "/api/export"},
	}

	for _, endpoint := range protectedEndpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			resp := call(t, router, endpoint.method, endpoint.path, "", nil)
			if resp.Code != http.StatusUnauthorized {
				t.Errorf("Expected status 401 for %s %s, got %d", endpoint.method, endpoint.path, resp.Code)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(db, nil)

	req, _ := http.NewRequest("OPTIONS", "/api/link", nil)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", resp.Code)
	}
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "chrome-extension://abcdef" {
		t.Errorf("Expected origin to be allowed, got %q", got)
	}
}

// TestExtensionFlow walks the browser extension path: sign in, exchange for an
// extension token, then edit links and tags with it.
func TestExtensionFlow(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(db, nil)

	jwt := registerUser(t, router, "flow@example.com")

	resp := call(t, router, "GET", "/api/token", jwt, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Token exchange failed: %d %s", resp.Code, resp.Body.String())
	}
	var exchanged struct {
		Token string `json:"token"`
	}
	json.Unmarshal(resp.Body.Bytes(), &exchanged)
	ext := exchanged.Token

	resp = call(t, router, "POST", "/api/link", ext, map[string]interface{}{
		"name": "article", "url": "https://example.com/article/", "tags": []string{"work", "news"},
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Create failed: %d %s", resp.Code, resp.Body.String())
	}

	resp = call(t, router, "PUT", "/api/link", ext, map[string]interface{}{
		"currentLinkName": "article",
		"name":            "article",
		"url":             "https://example.com/article",
		"tags":            []string{"news", "urgent"},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("Update failed: %d %s", resp.Code, resp.Body.String())
	}

	resp = call(t, router, "GET", "/api/tags", ext, nil)
	var tags []struct {
		Name string `json:"name"`
	}
	json.Unmarshal(resp.Body.Bytes(), &tags)
	names := map[string]bool{}
	for _, tag := range tags {
		names[tag.Name] = true
	}
	if names["work"] || !names["news"] || !names["urgent"] || len(tags) != 2 {
		t.Errorf("Expected tags {news, urgent}, got %v", tags)
	}

	resp = call(t, router, "POST", "/api/session", ext, map[string]interface{}{
		"name":  "reading",
		"links": []map[string]string{{"name": "dup", "url": "https://example.com/article"}, {"name": "new", "url": "https://new.example.com"}},
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Session create failed: %d %s", resp.Code, resp.Body.String())
	}

	var linkCount int64
	db.Model(&models.Link{}).Count(&linkCount)
	if linkCount != 2 {
		t.Errorf("Expected the saved link to be reused, got %d links", linkCount)
	}

	resp = call(t, router, "GET", "/api/tags/session/open", ext, nil)
	var open struct {
		Action string   `json:"action"`
		URLs   []string `json:"urls"`
	}
	json.Unmarshal(resp.Body.Bytes(), &open)
	if open.Action != "openMultipleLinks" || len(open.URLs) != 1 || open.URLs[0] != "https://new.example.com" {
		t.Errorf("Unexpected open payload %+v", open)
	}
}

func TestLoginRateLimited(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(db, middleware.NewIPRateLimiter(1, 2))

	codes := []int{}
	for i := 0; i < 3; i++ {
		resp := call(t, router, "POST", "/api/auth/login", "", map[string]string{
			"email": "nobody@example.com", "password": "wrong",
		})
		codes = append(codes, resp.Code)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected third login to be limited, got %v", codes)
	}
}

// TestClientAgainstServer drives the Go client against a real listener
func TestClientAgainstServer(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(db, nil)
	srv := httptest.NewServer(router)
	defer srv.Close()

	jwt := registerUser(t, router, "client@example.com")
	call(t, router, "POST", "/api/link", jwt, map[string]interface{}{
		"name": "docs", "url": "https://docs.example.com", "tags": []string{"a", "b"},
	})

	c := client.New(srv.URL, jwt)
	ctx := context.Background()

	links, err := c.Links(ctx, "a")
	if err != nil || len(links) != 1 {
		t.Fatalf("Expected 1 link, got %v %v", links, err)
	}

	edit, err := c.SetTags(ctx, links[0].ID, []string{"b", "c"})
	if err != nil {
		t.Fatalf("SetTags failed: %v", err)
	}
	if len(edit.Attached) != 1 || edit.Attached[0] != "c" || len(edit.Detached) != 1 || edit.Detached[0] != "a" {
		t.Errorf("Unexpected edit %+v", edit)
	}

	if _, err := c.SetTags(ctx, 9999, []string{"x"}); err == nil {
		t.Error("Expected error for a missing link")
	}

	urls, err := c.OpenTag(ctx, "c")
	if err != nil || len(urls) != 1 {
		t.Errorf("Expected 1 URL for tag c, got %v %v", urls, err)
	}
}
