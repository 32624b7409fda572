package shortcuts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Uzaifm127/linkrem/pkg/linkrem/auth"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/models"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	user := models.User{Email: email, PasswordHash: "hash", Name: "Test User"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func createTestLink(t *testing.T, db *gorm.DB, user models.User, name, url string) models.Link {
	link := models.Link{OwnerID: user.ID, Name: name, URL: url}
	if err := db.Create(&link).Error; err != nil {
		t.Fatalf("Failed to create test link: %v", err)
	}
	return link
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api")
	api.Use(auth.AuthMiddleware())
	NewHandler(db, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterRoutes(api)
	return r
}

func getAuthHeader(user models.User) string {
	token, _ := auth.GenerateToken(user.ID, user.Email)
	return "Bearer " + token
}

func do(router *gin.Engine, user models.User, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		buf = bytes.NewBuffer(b)
	}
	req, _ := http.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestSetAndOpenShortcut(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	link := createTestLink(t, db, user, "docs", "https://example.com/page")

	resp := do(router, user, "PUT", fmt.Sprintf("/api/links/%d/shortcut", link.ID), SetShortcutRequest{Key: "docs"})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = do(router, user, "GET", "/api/shortcuts/docs?foo=bar", nil)
	if resp.Code != http.StatusFound {
		t.Fatalf("Expected status 302, got %d", resp.Code)
	}
	if location := resp.Header().Get("Location"); location != "https://example.com/page" {
		t.Errorf("Expected Location 'https://example.com/page', got %s", location)
	}
}

func TestOpenIncrementsClickCount(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	link := createTestLink(t, db, user, "docs", "https://example.com")
	db.Create(&models.Shortcut{OwnerID: user.ID, LinkID: link.ID, Key: "d"})

	for i := 0; i < 2; i++ {
		do(router, user, "GET", "/api/shortcuts/d", nil)
	}

	var updated models.Link
	db.First(&updated, link.ID)
	if updated.ClickCount != 2 {
		t.Errorf("Expected click count 2, got %d", updated.ClickCount)
	}
}

func TestOpenScopedToOwner(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")
	link := createTestLink(t, db, owner, "docs", "https://example.com")
	db.Create(&models.Shortcut{OwnerID: owner.ID, LinkID: link.ID, Key: "d"})

	if resp := do(router, other, "GET", "/api/shortcuts/d", nil); resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for another user, got %d", resp.Code)
	}
	if resp := do(router, owner, "GET", "/api/shortcuts/nonexistent", nil); resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestSetShortcutReplacesKey(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	link := createTestLink(t, db, user, "docs", "https://example.com")
	path := fmt.Sprintf("/api/links/%d/shortcut", link.ID)

	do(router, user, "PUT", path, SetShortcutRequest{Key: "old"})
	resp := do(router, user, "PUT", path, SetShortcutRequest{Key: "new"})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}

	var count int64
	db.Model(&models.Shortcut{}).Where("link_id = ?", link.ID).Count(&count)
	if count != 1 {
		t.Errorf("Expected a single shortcut per link, got %d", count)
	}
	if resp := do(router, user, "GET", "/api/shortcuts/old", nil); resp.Code != http.StatusNotFound {
		t.Errorf("Expected old key to be gone, got %d", resp.Code)
	}
}

func TestSetShortcutValidation(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	other := createTestUser(t, db, "other@example.com")
	first := createTestLink(t, db, user, "first", "https://a.example.com")
	second := createTestLink(t, db, user, "second", "https://b.example.com")

	do(router, user, "PUT", fmt.Sprintf("/api/links/%d/shortcut", first.ID), SetShortcutRequest{Key: "taken"})

	tests := []struct {
		name string
		user models.User
		path string
		key  string
		want int
	}{
		{"bad characters", user, fmt.Sprintf("/api/links/%d/shortcut", second.ID), "has space", http.StatusBadRequest},
		{"empty", user, fmt.Sprintf("/api/links/%d/shortcut", second.ID), "", http.StatusBadRequest},
		{"taken", user, fmt.Sprintf("/api/links/%d/shortcut", second.ID), "taken", http.StatusBadRequest},
		{"not owner", other, fmt.Sprintf("/api/links/%d/shortcut", second.ID), "mine", http.StatusNotFound},
		{"bad id", user, "/api/links/abc/shortcut", "x", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(router, tt.user, "PUT", tt.path, SetShortcutRequest{Key: tt.key})
			if resp.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, resp.Code)
			}
		})
	}
}

func TestListAndDeleteShortcut(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	link := createTestLink(t, db, user, "docs", "https://example.com")
	path := fmt.Sprintf("/api/links/%d/shortcut", link.ID)

	do(router, user, "PUT", path, SetShortcutRequest{Key: "d"})

	resp := do(router, user, "GET", "/api/shortcuts", nil)
	var list []ShortcutResponse
	json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list) != 1 || list[0].Key != "d" || list[0].LinkName != "docs" {
		t.Fatalf("Expected one shortcut 'd' for docs, got %+v", list)
	}

	if resp := do(router, user, "DELETE", path, nil); resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	if resp := do(router, user, "DELETE", path, nil); resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for missing shortcut, got %d", resp.Code)
	}
}
