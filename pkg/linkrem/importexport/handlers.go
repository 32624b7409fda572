package importexport

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Uzaifm127/linkrem/pkg/linkrem/apierr"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/auth"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/models"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/reconcile"
	"github.com/gin-gonic/gin"
)

// Handler handles import/export requests
type Handler struct {
	engine *reconcile.Engine
	logger *slog.Logger
}

// NewHandler creates a new import/export handler
func NewHandler(engine *reconcile.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// PinboardBookmark represents a bookmark in Pinboard JSON format.
// Tags are space-separated.
type PinboardBookmark struct {
	Href        string `json:"href"`
	Description string `json:"description"`
	Extended    string `json:"extended"`
	Tags        string `json:"tags"`
	Time        string `json:"time"`
	Shared      string `json:"shared"`
	ToRead      string `json:"toread"`
	Meta        string `json:"meta,omitempty"`
	Hash        string `json:"hash,omitempty"`
}

// ImportRequest represents an import request
type ImportRequest struct {
	Bookmarks []PinboardBookmark `json:"bookmarks" binding:"required"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Import imports bookmarks from Pinboard JSON format. The description
// becomes the link name; bookmarks whose name is already taken are skipped.
// @Summary Import bookmarks
// @Description Import bookmarks in Pinboard JSON format
// @Tags importexport
// @Accept json
// @Produce json
// @Param request body ImportRequest true "Bookmarks"
// @Success 200 {object} ImportResult
// @Failure 400 {object} map[string]string "Invalid body"
// @Security BearerAuth
// @Router /import [post]
func (h *Handler) Import(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	ctx := c.Request.Context()

	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	result := ImportResult{Errors: []string{}}
	skip := func(i int, reason string) {
		result.Errors = append(result.Errors, "bookmark "+strconv.Itoa(i)+": "+reason)
		result.Skipped++
	}

	for i, bookmark := range req.Bookmarks {
		createdAt, err := parseTime(bookmark.Time)
		if err != nil {
			skip(i, "invalid time format")
			continue
		}

		name := bookmark.Description
		if strings.TrimSpace(name) == "" {
			name = bookmark.Href
		}

		link, err := h.engine.CreateLink(ctx, userID, reconcile.CreateInput{
			Name: name,
			URL:  bookmark.Href,
			Tags: strings.Fields(bookmark.Tags),
		})
		if err != nil {
			var v *reconcile.ValidationError
			if !errors.As(err, &v) && !errors.Is(err, reconcile.ErrConflict) {
				h.logger.ErrorContext(ctx, "bookmark import failed",
					slog.Int("index", i), slog.Any("error", err))
			}
			skip(i, apierr.Message(err, "Link"))
			continue
		}

		if !createdAt.IsZero() {
			h.engine.DB().WithContext(ctx).Model(link).UpdateColumn("created_at", createdAt)
		}
		result.Imported++
	}

	h.logger.InfoContext(ctx, "bookmarks imported",
		slog.Uint64("owner_id", uint64(userID)),
		slog.Int("imported", result.Imported),
		slog.Int("skipped", result.Skipped))

	c.JSON(http.StatusOK, result)
}

func toBookmark(link models.Link) PinboardBookmark {
	return PinboardBookmark{
		Href:        link.URL,
		Description: link.Name,
		Tags:        strings.Join(link.TagNames(), " "),
		Time:        link.CreatedAt.UTC().Format(time.RFC3339),
		Shared:      "no",
		ToRead:      "no",
	}
}

// Export exports the user's links in Pinboard JSON format
// @Summary Export bookmarks
// @Tags importexport
// @Produce json
// @Param download query bool false "Send as attachment"
// @Success 200 {array} PinboardBookmark
// @Security BearerAuth
// @Router /export [get]
func (h *Handler) Export(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var links []models.Link
	err := h.engine.DB().WithContext(c.Request.Context()).
		Preload("Tags").
		Where("owner_id = ?", userID).
		Order("created_at DESC").
		Find(&links).Error
	if err != nil {
		apierr.Write(c, h.logger, err, "Link")
		return
	}

	bookmarks := make([]PinboardBookmark, len(links))
	for i, link := range links {
		bookmarks[i] = toBookmark(link)
	}

	if c.Query("download") == "true" {
		c.Header("Content-Disposition", "attachment; filename=linkrem-export.json")
	}

	c.JSON(http.StatusOK, bookmarks)
}

// ExportSingle exports one link in Pinboard JSON format
// @Summary Export a bookmark
// @Tags importexport
// @Produce json
// @Param id path int true "Link ID"
// @Success 200 {object} PinboardBookmark
// @Failure 404 {object} map[string]string "Link not found"
// @Security BearerAuth
// @Router /export/{id} [get]
func (h *Handler) ExportSingle(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid link ID"})
		return
	}

	var link models.Link
	err = h.engine.DB().WithContext(c.Request.Context()).
		Preload("Tags").
		Where("owner_id = ? AND id = ?", userID, id).
		First(&link).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Link not found"})
		return
	}

	c.JSON(http.StatusOK, toBookmark(link))
}

// RegisterRoutes registers import/export routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/import", h.Import)
	rg.GET("/export", h.Export)
	rg.GET("/export/:id", h.ExportSingle)
}
