package links

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Uzaifm127/linkrem/pkg/linkrem/apierr"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/auth"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/models"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/reconcile"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/tagdiff"
	"github.com/gin-gonic/gin"
)

// Handler handles link-related requests
type Handler struct {
	engine *reconcile.Engine
	logger *slog.Logger
}

// NewHandler creates a new links handler
func NewHandler(engine *reconcile.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// CreateLinkRequest represents the request to create a link.
// TagsString is a comma-separated alternative to Tags; both are merged.
type CreateLinkRequest struct {
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Tags       []string `json:"tags"`
	TagsString string   `json:"tagsString"`
	Shortcut   string   `json:"shortcut"`
}

// UpdateLinkRequest is the edit form of a link. The change flags are optional;
// when omitted the server compares with the stored value. Leaving out tags
// keeps the current tag set.
type UpdateLinkRequest struct {
	CurrentLinkName string    `json:"currentLinkName"`
	Name            string    `json:"name"`
	URL             string    `json:"url"`
	Tags            *[]string `json:"tags"`
	NameChange      *bool     `json:"nameChange"`
	URLChange       *bool     `json:"URLChange"`
	TagChange       *bool     `json:"tagChange"`
}

// DeleteLinkRequest names the link to delete
type DeleteLinkRequest struct {
	CurrentLinkName string `json:"currentLinkName"`
}

// LinkResponse represents a link in API responses
type LinkResponse struct {
	ID         uint     `json:"id"`
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Tags       []string `json:"tags"`
	Shortcut   string   `json:"shortcut,omitempty"`
	ClickCount uint     `json:"click_count"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

// UpdateLinkResponse reports what an edit did
type UpdateLinkResponse struct {
	Message  string       `json:"message"`
	Changed  bool         `json:"changed"`
	Attached []string     `json:"attached"`
	Detached []string     `json:"detached"`
	Link     LinkResponse `json:"link"`
}

// ToResponse converts a link with preloaded tags and shortcut
func ToResponse(link models.Link) LinkResponse {
	tags := link.TagNames()
	if tags == nil {
		tags = []string{}
	}
	resp := LinkResponse{
		ID:         link.ID,
		Name:       link.Name,
		URL:        link.URL,
		Tags:       tags,
		ClickCount: link.ClickCount,
		CreatedAt:  link.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  link.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if link.Shortcut != nil {
		resp.Shortcut = link.Shortcut.Key
	}
	return resp
}

// likeEscaper quotes LIKE wildcards with '!' as the escape character
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Create creates a new link
// @Summary Create a link
// @Description Save a URL under a name, connecting or creating its tags
// @Tags links
// @Accept json
// @Produce json
// @Param request body CreateLinkRequest true "Link details"
// @Success 201 {object} LinkResponse
// @Failure 400 {object} map[string]string "Validation error or duplicate name"
// @Security BearerAuth
// @Router /link [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	tags := append(append([]string{}, req.Tags...), tagdiff.Parse(req.TagsString)...)
	link, err := h.engine.CreateLink(c.Request.Context(), userID, reconcile.CreateInput{
		Name:     req.Name,
		URL:      req.URL,
		Tags:     tags,
		Shortcut: req.Shortcut,
	})
	if err != nil {
		apierr.Write(c, h.logger, err, "Link")
		return
	}

	c.JSON(http.StatusCreated, ToResponse(*link))
}

// Update edits a link's name, URL and tags
// @Summary Update a link
// @Description Apply an edit to the link named currentLinkName. Tags are reconciled against the stored set and orphaned tags are removed.
// @Tags links
// @Accept json
// @Produce json
// @Param request body UpdateLinkRequest true "Edit form"
// @Success 200 {object} UpdateLinkResponse
// @Failure 400 {object} map[string]string "Validation error or name collision"
// @Failure 404 {object} map[string]string "Link not found"
// @Security BearerAuth
// @Router /link [put]
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if req.CurrentLinkName == "" {
		req.CurrentLinkName = req.Name
	}

	res, err := h.engine.UpdateLink(c.Request.Context(), userID, reconcile.UpdateInput{
		CurrentName: req.CurrentLinkName,
		Name:        req.Name,
		URL:         req.URL,
		Tags:        req.Tags,
		NameChange:  req.NameChange,
		URLChange:   req.URLChange,
		TagChange:   req.TagChange,
	})
	if err != nil {
		apierr.Write(c, h.logger, err, "Link")
		return
	}

	message := "Link updated successfully"
	if !res.Changed {
		message = "Link unchanged"
	}
	c.JSON(http.StatusOK, UpdateLinkResponse{
		Message:  message,
		Changed:  res.Changed,
		Attached: orEmpty(res.Attached),
		Detached: orEmpty(res.Detached),
		Link:     ToResponse(res.Link),
	})
}

// Delete deletes a link by name
// @Summary Delete a link
// @Tags links
// @Accept json
// @Produce json
// @Param request body DeleteLinkRequest true "Link to delete"
// @Success 200 {object} map[string]string "Link deleted"
// @Failure 404 {object} map[string]string "Link not found"
// @Security BearerAuth
// @Router /link [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req DeleteLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CurrentLinkName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "currentLinkName is required"})
		return
	}

	if err := h.engine.DeleteLink(c.Request.Context(), userID, req.CurrentLinkName); err != nil {
		apierr.Write(c, h.logger, err, "Link")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Link deleted successfully"})
}

// MyLinks lists the user's links
// @Summary List my links
// @Tags links
// @Produce json
// @Param q query string false "Search name and URL"
// @Param tag query string false "Filter by tag name"
// @Param limit query int false "Max results (default 50, max 100)"
// @Param offset query int false "Offset for pagination"
// @Success 200 {object} map[string][]LinkResponse
// @Security BearerAuth
// @Router /link/my-links [get]
func (h *Handler) MyLinks(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	query := h.engine.DB().WithContext(c.Request.Context()).
		Preload("Tags").Preload("Shortcut").
		Where("links.owner_id = ?", userID).
		Order("links.created_at DESC")

	if q := c.Query("q"); q != "" {
		term := "%" + likeEscaper.Replace(q) + "%"
		query = query.Where("links.name LIKE ? ESCAPE '!' OR links.url LIKE ? ESCAPE '!'", term, term)
	}
	if tag := c.Query("tag"); tag != "" {
		query = query.Joins("JOIN link_tags ON link_tags.link_id = links.id").
			Joins("JOIN tags ON tags.id = link_tags.tag_id").
			Where("tags.tag_name = ?", tag)
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	var links []models.Link
	if err := query.Limit(limit).Offset(offset).Find(&links).Error; err != nil {
		apierr.Write(c, h.logger, err, "Link")
		return
	}

	responses := make([]LinkResponse, len(links))
	for i, link := range links {
		responses[i] = ToResponse(link)
	}

	c.JSON(http.StatusOK, gin.H{"links": responses})
}

// Get returns one of the user's links
// @Summary Get a link
// @Tags links
// @Produce json
// @Param id path int true "Link ID"
// @Success 200 {object} LinkResponse
// @Failure 404 {object} map[string]string "Link not found"
// @Security BearerAuth
// @Router /links/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	linkID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid link ID"})
		return
	}

	var link models.Link
	err = h.engine.DB().WithContext(c.Request.Context()).
		Preload("Tags").Preload("Shortcut").
		Where("owner_id = ? AND id = ?", userID, linkID).
		First(&link).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Link not found"})
		return
	}

	c.JSON(http.StatusOK, ToResponse(link))
}

// RegisterRoutes registers link routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/link", h.Create)
	rg.PUT("/link", h.Update)
	rg.DELETE("/link", h.Delete)
	rg.GET("/link/my-links", h.MyLinks)
	rg.GET("/links/:id", h.Get)
}
