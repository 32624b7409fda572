package tags

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Uzaifm127/linkrem/pkg/linkrem/apierr"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/auth"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/cache"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/models"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/reconcile"
	"github.com/gin-gonic/gin"
)

// OpenMultipleLinks is the action the web client forwards to the extension
const OpenMultipleLinks = "openMultipleLinks"

// Handler handles tag-related requests
type Handler struct {
	engine *reconcile.Engine
	cache  *cache.TagCache
	logger *slog.Logger
}

// NewHandler creates a new tags handler. tagCache may be nil.
func NewHandler(engine *reconcile.Engine, tagCache *cache.TagCache, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, cache: tagCache, logger: logger}
}

// TagResponse represents a tag in API responses
type TagResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Locked    bool   `json:"locked"`
	LinkCount int    `json:"link_count"`
}

// SetTagsRequest represents the request to set tags on a link
type SetTagsRequest struct {
	Tags []string `json:"tags"`
}

// LinkTagsResponse is the tag set of a link after an edit
type LinkTagsResponse struct {
	Message  string   `json:"message"`
	Changed  bool     `json:"changed"`
	Attached []string `json:"attached"`
	Detached []string `json:"detached"`
	Tags     []string `json:"tags"`
}

// OpenResponse asks the extension to open a set of URLs
type OpenResponse struct {
	Action string   `json:"action"`
	URLs   []string `json:"urls"`
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func linkID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid link ID"})
		return 0, false
	}
	return uint(id), true
}

// List returns the user's tags with the number of links carrying each
// @Summary List my tags
// @Tags tags
// @Produce json
// @Success 200 {array} TagResponse
// @Security BearerAuth
// @Router /tags [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	ctx := c.Request.Context()

	var tags []TagResponse
	if h.cache != nil && h.cache.Load(ctx, userID, &tags) {
		c.JSON(http.StatusOK, tags)
		return
	}

	err := h.engine.DB().WithContext(ctx).Table("tags").
		Select("tags.id, tags.tag_name AS name, tags.locked, COUNT(link_tags.link_id) AS link_count").
		Joins("LEFT JOIN link_tags ON link_tags.tag_id = tags.id").
		Where("tags.owner_id = ?", userID).
		Group("tags.id, tags.tag_name, tags.locked").
		Order("link_count DESC, tags.tag_name").
		Scan(&tags).Error
	if err != nil {
		apierr.Write(c, h.logger, err, "Tag")
		return
	}
	if tags == nil {
		tags = []TagResponse{}
	}

	if h.cache != nil {
		h.cache.Save(ctx, userID, tags)
	}
	c.JSON(http.StatusOK, tags)
}

// GetLinkTags returns the tag names of a link
// @Summary Get a link's tags
// @Tags tags
// @Produce json
// @Param id path int true "Link ID"
// @Success 200 {array} string
// @Failure 404 {object} map[string]string "Link not found"
// @Security BearerAuth
// @Router /links/{id}/tags [get]
func (h *Handler) GetLinkTags(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	id, ok := linkID(c)
	if !ok {
		return
	}

	var link models.Link
	err := h.engine.DB().WithContext(c.Request.Context()).
		Preload("Tags").
		Where("owner_id = ? AND id = ?", userID, id).
		First(&link).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Link not found"})
		return
	}

	c.JSON(http.StatusOK, orEmpty(link.TagNames()))
}

// SetLinkTags replaces the tag set of a link
// @Summary Set a link's tags
// @Description Replace the link's tags. Tags no longer used by any link are removed.
// @Tags tags
// @Accept json
// @Produce json
// @Param id path int true "Link ID"
// @Param request body SetTagsRequest true "Desired tags"
// @Success 200 {object} LinkTagsResponse
// @Failure 404 {object} map[string]string "Link not found"
// @Security BearerAuth
// @Router /links/{id}/tags [put]
func (h *Handler) SetLinkTags(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	id, ok := linkID(c)
	if !ok {
		return
	}

	var req SetTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	res, err := h.engine.SetTags(c.Request.Context(), userID, id, req.Tags)
	h.respond(c, res, err)
}

// AddLinkTag attaches a single tag to a link
// @Summary Add a tag to a link
// @Tags tags
// @Produce json
// @Param id path int true "Link ID"
// @Param tag path string true "Tag name"
// @Success 200 {object} LinkTagsResponse
// @Failure 404 {object} map[string]string "Link not found"
// @Security BearerAuth
// @Router /links/{id}/tags/{tag} [post]
func (h *Handler) AddLinkTag(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	id, ok := linkID(c)
	if !ok {
		return
	}

	res, err := h.engine.AttachTag(c.Request.Context(), userID, id, c.Param("tag"))
	h.respond(c, res, err)
}

// RemoveLinkTag detaches a single tag from a link
// @Summary Remove a tag from a link
// @Tags tags
// @Produce json
// @Param id path int true "Link ID"
// @Param tag path string true "Tag name"
// @Success 200 {object} LinkTagsResponse
// @Failure 404 {object} map[string]string "Link not found"
// @Security BearerAuth
// @Router /links/{id}/tags/{tag} [delete]
func (h *Handler) RemoveLinkTag(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	id, ok := linkID(c)
	if !ok {
		return
	}

	res, err := h.engine.DetachTag(c.Request.Context(), userID, id, c.Param("tag"))
	h.respond(c, res, err)
}

func (h *Handler) respond(c *gin.Context, res *reconcile.Result, err error) {
	if err != nil {
		apierr.Write(c, h.logger, err, "Link")
		return
	}

	message := "Tags updated"
	if !res.Changed {
		message = "Tags unchanged"
	}
	c.JSON(http.StatusOK, LinkTagsResponse{
		Message:  message,
		Changed:  res.Changed,
		Attached: orEmpty(res.Attached),
		Detached: orEmpty(res.Detached),
		Tags:     orEmpty(res.Link.TagNames()),
	})
}

// Delete removes a tag from every link and deletes it
// @Summary Delete a tag
// @Tags tags
// @Produce json
// @Param tag path string true "Tag name"
// @Success 200 {object} map[string]string "Tag deleted"
// @Failure 400 {object} map[string]string "Tag is reserved"
// @Failure 404 {object} map[string]string "Tag not found"
// @Security BearerAuth
// @Router /tags/{tag} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	if err := h.engine.DeleteTag(c.Request.Context(), userID, c.Param("tag")); err != nil {
		apierr.Write(c, h.logger, err, "Tag")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tag deleted successfully"})
}

// Open returns the URLs of every link carrying a tag
// @Summary Open all links of a tag
// @Description Returns the bulk-open payload the web client forwards to the browser extension
// @Tags tags
// @Produce json
// @Param tag path string true "Tag name"
// @Success 200 {object} OpenResponse
// @Failure 404 {object} map[string]string "Tag not found"
// @Security BearerAuth
// @Router /tags/{tag}/open [get]
func (h *Handler) Open(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	db := h.engine.DB().WithContext(c.Request.Context())

	var tag models.Tag
	if err := db.Where("owner_id = ? AND tag_name = ?", userID, c.Param("tag")).First(&tag).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Tag not found"})
		return
	}

	var urls []string
	err := db.Model(&models.Link{}).
		Joins("JOIN link_tags ON link_tags.link_id = links.id").
		Where("link_tags.tag_id = ? AND links.owner_id = ?", tag.ID, userID).
		Order("links.name").
		Pluck("links.url", &urls).Error
	if err != nil {
		apierr.Write(c, h.logger, err, "Tag")
		return
	}

	c.JSON(http.StatusOK, OpenResponse{Action: OpenMultipleLinks, URLs: orEmpty(urls)})
}

// RegisterRoutes registers tag routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tags", h.List)
	rg.DELETE("/tags/:tag", h.Delete)
	rg.GET("/tags/:tag/open", h.Open)

	// Link tag operations
	rg.GET("/links/:id/tags", h.GetLinkTags)
	rg.PUT("/links/:id/tags", h.SetLinkTags)
	rg.POST("/links/:id/tags/:tag", h.AddLinkTag)
	rg.DELETE("/links/:id/tags/:tag", h.RemoveLinkTag)
}
