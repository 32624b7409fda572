package sessions

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Uzaifm127/linkrem/pkg/linkrem/apierr"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/auth"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/links"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/models"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/reconcile"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/tags"
	"github.com/gin-gonic/gin"
)

// Handler handles session-related requests
type Handler struct {
	engine *reconcile.Engine
	logger *slog.Logger
}

// NewHandler creates a new sessions handler
func NewHandler(engine *reconcile.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// SessionLinkRequest is one tab of a session
type SessionLinkRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CreateSessionRequest represents the request to save a session
type CreateSessionRequest struct {
	Name  string               `json:"name"`
	Links []SessionLinkRequest `json:"links"`
}

// SessionResponse represents a session in API responses
type SessionResponse struct {
	ID        uint                 `json:"id"`
	Name      string               `json:"name"`
	Links     []links.LinkResponse `json:"links"`
	CreatedAt string               `json:"created_at"`
}

func toResponse(s models.Session) SessionResponse {
	resp := SessionResponse{
		ID:        s.ID,
		Name:      s.Name,
		Links:     make([]links.LinkResponse, len(s.Links)),
		CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
	}
	for i, l := range s.Links {
		resp.Links[i] = links.ToResponse(l)
	}
	return resp
}

func sessionID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid session ID"})
		return 0, false
	}
	return uint(id), true
}

// Create saves a named set of tabs
// @Summary Create a session
// @Description Save a set of tabs. Links already saved under the same URL are reused; new links get the session tag.
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body CreateSessionRequest true "Session details"
// @Success 201 {object} SessionResponse
// @Failure 400 {object} map[string]string "Validation error or duplicate name"
// @Security BearerAuth
// @Router /session [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	in := make([]reconcile.SessionLink, len(req.Links))
	for i, l := range req.Links {
		in[i] = reconcile.SessionLink{Name: l.Name, URL: l.URL}
	}

	session, err := h.engine.CreateSession(c.Request.Context(), userID, req.Name, in)
	if err != nil {
		apierr.Write(c, h.logger, err, "Session")
		return
	}

	c.JSON(http.StatusCreated, toResponse(*session))
}

// MySessions lists the user's sessions with their links and tags
// @Summary List my sessions
// @Tags sessions
// @Produce json
// @Success 200 {object} map[string][]SessionResponse
// @Security BearerAuth
// @Router /session/my-sessions [get]
func (h *Handler) MySessions(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var sessions []models.Session
	err := h.engine.DB().WithContext(c.Request.Context()).
		Preload("Links.Tags").Preload("Links.Shortcut").
		Where("owner_id = ?", userID).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		apierr.Write(c, h.logger, err, "Session")
		return
	}

	responses := make([]SessionResponse, len(sessions))
	for i, s := range sessions {
		responses[i] = toResponse(s)
	}

	c.JSON(http.StatusOK, gin.H{"sessions": responses})
}

func (h *Handler) load(c *gin.Context) (*models.Session, bool) {
	userID, _ := auth.GetUserID(c)
	id, ok := sessionID(c)
	if !ok {
		return nil, false
	}

	var session models.Session
	err := h.engine.DB().WithContext(c.Request.Context()).
		Preload("Links.Tags").Preload("Links.Shortcut").
		Where("owner_id = ? AND id = ?", userID, id).
		First(&session).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Session not found"})
		return nil, false
	}
	return &session, true
}

// Get returns a session
// @Summary Get a session
// @Tags sessions
// @Produce json
// @Param id path int true "Session ID"
// @Success 200 {object} SessionResponse
// @Failure 404 {object} map[string]string "Session not found"
// @Security BearerAuth
// @Router /sessions/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	session, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toResponse(*session))
}

// Delete removes a session, keeping its links
// @Summary Delete a session
// @Tags sessions
// @Produce json
// @Param id path int true "Session ID"
// @Success 200 {object} map[string]string "Session deleted"
// @Failure 404 {object} map[string]string "Session not found"
// @Security BearerAuth
// @Router /sessions/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	id, ok := sessionID(c)
	if !ok {
		return
	}

	if err := h.engine.DeleteSession(c.Request.Context(), userID, id); err != nil {
		apierr.Write(c, h.logger, err, "Session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session deleted successfully"})
}

// Open returns the URLs of a session's links
// @Summary Open a session
// @Description Returns the bulk-open payload the web client forwards to the browser extension
// @Tags sessions
// @Produce json
// @Param id path int true "Session ID"
// @Success 200 {object} tags.OpenResponse
// @Failure 404 {object} map[string]string "Session not found"
// @Security BearerAuth
// @Router /sessions/{id}/open [get]
func (h *Handler) Open(c *gin.Context) {
	session, ok := h.load(c)
	if !ok {
		return
	}

	urls := make([]string, len(session.Links))
	for i, l := range session.Links {
		urls[i] = l.URL
	}
	c.JSON(http.StatusOK, tags.OpenResponse{Action: tags.OpenMultipleLinks, URLs: urls})
}

// RegisterRoutes registers session routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/session", h.Create)
	rg.GET("/session/my-sessions", h.MySessions)
	rg.GET("/sessions/:id", h.Get)
	rg.DELETE("/sessions/:id", h.Delete)
	rg.GET("/sessions/:id/open", h.Open)
}
