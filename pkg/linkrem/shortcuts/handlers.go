package shortcuts

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Uzaifm127/linkrem/pkg/linkrem/apierr"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/auth"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/models"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/reconcile"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles shortcut keys and their redirects
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewHandler creates a new shortcuts handler
func NewHandler(db *gorm.DB, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{db: db, logger: logger}
}

// SetShortcutRequest binds a key to a link
type SetShortcutRequest struct {
	Key string `json:"key"`
}

// ShortcutResponse represents a shortcut in API responses
type ShortcutResponse struct {
	Key      string `gorm:"column:shortcut_key" json:"key"`
	LinkID   uint   `json:"link_id"`
	LinkName string `json:"link_name"`
	URL      string `json:"url"`
}

func (h *Handler) ownedLink(c *gin.Context) (*models.Link, bool) {
	userID, _ := auth.GetUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid link ID"})
		return nil, false
	}

	var link models.Link
	err = h.db.WithContext(c.Request.Context()).
		Preload("Shortcut").
		Where("owner_id = ? AND id = ?", userID, id).
		First(&link).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Link not found"})
		return nil, false
	}
	return &link, true
}

// List returns the user's shortcuts
// @Summary List my shortcuts
// @Tags shortcuts
// @Produce json
// @Success 200 {array} ShortcutResponse
// @Security BearerAuth
// @Router /shortcuts [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var out []ShortcutResponse
	err := h.db.WithContext(c.Request.Context()).Table("shortcuts").
		Select("shortcuts.shortcut_key, shortcuts.link_id, links.name AS link_name, links.url").
		Joins("JOIN links ON links.id = shortcuts.link_id").
		Where("shortcuts.owner_id = ?", userID).
		Order("shortcuts.shortcut_key").
		Scan(&out).Error
	if err != nil {
		apierr.Write(c, h.logger, err, "Shortcut")
		return
	}
	if out == nil {
		out = []ShortcutResponse{}
	}

	c.JSON(http.StatusOK, out)
}

// Set binds a key to a link, replacing any key the link already had
// @Summary Set a link's shortcut
// @Tags shortcuts
// @Accept json
// @Produce json
// @Param id path int true "Link ID"
// @Param request body SetShortcutRequest true "Shortcut key"
// @Success 200 {object} ShortcutResponse
// @Failure 400 {object} map[string]string "Invalid or taken key"
// @Failure 404 {object} map[string]string "Link not found"
// @Security BearerAuth
// @Router /links/{id}/shortcut [put]
func (h *Handler) Set(c *gin.Context) {
	link, ok := h.ownedLink(c)
	if !ok {
		return
	}

	var req SetShortcutRequest
	if err := c.ShouldBindJSON(&req); err != nil || !reconcile.ShortcutKeyPattern.MatchString(req.Key) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Shortcut must contain only letters, numbers, hyphens, and underscores"})
		return
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.Shortcut{}).
			Where("owner_id = ? AND shortcut_key = ? AND link_id <> ?", link.OwnerID, req.Key, link.ID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return reconcile.ErrConflict
		}
		if link.Shortcut != nil {
			return tx.Model(link.Shortcut).Update("shortcut_key", req.Key).Error
		}
		return tx.Create(&models.Shortcut{OwnerID: link.OwnerID, LinkID: link.ID, Key: req.Key}).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = reconcile.ErrConflict
	}
	if err != nil {
		apierr.Write(c, h.logger, err, "Shortcut")
		return
	}

	c.JSON(http.StatusOK, ShortcutResponse{Key: req.Key, LinkID: link.ID, LinkName: link.Name, URL: link.URL})
}

// Delete removes a link's shortcut
// @Summary Remove a link's shortcut
// @Tags shortcuts
// @Produce json
// @Param id path int true "Link ID"
// @Success 200 {object} map[string]string "Shortcut removed"
// @Failure 404 {object} map[string]string "Link or shortcut not found"
// @Security BearerAuth
// @Router /links/{id}/shortcut [delete]
func (h *Handler) Delete(c *gin.Context) {
	link, ok := h.ownedLink(c)
	if !ok {
		return
	}
	if link.Shortcut == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Shortcut not found"})
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Delete(link.Shortcut).Error; err != nil {
		apierr.Write(c, h.logger, err, "Shortcut")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Shortcut removed"})
}

// Open redirects to the link bound to key and counts the click
// @Summary Open a shortcut
// @Tags shortcuts
// @Param key path string true "Shortcut key"
// @Success 302
// @Failure 404 {object} map[string]string "Shortcut not found"
// @Security BearerAuth
// @Router /shortcuts/{key} [get]
func (h *Handler) Open(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	db := h.db.WithContext(c.Request.Context())

	var link models.Link
	err := db.Joins("JOIN shortcuts ON shortcuts.link_id = links.id").
		Where("shortcuts.owner_id = ? AND shortcuts.shortcut_key = ?", userID, c.Param("key")).
		First(&link).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Shortcut not found"})
		return
	}

	if err := db.Model(&link).UpdateColumn("click_count", gorm.Expr("click_count + 1")).Error; err != nil {
		h.logger.WarnContext(c.Request.Context(), "click count update failed",
			slog.Uint64("link_id", uint64(link.ID)), slog.Any("error", err))
	}

	c.Redirect(http.StatusFound, link.URL)
}

// RegisterRoutes registers shortcut routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/shortcuts", h.List)
	rg.GET("/shortcuts/:key", h.Open)
	rg.PUT("/links/:id/shortcut", h.Set)
	rg.DELETE("/links/:id/shortcut", h.Delete)
}
