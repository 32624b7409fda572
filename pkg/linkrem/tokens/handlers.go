// Package tokens issues the long-lived bearer tokens used by the browser extension
// and authenticates requests carrying either a JWT or such a token.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Uzaifm127/linkrem/pkg/linkrem/auth"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	// TokenLength is the length of a generated token in bytes (32 bytes = 64 hex chars)
	TokenLength = 32
	// TokenPrefixLength is the number of characters stored for identification
	TokenPrefixLength = 8
)

// Handler handles extension token requests
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewHandler creates a new extension token handler
func NewHandler(db *gorm.DB, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{db: db, logger: logger}
}

// TokenResponse describes a stored token without its secret
type TokenResponse struct {
	ID          uint       `json:"id"`
	TokenPrefix string     `json:"token_prefix"`
	Description string     `json:"description"`
	LastUsedAt  *time.Time `json:"last_used_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ExchangeResponse carries a freshly minted token (only shown once)
type ExchangeResponse struct {
	Token string `json:"token"`
}

func generateToken() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Exchange mints an extension token for the signed-in user
// @Summary Exchange a session for an extension token
// @Description Mint a long-lived token the browser extension stores and sends as a bearer token
// @Tags tokens
// @Produce json
// @Param description query string false "Label shown in the token list"
// @Success 200 {object} ExchangeResponse
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 429 {object} map[string]string "Too many requests"
// @Security BearerAuth
// @Router /token [get]
func (h *Handler) Exchange(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}

	token, err := generateToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to generate token"})
		return
	}

	description := strings.TrimSpace(c.Query("description"))
	if description == "" {
		description = "Browser extension"
	}

	record := models.ExtensionToken{
		UserID:      userID,
		TokenHash:   hashToken(token),
		TokenPrefix: token[:TokenPrefixLength],
		Description: description,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&record).Error; err != nil {
		h.logger.ErrorContext(c.Request.Context(), "failed to store extension token", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, gin.H{"message": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, ExchangeResponse{Token: token})
}

// List returns the user's extension tokens
// @Summary List extension tokens
// @Tags tokens
// @Produce json
// @Success 200 {array} TokenResponse
// @Security BearerAuth
// @Router /extension-tokens [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var records []models.ExtensionToken
	if err := h.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch tokens"})
		return
	}

	responses := make([]TokenResponse, len(records))
	for i, r := range records {
		responses[i] = TokenResponse{
			ID:          r.ID,
			TokenPrefix: r.TokenPrefix,
			Description: r.Description,
			LastUsedAt:  r.LastUsedAt,
			CreatedAt:   r.CreatedAt,
		}
	}

	c.JSON(http.StatusOK, responses)
}

// Delete revokes an extension token
// @Summary Revoke an extension token
// @Tags tokens
// @Produce json
// @Param id path int true "Token ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Token not found"
// @Security BearerAuth
// @Router /extension-tokens/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	tokenID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid token ID"})
		return
	}

	var record models.ExtensionToken
	if err := h.db.Where("id = ? AND user_id = ?", tokenID, userID).First(&record).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Token not found"})
		return
	}

	if err := h.db.Delete(&record).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Token revoked"})
}

// Validate looks up a raw extension token
func Validate(db *gorm.DB, token string) (*models.ExtensionToken, error) {
	var record models.ExtensionToken
	if err := db.Preload("User").Where("token_hash = ?", hashToken(token)).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// touch records when a token was last used
func touch(db *gorm.DB, tokenID uint) error {
	return db.Model(&models.ExtensionToken{}).Where("id = ?", tokenID).Update("last_used_at", time.Now()).Error
}

// CombinedAuthMiddleware authenticates via JWT or extension token.
// Both are sent as "Authorization: Bearer <token>"; JWTs contain dots,
// extension tokens are hex strings without them.
func CombinedAuthMiddleware(db *gorm.DB, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authorization header required"})
			return
		}

		token, ok := auth.BearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid authorization header format"})
			return
		}

		if strings.Contains(token, ".") {
			claims, err := auth.ValidateToken(token)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid token"})
				return
			}
			auth.SetUser(c, claims.UserID, claims.Email)
			c.Next()
			return
		}

		record, err := Validate(db, token)
		if err != nil || record.User.ID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid token"})
			return
		}

		if err := touch(db, record.ID); err != nil {
			logger.WarnContext(c.Request.Context(), "failed to record token use",
				slog.Uint64("token_id", uint64(record.ID)), slog.Any("error", err))
		}

		auth.SetUser(c, record.UserID, record.User.Email)
		c.Next()
	}
}

// RegisterRoutes registers the token management routes. The group must
// already require a signed-in user; exchangeGuards run in front of the
// exchange endpoint.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, exchangeGuards ...gin.HandlerFunc) {
	rg.GET("/token", append(exchangeGuards, h.Exchange)...)
	rg.GET("/extension-tokens", h.List)
	rg.DELETE("/extension-tokens/:id", h.Delete)
}
