package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gragdev/grag-gateway/internal/crypto"
	"github.com/gragdev/grag-gateway/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type createAPIKeyRequest struct {
	ConnectionID uint64 `json:"connection_id"`
	Name         string `json:"name"`
}

// apiKeyView is the key shape returned on listing. Only the display prefix
// survives issuance; the plaintext is shown once at creation and never again.
type apiKeyView struct {
	ID         uint64     `json:"id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	Status     string     `json:"status"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func viewAPIKey(key *models.APIKey) apiKeyView {
	return apiKeyView{
		ID:         key.ID,
		Name:       key.Name,
		KeyPrefix:  key.KeyPrefix,
		Status:     key.Status,
		LastUsedAt: key.LastUsedAt,
		CreatedAt:  key.CreatedAt,
	}
}

// issueAPIKey generates and persists a key for the connection, returning the
// plaintext for one-time display.
func (h *Handlers) issueAPIKey(c *gin.Context, userID, connectionID uint64, name string) (string, *models.APIKey, error) {
	plaintext, hash, prefix, errGenerate := crypto.GenerateAPIKey()
	if errGenerate != nil {
		return "", nil, errGenerate
	}
	record := &models.APIKey{
		UserID:       userID,
		ConnectionID: connectionID,
		KeyHash:      hash,
		KeyPrefix:    prefix,
		Name:         name,
		Status:       models.APIKeyStatusActive,
	}
	if errCreate := h.store.CreateAPIKey(c.Request.Context(), record); errCreate != nil {
		return "", nil, errCreate
	}
	return plaintext, record, nil
}

// CreateAPIKey issues a new key against one of the tenant's connections.
func (h *Handlers) CreateAPIKey(c *gin.Context) {
	session, ok := SessionFrom(c)
	if !ok {
		failJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	var req createAPIKeyRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil || req.ConnectionID == 0 {
		failJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", nil)
		return
	}

	conn, errFind := h.store.FindConnectionByID(c.Request.Context(), req.ConnectionID)
	if errFind != nil {
		log.WithError(errFind).Error("apikey: connection lookup failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not issue API key", nil)
		return
	}
	if conn == nil || conn.UserID != session.UserID {
		failJSON(c, http.StatusNotFound, "NOT_FOUND", "Connection not found", nil)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "API key"
	}
	plaintext, record, errIssue := h.issueAPIKey(c, session.UserID, conn.ID, name)
	if errIssue != nil {
		log.WithError(errIssue).Error("apikey: issue failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not issue API key", nil)
		return
	}

	okJSON(c, http.StatusCreated, gin.H{
		"id":         record.ID,
		"key":        plaintext,
		"key_prefix": record.KeyPrefix,
		"name":       record.Name,
	})
}

// ListAPIKeys returns the tenant's issued keys.
func (h *Handlers) ListAPIKeys(c *gin.Context) {
	session, ok := SessionFrom(c)
	if !ok {
		failJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	keys, errList := h.store.ListAPIKeys(c.Request.Context(), session.UserID)
	if errList != nil {
		log.WithError(errList).Error("apikey: list failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not list API keys", nil)
		return
	}
	views := make([]apiKeyView, 0, len(keys))
	for i := range keys {
		views = append(views, viewAPIKey(&keys[i]))
	}
	okJSON(c, http.StatusOK, gin.H{"api_keys": views})
}

// RevokeAPIKey permanently disables one of the tenant's keys. Cached auth
// entries for the key expire on their own TTL.
func (h *Handlers) RevokeAPIKey(c *gin.Context) {
	session, ok := SessionFrom(c)
	if !ok {
		failJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}
	id, okID := parseIDParam(c, "id")
	if !okID {
		return
	}

	if errRevoke := h.store.RevokeAPIKey(c.Request.Context(), session.UserID, id); errRevoke != nil {
		if errors.Is(errRevoke, gorm.ErrRecordNotFound) {
			failJSON(c, http.StatusNotFound, "NOT_FOUND", "API key not found", nil)
			return
		}
		log.WithError(errRevoke).Error("apikey: revoke failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not revoke API key", nil)
		return
	}
	okJSON(c, http.StatusOK, gin.H{"revoked": id})
}
