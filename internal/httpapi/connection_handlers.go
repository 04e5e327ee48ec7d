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

type createConnectionRequest struct {
	Name            string `json:"name"`
	GeminiAPIKey    string `json:"gemini_api_key"`
	DefaultCorpusID string `json:"default_corpus_id"`
}

// connectionView is the connection shape returned to the owner. The stored
// credential never appears here, encrypted or otherwise.
type connectionView struct {
	ID              uint64    `json:"id"`
	Name            string    `json:"name"`
	DefaultCorpusID string    `json:"default_corpus_id,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

func viewConnection(conn *models.Connection) connectionView {
	return connectionView{
		ID:              conn.ID,
		Name:            conn.Name,
		DefaultCorpusID: conn.DefaultCorpusID,
		Status:          conn.Status,
		CreatedAt:       conn.CreatedAt,
	}
}

// CreateConnection registers a Gemini credential for the tenant. The upstream
// key is probed before acceptance, sealed at rest, and a first API key is
// issued alongside; its plaintext appears in this response only.
func (h *Handlers) CreateConnection(c *gin.Context) {
	session, ok := SessionFrom(c)
	if !ok {
		failJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	var req createConnectionRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		failJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.GeminiAPIKey) == "" {
		failJSON(c, http.StatusBadRequest, "MISSING_GEMINI_KEY", "A Gemini API key is required", nil)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Default connection"
	}

	if failure := h.checkConnectionCap(c, session.UserID, session.Plan); failure {
		return
	}

	if errVerify := h.gemini.VerifyAPIKey(c.Request.Context(), req.GeminiAPIKey); errVerify != nil {
		log.WithError(errVerify).WithField("user_id", session.UserID).Warn("connection: upstream probe failed")
		failJSON(c, http.StatusBadRequest, "INVALID_GEMINI_KEY", "The Gemini API key was rejected by the upstream API", nil)
		return
	}

	sealed, errEncrypt := crypto.Encrypt(req.GeminiAPIKey, h.encryptionKey)
	if errEncrypt != nil {
		log.WithError(errEncrypt).Error("connection: encrypt credential failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not store connection", nil)
		return
	}

	conn := &models.Connection{
		UserID:                session.UserID,
		Name:                  name,
		GeminiAPIKeyEncrypted: sealed,
		DefaultCorpusID:       strings.TrimSpace(req.DefaultCorpusID),
		Status:                models.ConnectionStatusActive,
	}
	if errCreate := h.store.CreateConnection(c.Request.Context(), conn); errCreate != nil {
		log.WithError(errCreate).Error("connection: create failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not store connection", nil)
		return
	}

	plaintext, record, errIssue := h.issueAPIKey(c, session.UserID, conn.ID, "Default")
	if errIssue != nil {
		log.WithError(errIssue).Error("connection: issue first api key failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not issue API key", nil)
		return
	}

	okJSON(c, http.StatusCreated, gin.H{
		"connection": viewConnection(conn),
		"api_key":    gin.H{"id": record.ID, "key": plaintext, "key_prefix": record.KeyPrefix, "name": record.Name},
	})
}

// checkConnectionCap enforces the plan connection cap. It reports true when a
// response has already been written.
func (h *Handlers) checkConnectionCap(c *gin.Context, userID uint64, tier string) bool {
	plan, errPlan := h.store.FindPlan(c.Request.Context(), tier)
	if errPlan != nil {
		log.WithError(errPlan).Error("connection: plan lookup failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not store connection", nil)
		return true
	}
	maxConnections := 1
	if plan != nil && plan.MaxConnections != 0 {
		maxConnections = plan.MaxConnections
	}
	if maxConnections == models.UnlimitedSentinel {
		return false
	}

	count, errCount := h.store.CountConnections(c.Request.Context(), userID)
	if errCount != nil {
		log.WithError(errCount).Error("connection: count failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not store connection", nil)
		return true
	}
	if count >= int64(maxConnections) {
		failJSON(c, http.StatusForbidden, "CONNECTION_LIMIT_REACHED", "Plan connection limit reached", map[string]any{
			"limit": maxConnections,
			"plan":  tier,
		})
		return true
	}
	return false
}

// ListConnections returns the tenant's connections.
func (h *Handlers) ListConnections(c *gin.Context) {
	session, ok := SessionFrom(c)
	if !ok {
		failJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	conns, errList := h.store.ListConnections(c.Request.Context(), session.UserID)
	if errList != nil {
		log.WithError(errList).Error("connection: list failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not list connections", nil)
		return
	}
	views := make([]connectionView, 0, len(conns))
	for i := range conns {
		views = append(views, viewConnection(&conns[i]))
	}
	okJSON(c, http.StatusOK, gin.H{"connections": views})
}

// DeleteConnection removes a connection the tenant owns.
func (h *Handlers) DeleteConnection(c *gin.Context) {
	session, ok := SessionFrom(c)
	if !ok {
		failJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}
	id, okID := parseIDParam(c, "id")
	if !okID {
		return
	}

	if errDelete := h.store.DeleteConnection(c.Request.Context(), session.UserID, id); errDelete != nil {
		if errors.Is(errDelete, gorm.ErrRecordNotFound) {
			failJSON(c, http.StatusNotFound, "NOT_FOUND", "Connection not found", nil)
			return
		}
		log.WithError(errDelete).Error("connection: delete failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not delete connection", nil)
		return
	}
	okJSON(c, http.StatusOK, gin.H{"deleted": id})
}
