package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gragdev/grag-gateway/internal/usage"
	log "github.com/sirupsen/logrus"
)

type queryRequest struct {
	Query    string `json:"query"`
	CorpusID string `json:"corpus_id"`
}

// Query runs a grounded search with the authenticated tenant's own upstream
// credential. Every attempt is metered; only a successful upstream call bumps
// the success counter.
func (h *Handlers) Query(c *gin.Context) {
	authCtx, ok := AuthContextFrom(c)
	if !ok {
		failJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	var req queryRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil || strings.TrimSpace(req.Query) == "" {
		failJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "A non-empty query is required", nil)
		return
	}

	corpusID := strings.TrimSpace(req.CorpusID)
	if corpusID == "" {
		corpusID = authCtx.Connection.DefaultCorpusID
	}
	if corpusID == "" {
		failJSON(c, http.StatusBadRequest, "MISSING_CORPUS", "No corpus specified and the connection has no default", nil)
		return
	}

	result, errSearch := h.gemini.Search(c.Request.Context(), authCtx.Connection.GeminiAPIKey, corpusID, req.Query)
	h.reportUsage(c, authCtx.User.ID, errSearch == nil)
	if errSearch != nil {
		log.WithError(errSearch).WithField("user_id", authCtx.User.ID).Warn("query: upstream search failed")
		failJSON(c, http.StatusBadGateway, "UPSTREAM_ERROR", "Upstream search failed", nil)
		return
	}

	remaining := authCtx.Usage.Remaining
	if remaining > 0 {
		remaining--
	}
	okJSON(c, http.StatusOK, gin.H{
		"answer":  result.Answer,
		"sources": result.Sources,
		"usage": gin.H{
			"limit":     authCtx.Usage.Limit,
			"remaining": remaining,
		},
	})
}

// reportUsage bumps the monthly ledger for an attempt. A metering failure is
// logged and swallowed; the tenant's response does not depend on it.
func (h *Handlers) reportUsage(c *gin.Context, userID uint64, succeeded bool) {
	yearMonth := usage.CurrentYearMonth(time.Now())
	if errIncrement := h.ledger.Increment(c.Request.Context(), userID, yearMonth, succeeded); errIncrement != nil {
		log.WithError(errIncrement).WithField("user_id", userID).Error("query: usage increment failed")
	}
}
