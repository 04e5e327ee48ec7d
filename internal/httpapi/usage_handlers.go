package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gragdev/grag-gateway/internal/auth"
	"github.com/gragdev/grag-gateway/internal/models"
	"github.com/gragdev/grag-gateway/internal/usage"
	log "github.com/sirupsen/logrus"
)

// GetUsage reports the tenant's current-month standing against the live
// ledger. The plan comes from the store, not the session claims, so an
// admin-side plan change is reflected immediately.
func (h *Handlers) GetUsage(c *gin.Context) {
	session, ok := SessionFrom(c)
	if !ok {
		failJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	user, errUser := h.store.FindUserByID(c.Request.Context(), session.UserID)
	if errUser != nil {
		log.WithError(errUser).Error("usage: user lookup failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not load usage", nil)
		return
	}
	if user == nil {
		failJSON(c, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
		return
	}

	plan, errPlan := h.store.FindPlan(c.Request.Context(), user.Plan)
	if errPlan != nil {
		log.WithError(errPlan).Error("usage: plan lookup failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not load usage", nil)
		return
	}
	limit := auth.EffectiveMonthlyLimit(plan)

	yearMonth := usage.CurrentYearMonth(time.Now())
	row, errUsage := h.ledger.GetOrCreate(c.Request.Context(), session.UserID, yearMonth)
	if errUsage != nil {
		log.WithError(errUsage).Error("usage: ledger lookup failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not load usage", nil)
		return
	}

	remaining := int64(models.UnlimitedSentinel)
	if limit != models.UnlimitedSentinel {
		remaining = limit - row.RequestCount
		if remaining < 0 {
			remaining = 0
		}
	}

	okJSON(c, http.StatusOK, gin.H{
		"year_month":    yearMonth,
		"plan":          user.Plan,
		"request_count": row.RequestCount,
		"success_count": row.SuccessCount,
		"limit":         limit,
		"remaining":     remaining,
	})
}
