package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gragdev/grag-gateway/internal/models"
	"github.com/gragdev/grag-gateway/internal/store"
	"github.com/gragdev/grag-gateway/internal/usage"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RequireAdmin gates a route group on an active administrator account. The
// flag is checked against the store, not the token, so a demoted or
// suspended admin loses access without waiting for their session to expire.
func (h *Handlers) RequireAdmin(c *gin.Context) {
	session, ok := SessionFrom(c)
	if !ok {
		failJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	user, errFind := h.store.FindUserByID(c.Request.Context(), session.UserID)
	if errFind != nil {
		log.WithError(errFind).Error("admin: lookup failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not verify access", nil)
		return
	}
	if user == nil || !user.IsAdmin || !user.IsActive() {
		failJSON(c, http.StatusForbidden, "FORBIDDEN", "Admin access required", nil)
		return
	}
	c.Next()
}

// AdminStats reports instance-wide totals and the current month's traffic.
func (h *Handlers) AdminStats(c *gin.Context) {
	stats, errStats := h.store.AdminStats(c.Request.Context())
	if errStats != nil {
		log.WithError(errStats).Error("admin: stats failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not load stats", nil)
		return
	}

	yearMonth := usage.CurrentYearMonth(time.Now())
	requests, successes, errTotals := h.ledger.MonthTotals(c.Request.Context(), yearMonth)
	if errTotals != nil {
		log.WithError(errTotals).Error("admin: month totals failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not load stats", nil)
		return
	}

	okJSON(c, http.StatusOK, gin.H{
		"total_users":       stats.TotalUsers,
		"active_users":      stats.ActiveUsers,
		"suspended_users":   stats.SuspendedUsers,
		"total_connections": stats.TotalConnections,
		"active_api_keys":   stats.ActiveAPIKeys,
		"current_month": gin.H{
			"year_month":    yearMonth,
			"request_count": requests,
			"success_count": successes,
		},
	})
}

// AdminListUsers returns a filtered page of accounts.
func (h *Handlers) AdminListUsers(c *gin.Context) {
	filter := adminUserFilter(c)
	users, total, errList := h.store.ListUsers(c.Request.Context(), filter)
	if errList != nil {
		log.WithError(errList).Error("admin: list users failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not list users", nil)
		return
	}

	views := make([]userView, 0, len(users))
	for i := range users {
		views = append(views, viewUser(&users[i]))
	}
	okJSON(c, http.StatusOK, gin.H{
		"users":  views,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func adminUserFilter(c *gin.Context) store.UserFilter {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return store.UserFilter{
		Limit:  limit,
		Offset: offset,
		Plan:   strings.TrimSpace(c.Query("plan")),
		Status: strings.TrimSpace(c.Query("status")),
		Search: strings.TrimSpace(c.Query("search")),
	}
}

// AdminUpdateUserPlan moves a tenant to another plan tier.
func (h *Handlers) AdminUpdateUserPlan(c *gin.Context) {
	id, okID := parseIDParam(c, "id")
	if !okID {
		return
	}

	var req struct {
		Plan string `json:"plan"`
	}
	if errBind := c.ShouldBindJSON(&req); errBind != nil || strings.TrimSpace(req.Plan) == "" {
		failJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid plan", nil)
		return
	}

	plan, errPlan := h.store.FindPlan(c.Request.Context(), req.Plan)
	if errPlan != nil {
		log.WithError(errPlan).Error("admin: plan lookup failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not update plan", nil)
		return
	}
	if plan == nil {
		failJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid plan", nil)
		return
	}

	if errUpdate := h.store.UpdateUserPlan(c.Request.Context(), id, plan.Tier); errUpdate != nil {
		if errors.Is(errUpdate, gorm.ErrRecordNotFound) {
			failJSON(c, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
			return
		}
		log.WithError(errUpdate).Error("admin: update plan failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not update plan", nil)
		return
	}

	log.WithFields(log.Fields{"user_id": id, "plan": plan.Tier}).Info("admin changed user plan")
	okJSON(c, http.StatusOK, gin.H{"message": "Plan updated"})
}

// AdminUpdateUserStatus activates or suspends a tenant. Suspension does not
// touch issued API keys; the authenticator rejects them on resolution.
func (h *Handlers) AdminUpdateUserStatus(c *gin.Context) {
	id, okID := parseIDParam(c, "id")
	if !okID {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		failJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid status", nil)
		return
	}
	if req.Status != models.UserStatusActive && req.Status != models.UserStatusSuspended {
		failJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid status", nil)
		return
	}

	if errUpdate := h.store.UpdateUserStatus(c.Request.Context(), id, req.Status); errUpdate != nil {
		if errors.Is(errUpdate, gorm.ErrRecordNotFound) {
			failJSON(c, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
			return
		}
		log.WithError(errUpdate).Error("admin: update status failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not update status", nil)
		return
	}

	log.WithFields(log.Fields{"user_id": id, "status": req.Status}).Info("admin changed user status")
	okJSON(c, http.StatusOK, gin.H{"message": "Status updated"})
}
