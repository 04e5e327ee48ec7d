package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gragdev/grag-gateway/internal/crypto"
	log "github.com/sirupsen/logrus"
)

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// profileView is the account shape on the profile endpoint.
type profileView struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	Plan      string    `json:"plan"`
	Status    string    `json:"status"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// GetProfile returns the authenticated tenant's account, read fresh from the
// store so admin-side plan and status changes show up without a new login.
func (h *Handlers) GetProfile(c *gin.Context) {
	session, ok := SessionFrom(c)
	if !ok {
		failJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	user, errFind := h.store.FindUserByID(c.Request.Context(), session.UserID)
	if errFind != nil {
		log.WithError(errFind).Error("profile: lookup failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not load profile", nil)
		return
	}
	if user == nil {
		failJSON(c, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
		return
	}

	okJSON(c, http.StatusOK, profileView{
		ID:        user.ID,
		Email:     user.Email,
		Plan:      user.Plan,
		Status:    user.Status,
		IsAdmin:   user.IsAdmin,
		CreatedAt: user.CreatedAt,
	})
}

// ChangePassword rotates the tenant's password after verifying the current
// one.
func (h *Handlers) ChangePassword(c *gin.Context) {
	session, ok := SessionFrom(c)
	if !ok {
		failJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	var req changePasswordRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		failJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "Current and new password required", nil)
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		failJSON(c, http.StatusBadRequest, "WEAK_PASSWORD", "Password must be at least 8 characters", nil)
		return
	}

	user, errFind := h.store.FindUserByID(c.Request.Context(), session.UserID)
	if errFind != nil {
		log.WithError(errFind).Error("password: lookup failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not change password", nil)
		return
	}
	if user == nil {
		failJSON(c, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
		return
	}
	if !crypto.VerifyPassword(req.CurrentPassword, user.PasswordHash) {
		failJSON(c, http.StatusUnauthorized, "INVALID_PASSWORD", "Current password is incorrect", nil)
		return
	}

	hash, errHash := crypto.HashPassword(req.NewPassword)
	if errHash != nil {
		log.WithError(errHash).Error("password: hash failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not change password", nil)
		return
	}
	if errUpdate := h.store.UpdateUserPassword(c.Request.Context(), user.ID, hash); errUpdate != nil {
		log.WithError(errUpdate).Error("password: update failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not change password", nil)
		return
	}
	okJSON(c, http.StatusOK, gin.H{"message": "Password updated successfully"})
}
