package httpapi

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/gragdev/grag-gateway/internal/crypto"
	"github.com/gragdev/grag-gateway/internal/models"
	"github.com/gragdev/grag-gateway/internal/token"
	log "github.com/sirupsen/logrus"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPasswordLength = 8

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userView is the account shape returned to the account holder.
type userView struct {
	ID      uint64 `json:"id"`
	Email   string `json:"email"`
	Plan    string `json:"plan"`
	Status  string `json:"status"`
	IsAdmin bool   `json:"is_admin"`
}

func viewUser(u *models.User) userView {
	return userView{ID: u.ID, Email: u.Email, Plan: u.Plan, Status: u.Status, IsAdmin: u.IsAdmin}
}

// Register creates a tenant account on the free tier and signs it in.
func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		failJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", nil)
		return
	}
	if !emailPattern.MatchString(req.Email) {
		failJSON(c, http.StatusBadRequest, "INVALID_EMAIL", "Invalid email address", nil)
		return
	}
	if len(req.Password) < minPasswordLength {
		failJSON(c, http.StatusBadRequest, "WEAK_PASSWORD", "Password must be at least 8 characters", nil)
		return
	}

	existing, errFind := h.store.FindUserByEmail(c.Request.Context(), req.Email)
	if errFind != nil {
		log.WithError(errFind).Error("register: lookup failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Registration failed", nil)
		return
	}
	if existing != nil {
		failJSON(c, http.StatusConflict, "EMAIL_TAKEN", "Email is already registered", nil)
		return
	}

	hash, errHash := crypto.HashPassword(req.Password)
	if errHash != nil {
		log.WithError(errHash).Error("register: hash password failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Registration failed", nil)
		return
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		Plan:         "free",
		Status:       models.UserStatusActive,
	}
	if errCreate := h.store.CreateUser(c.Request.Context(), user); errCreate != nil {
		log.WithError(errCreate).Error("register: create user failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Registration failed", nil)
		return
	}

	signed, errIssue := h.issueSession(user)
	if errIssue != nil {
		log.WithError(errIssue).Error("register: issue token failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Registration failed", nil)
		return
	}
	okJSON(c, http.StatusCreated, gin.H{"token": signed, "user": viewUser(user)})
}

// Login verifies credentials and issues a session token. Unknown email and
// wrong password produce the same response.
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		failJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", nil)
		return
	}

	user, errFind := h.store.FindUserByEmail(c.Request.Context(), req.Email)
	if errFind != nil {
		log.WithError(errFind).Error("login: lookup failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed", nil)
		return
	}
	if user == nil || !crypto.VerifyPassword(req.Password, user.PasswordHash) {
		failJSON(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		return
	}
	if !user.IsActive() {
		failJSON(c, http.StatusForbidden, "ACCOUNT_SUSPENDED", "Account is suspended", nil)
		return
	}

	signed, errIssue := h.issueSession(user)
	if errIssue != nil {
		log.WithError(errIssue).Error("login: issue token failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed", nil)
		return
	}
	okJSON(c, http.StatusOK, gin.H{"token": signed, "user": viewUser(user)})
}

func (h *Handlers) issueSession(user *models.User) (string, error) {
	claims := token.Claims{
		UserID:  user.ID,
		Email:   user.Email,
		Plan:    user.Plan,
		IsAdmin: user.IsAdmin,
	}
	return token.Issue(claims, h.jwt.Secret, h.jwt.Expiry)
}
