package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"webfolio/api/logger"
	"webfolio/api/models"
	"webfolio/api/utils"
)

// UserGetter looks up admin accounts for login.
type UserGetter interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

const authCookieMaxAge = int(24 * time.Hour / time.Second)

// AuthHandlers serves the admin auth gate: login, logout, verify.
type AuthHandlers struct {
	users UserGetter
	log   logger.Logger
}

func NewAuthHandlers(users UserGetter, log logger.Logger) *AuthHandlers {
	return &AuthHandlers{
		users: users,
		log:   log,
	}
}

// Login authenticates an admin and sets the jwt_token cookie. The route
// is rate limited per IP upstream.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := h.users.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		// Same response for unknown email and bad password.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword(user.HashedPassword, []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	tokenString, err := utils.GenerateJWT(user)
	if err != nil {
		h.log.Error("Failed to generate JWT",
			logger.Int("user_id", user.ID),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.SetCookie("jwt_token", tokenString, authCookieMaxAge, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"message":    "Login successful",
		"user_email": user.Email,
	})
}

// Logout clears the session cookie.
func (h *AuthHandlers) Logout(c *gin.Context) {
	c.SetCookie("jwt_token", "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Verify reports that the presented token is valid. It sits behind the
// auth middleware, so reaching it means the token checked out.
func (h *AuthHandlers) Verify(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"email": c.GetString("user_email"),
	})
}
