package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionCookie carries the token for browser clients.
const SessionCookie = "session_token"

type Handler struct {
	Secret string
}

func NewHandler(secret string) *Handler {
	return &Handler{Secret: secret}
}

// GetCurrentUser returns the authenticated user's info
func (h *Handler) GetCurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id": c.GetUint("user_id"),
		"email":   c.GetString("email"),
	})
}

// Refresh issues a fresh token for the authenticated user and stores it in
// the session cookie.
func (h *Handler) Refresh(c *gin.Context) {
	token, err := GenerateJWT(h.Secret, c.GetUint("user_id"), c.GetString("email"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.SetCookie(SessionCookie, token, int(TokenTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Logout clears the session cookie.
func (h *Handler) Logout(c *gin.Context) {
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
