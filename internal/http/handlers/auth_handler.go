package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/whatsorder/go-orders-backend/internal/http/middleware"
	"github.com/whatsorder/go-orders-backend/internal/services"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/v1/auth/register. A successful registration
// returns a signed token so the client is logged in immediately.
func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	user, token, err := h.accounts.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.accountError(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{
		"token": token,
		"user":  user,
	})
}

// Login handles POST /api/v1/auth/login.
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	user, token, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.accountError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// accountError maps account service errors onto HTTP responses. Login
// failures are deliberately vague; the service already collapses unknown
// email and wrong password into one error.
func (h *Handlers) accountError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrMissingPayload):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name, a valid email, and a password of at least 8 characters are required")
	case errors.Is(err, services.ErrEmailTaken):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrBadCredentials):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("account operation failed")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
