// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides bearer-token authentication for the operator API.
// Tokens are HS256 JWTs issued by the auth package at login; the middleware
// verifies the signature and expiry and exposes the authenticated user to
// handlers via the Gin context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/whatsorder/go-orders-backend/internal/auth"
)

// Context keys set by RequireAuth for downstream handlers.
const (
	// CtxUserID holds the authenticated user's id.
	CtxUserID = "userID"
	// CtxUserEmail holds the authenticated user's email.
	CtxUserEmail = "userEmail"
)

// RequireAuth returns a middleware that rejects requests lacking a valid
// "Authorization: Bearer <token>" header with 401. On success the user id
// and email are stored in the context under CtxUserID / CtxUserEmail.
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			unauthorized(c, "missing bearer token")
			return
		}
		claims, err := auth.VerifyToken(secret, token)
		if err != nil {
			unauthorized(c, "invalid or expired token")
			return
		}
		c.Set(CtxUserID, claims.Subject)
		c.Set(CtxUserEmail, claims.Email)
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"error":      msg,
	})
}
