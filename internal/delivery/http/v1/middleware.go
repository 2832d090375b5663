package v1

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	userIDCtxKey   = "user_id"
	usernameCtxKey = "username"
	tokenCtxKey    = "token"
)

func (h *handlerImpl) HandleAuthMiddleware(c *gin.Context) {
	const authHeader = "Authorization"
	header := c.GetHeader(authHeader)
	if header == "" {
		h.logger.Error().Msg("authorization header required")
		abort(c, newUnauthorizedError("Unauthorized"))
		return
	}

	const bearerPrefix = "Bearer"
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != bearerPrefix {
		h.logger.Error().Msg("invalid authorization header")
		abort(c, newUnauthorizedError("Unauthorized"))
		return
	}

	token := parts[1]
	claims, err := h.auth.ParseToken(token)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to parse token")
		abort(c, newUnauthorizedError("Unauthorized"))
		return
	}

	c.Set(userIDCtxKey, claims.UserID)
	c.Set(usernameCtxKey, claims.Username)
	c.Set(tokenCtxKey, token)
	c.Next()
}

func userIDFromContext(c *gin.Context) (int64, bool) {
	value, exists := c.Get(userIDCtxKey)
	if !exists {
		return 0, false
	}
	id, ok := value.(int64)
	return id, ok
}

// requireUserID aborts with 401 when the auth middleware did not run.
func (h *handlerImpl) requireUserID(c *gin.Context) (int64, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		h.logger.Error().Msg("no user id found in context")
		c.AbortWithStatus(http.StatusUnauthorized)
		return 0, false
	}
	return userID, true
}
