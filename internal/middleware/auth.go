package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/collegedesk/collegedesk/internal/auth"
	"github.com/collegedesk/collegedesk/pkg/errors"
	"github.com/collegedesk/collegedesk/pkg/response"
)

const (
	CtxClaimsKey   = "authClaims"
	CtxUsernameKey = "username"
	CtxRoleKey     = "role"
)

// Auth enforces JWT authentication using the supplied JWT service. WebSocket
// upgrade requests may carry the token in the "token" query parameter since
// browsers cannot set headers on WebSocket dials.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUsernameKey, claims.Username)
		c.Set(CtxRoleKey, claims.Role)

		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[7:])
}
