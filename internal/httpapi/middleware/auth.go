package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/basesub/subscriptions/internal/domain"
)

const (
	accountIDKey = "accountID"
)

// AccountResolver is the subset of apikey.Service this middleware
// depends on.
type AccountResolver interface {
	AuthenticateAPIKey(c *gin.Context, secret string) (accountID int64, err *domain.HTTPError)
}

// JWTResolver is the subset of auth.Validator plus account
// provisioning this middleware depends on.
type JWTResolver interface {
	AuthenticateJWT(c *gin.Context, bearerToken string) (accountID int64, err *domain.HTTPError)
}

// EnsureValidAPIKeyOrToken implements the teacher's dual-auth pattern
// (libs/go/client/auth/middleware.go EnsureValidAPIKeyOrToken): an
// X-API-Key header is checked first; absent that, Authorization:
// Bearer is validated as a CDP JWT. Either path sets accountID on the
// gin context for downstream handlers.
func EnsureValidAPIKeyOrToken(keys AccountResolver, jwts JWTResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey := c.GetHeader("X-API-Key"); apiKey != "" {
			accountID, httpErr := keys.AuthenticateAPIKey(c, apiKey)
			if httpErr != nil {
				c.JSON(httpErr.Status, gin.H{"error": gin.H{"code": httpErr.Code, "message": httpErr.Message}})
				c.Abort()
				return
			}
			c.Set(accountIDKey, accountID)
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": domain.ErrInvalidAPIKey, "message": "no authentication provided"}})
			c.Abort()
			return
		}

		accountID, httpErr := jwts.AuthenticateJWT(c, strings.TrimPrefix(authHeader, "Bearer "))
		if httpErr != nil {
			c.JSON(httpErr.Status, gin.H{"error": gin.H{"code": httpErr.Code, "message": httpErr.Message}})
			c.Abort()
			return
		}
		c.Set(accountIDKey, accountID)
		c.Next()
	}
}

// AccountID reads the account id an auth middleware stashed on the
// gin context. Panics if called on an unauthenticated route — every
// handler using it must sit behind EnsureValidAPIKeyOrToken.
func AccountID(c *gin.Context) int64 {
	return c.MustGet(accountIDKey).(int64)
}
