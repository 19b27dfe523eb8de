package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"shajara/internal/core/apperror"
	appctx "shajara/internal/core/context"
	"shajara/internal/core/id"
	"shajara/internal/domain/auth"
)

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	VerifyToken(tokenString string) (*auth.Claims, error)
}

// Auth middleware validates JWT tokens and populates the actor context.
// The token carries the account id and the linked profile id; the profile's
// role is re-read from the database on permission-sensitive paths, so a
// stale token cannot grant stale rights.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthenticated(c)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthenticated(c)
			return
		}

		claims, err := verifier.VerifyToken(parts[1])
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		accountID, err := id.Parse(claims.AccountID)
		if err != nil {
			abortUnauthenticated(c)
			return
		}

		actor := &appctx.ActorContext{AccountID: accountID}
		if claims.ProfileID != "" {
			if profileID, err := id.Parse(claims.ProfileID); err == nil {
				actor.ProfileID = &profileID
			}
		}

		ctx := appctx.WithActor(c.Request.Context(), actor)
		c.Request = c.Request.WithContext(ctx)

		c.Set("account_id", claims.AccountID)

		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context) {
	_ = c.Error(apperror.NewAuthenticationRequired())
	c.Abort()
}
