package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-planner/internal/middleware"
	"github.com/noah-isme/sma-adp-planner/internal/models"
)

const anonymousActor = "anonymous"

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext names the caller for audit fields: the operator when a token was
// presented, otherwise anonymous.
func actorFromContext(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil && claims.Username != "" {
		return claims.Username
	}
	return anonymousActor
}
