package middlewares

import (
	"net/http"

	"bitbucket.org/mmdatafocus/integrity_backend/utils"
	"github.com/gin-gonic/gin"
)

// RequireRole lets the request through only when the session role is one of roles.
// It must run after SessionMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		role, ok := utils.GetUserRoleFromContext(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !allowed[role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func RequireModerator() gin.HandlerFunc {
	return RequireRole(utils.RoleModerator, utils.RoleAdmin)
}

func RequireAdmin() gin.HandlerFunc {
	return RequireRole(utils.RoleAdmin)
}
