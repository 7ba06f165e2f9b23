package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"universo_lite/internal/access"
	"universo_lite/internal/auth"
)

// ctxClusterID is where RequireClusterPerm stores the resolved cluster id.
const ctxClusterID = "clusterID"

// RequireClusterPerm gates a /clusters/:id route on a permission key.
// Non-members get 404 so cluster existence does not leak; members without
// the permission get 403.
func RequireClusterPerm(db *gorm.DB, perm string) gin.HandlerFunc {
	chk := access.Checker{DB: db}
	return func(c *gin.Context) {
		cl, ok := auth.ClaimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
			return
		}

		role, err := chk.RoleIn(c, cl.UserID, id)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if role == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
			return
		}
		if !access.Allowed(role, perm) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "missing": perm})
			return
		}

		c.Set(ctxClusterID, id)
		c.Next()
	}
}
