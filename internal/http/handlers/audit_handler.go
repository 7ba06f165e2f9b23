package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"universo_lite/internal/access"
	"universo_lite/internal/auth"
	"universo_lite/internal/models"
)

// ListAudit returns the audit trail for one cluster, newest first, with
// cursor pagination (limit/after_id) and free-text search (q).
func ListAudit(db *gorm.DB) gin.HandlerFunc {
	chk := access.Checker{DB: db}
	return func(c *gin.Context) {
		cl, _ := auth.ClaimsFrom(c)

		clusterID, err := strconv.ParseInt(c.Query("cluster_id"), 10, 64)
		if err != nil || clusterID <= 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cluster_id is required"})
			return
		}

		role, err := chk.RoleIn(c, cl.UserID, clusterID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if role == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
			return
		}
		if !access.Allowed(role, "audit:read") {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "missing": "audit:read"})
			return
		}

		limit := 20
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
				limit = parsed
			}
		}

		var afterID int64
		if v := c.Query("after_id"); v != "" {
			if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
				afterID = parsed
			}
		}

		search := strings.TrimSpace(c.Query("q"))

		query := db.Model(&models.AuditLog{}).Where("cluster_id = ?", clusterID).Order("id DESC")
		if afterID > 0 {
			query = query.Where("id < ?", afterID)
		}
		if search != "" {
			like := "%" + search + "%"
			query = query.Where("(actor_name LIKE ? OR action LIKE ? OR entity_type LIKE ? OR ip LIKE ?)",
				like, like, like, like)
		}

		var logs []models.AuditLog
		if err := query.Limit(limit + 1).Find(&logs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var nextCursor *int64
		if len(logs) > limit {
			next := logs[limit].ID
			logs = logs[:limit]
			nextCursor = &next
		}

		c.JSON(http.StatusOK, gin.H{
			"data": logs,
			"meta": gin.H{"next_cursor": nextCursor},
		})
	}
}
