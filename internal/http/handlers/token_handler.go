package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"universo_lite/internal/audit"
	"universo_lite/internal/models"
)

// CreateConnectorToken mints a registration token for an external node.
// The token string is returned exactly once.
func CreateConnectorToken(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		clusterID := c.GetInt64(ctxClusterID)

		var in struct {
			DomainID   int64 `json:"domain_id" binding:"required"`
			TTLMinutes int   `json:"ttl_minutes"` // 0 = no expiry
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		// The target domain must be attached to this cluster.
		var attached int64
		if err := db.Model(&models.ClusterDomain{}).
			Where("cluster_id = ? AND domain_id = ?", clusterID, in.DomainID).
			Count(&attached).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if attached == 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "domain is not attached to this cluster"})
			return
		}

		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
			return
		}
		tok := base64.RawURLEncoding.EncodeToString(b)

		var expires *time.Time
		if in.TTLMinutes > 0 {
			t := time.Now().Add(time.Duration(in.TTLMinutes) * time.Minute)
			expires = &t
		}

		row := models.ConnectorToken{
			Token:     tok,
			ClusterID: clusterID,
			DomainID:  in.DomainID,
			ExpiresAt: expires,
		}
		if err := db.Create(&row).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = audit.Record(db, audit.FromRequest(c, db, audit.Entry{
			ClusterID:  clusterID,
			Action:     "tokens.create",
			EntityType: "connector_token",
			EntityID:   row.ID,
			Meta:       map[string]interface{}{"domain_id": in.DomainID, "ttl_minutes": in.TTLMinutes},
		}))

		c.JSON(http.StatusCreated, gin.H{
			"data": gin.H{
				"id":         row.ID,
				"token":      tok,
				"cluster_id": clusterID,
				"domain_id":  in.DomainID,
				"expires_at": expires,
			},
		})
	}
}
