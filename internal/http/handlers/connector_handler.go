package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"universo_lite/internal/audit"
	"universo_lite/internal/events"
	"universo_lite/internal/models"
)

// RegisterConnector lets an external node trade a connector token for a
// resource record. The token becomes the node's heartbeat credential.
func RegisterConnector(db *gorm.DB, hub *events.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Token  string          `json:"token" binding:"required"`
			Name   string          `json:"name" binding:"required"`
			Type   string          `json:"type" binding:"required"`
			Config json.RawMessage `json:"config"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		var tok models.ConnectorToken
		if err := db.Where("token = ?", strings.TrimSpace(in.Token)).First(&tok).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if tok.Used {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token already used"})
			return
		}
		if tok.ExpiresAt != nil && time.Now().After(*tok.ExpiresAt) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
			return
		}

		now := time.Now()
		resource := models.Resource{
			Name:       strings.TrimSpace(in.Name),
			Type:       strings.TrimSpace(in.Type),
			Status:     models.ResourceOnline,
			LastSeenAt: &now,
		}
		if len(in.Config) > 0 {
			resource.Config = datatypes.JSON(in.Config)
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&resource).Error; err != nil {
				return err
			}
			if err := tx.Create(&models.DomainResource{DomainID: tok.DomainID, ResourceID: resource.ID}).Error; err != nil {
				return err
			}
			return tx.Model(&tok).Updates(map[string]interface{}{
				"used":        true,
				"resource_id": resource.ID,
			}).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = audit.Record(db, audit.Entry{
			ClusterID:  tok.ClusterID,
			Action:     "connectors.register",
			EntityType: "resource",
			EntityID:   resource.ID,
			Meta:       map[string]interface{}{"name": resource.Name, "type": resource.Type},
			IP:         c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
			ActorName:  "connector",
		})
		hub.Publish(events.New(tok.ClusterID, "connectors.register", "resource", resource.ID))

		c.JSON(http.StatusCreated, gin.H{
			"data": gin.H{
				"resource_id": resource.ID,
				"cluster_id":  tok.ClusterID,
				"domain_id":   tok.DomainID,
			},
		})
	}
}

// ConnectorHeartbeat refreshes a registered node's liveness.
func ConnectorHeartbeat(db *gorm.DB, hub *events.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Token      string `json:"token" binding:"required"`
			ResourceID int64  `json:"resource_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		var tok models.ConnectorToken
		err := db.Where("token = ? AND resource_id = ? AND used = ?", strings.TrimSpace(in.Token), in.ResourceID, true).
			First(&tok).Error
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var resource models.Resource
		if err := db.First(&resource, in.ResourceID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
			return
		}

		wasOffline := resource.Status == models.ResourceOffline
		now := time.Now()
		if err := db.Model(&resource).Updates(map[string]interface{}{
			"status":       models.ResourceOnline,
			"last_seen_at": now,
		}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if wasOffline {
			hub.Publish(events.New(tok.ClusterID, "connectors.online", "resource", resource.ID))
		}

		c.JSON(http.StatusOK, gin.H{"message": "ok", "last_seen_at": now})
	}
}
