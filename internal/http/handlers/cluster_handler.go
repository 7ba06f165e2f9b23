package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"universo_lite/internal/access"
	"universo_lite/internal/audit"
	"universo_lite/internal/auth"
	"universo_lite/internal/events"
	"universo_lite/internal/models"
	"universo_lite/internal/tenancy"
)

// ListClusters returns the clusters the caller is a member of, paginated.
func ListClusters(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, _ := auth.ClaimsFrom(c)
		p := pagination(c)

		var total int64
		if err := tenancy.Clusters(db, cl.UserID).Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var clusters []models.Cluster
		if err := tenancy.Clusters(db, cl.UserID).
			Order("clusters.id").
			Limit(p.PerPage).Offset(p.offset()).
			Find(&clusters).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": clusters, "meta": listMeta(p, total)})
	}
}

// CreateCluster creates a cluster and makes the caller its owner.
func CreateCluster(db *gorm.DB, hub *events.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, _ := auth.ClaimsFrom(c)

		var in struct {
			Name        string `json:"name" binding:"required"`
			Slug        string `json:"slug"`
			Description string `json:"description"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		slug := strings.TrimSpace(in.Slug)
		if slug == "" {
			slug = slugify(in.Name)
		}
		if slug == "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cluster name yields an empty slug"})
			return
		}

		var dup int64
		if err := db.Model(&models.Cluster{}).Where("slug = ?", slug).Count(&dup).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if dup > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "slug already taken"})
			return
		}

		cluster := models.Cluster{
			Name:        strings.TrimSpace(in.Name),
			Slug:        slug,
			Description: in.Description,
			OwnerID:     cl.UserID,
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&cluster).Error; err != nil {
				return err
			}
			return tx.Create(&models.Membership{
				ClusterID: cluster.ID,
				UserID:    cl.UserID,
				Role:      access.RoleOwner,
			}).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = audit.Record(db, audit.FromRequest(c, db, audit.Entry{
			ClusterID:  cluster.ID,
			Action:     "clusters.create",
			EntityType: "cluster",
			EntityID:   cluster.ID,
			Meta:       map[string]interface{}{"name": cluster.Name, "slug": cluster.Slug},
		}))
		hub.Publish(events.New(cluster.ID, "clusters.create", "cluster", cluster.ID))

		c.JSON(http.StatusCreated, gin.H{"data": cluster})
	}
}

// GetCluster returns one cluster; non-members get 404, never 403, so cluster
// existence does not leak across tenants.
func GetCluster(db *gorm.DB) gin.HandlerFunc {
	chk := access.Checker{DB: db}
	return func(c *gin.Context) {
		cl, _ := auth.ClaimsFrom(c)
		id, ok := pathID(c, "id")
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
			return
		}

		role, err := chk.RoleIn(c, cl.UserID, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if role == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
			return
		}

		var cluster models.Cluster
		if err := db.First(&cluster, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": cluster, "role": role})
	}
}

// UpdateCluster patches name/description. Requires clusters:write.
func UpdateCluster(db *gorm.DB, hub *events.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetInt64(ctxClusterID)

		var in struct {
			Name        *string `json:"name"`
			Description *string `json:"description"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		var cluster models.Cluster
		if err := db.First(&cluster, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
			return
		}

		updates := map[string]interface{}{}
		if in.Name != nil {
			if strings.TrimSpace(*in.Name) == "" {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "name cannot be empty"})
				return
			}
			updates["name"] = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			updates["description"] = *in.Description
		}
		if len(updates) > 0 {
			if err := db.Model(&cluster).Updates(updates).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}

		_ = audit.Record(db, audit.FromRequest(c, db, audit.Entry{
			ClusterID:  cluster.ID,
			Action:     "clusters.update",
			EntityType: "cluster",
			EntityID:   cluster.ID,
			Meta:       map[string]interface{}{"updates": updates},
		}))
		hub.Publish(events.New(cluster.ID, "clusters.update", "cluster", cluster.ID))

		c.JSON(http.StatusOK, gin.H{"data": cluster})
	}
}

// DeleteCluster removes a cluster. Rejected while any domain is still
// attached; memberships and unclaimed connector tokens go with it.
func DeleteCluster(db *gorm.DB, hub *events.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetInt64(ctxClusterID)

		var cluster models.Cluster
		if err := db.First(&cluster, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
			return
		}

		var attached int64
		if err := db.Model(&models.ClusterDomain{}).Where("cluster_id = ?", id).Count(&attached).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if attached > 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cluster still has attached domains"})
			return
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("cluster_id = ?", id).Delete(&models.Membership{}).Error; err != nil {
				return err
			}
			if err := tx.Where("cluster_id = ?", id).Delete(&models.ConnectorToken{}).Error; err != nil {
				return err
			}
			return tx.Delete(&models.Cluster{}, id).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = audit.Record(db, audit.FromRequest(c, db, audit.Entry{
			ClusterID:  id,
			Action:     "clusters.delete",
			EntityType: "cluster",
			EntityID:   id,
			Meta:       map[string]interface{}{"name": cluster.Name},
		}))
		hub.Publish(events.New(id, "clusters.delete", "cluster", id))

		c.JSON(http.StatusOK, gin.H{"message": "cluster deleted"})
	}
}
