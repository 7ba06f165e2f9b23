package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"universo_lite/internal/access"
	"universo_lite/internal/audit"
	"universo_lite/internal/auth"
	"universo_lite/internal/events"
	"universo_lite/internal/models"
	"universo_lite/internal/tenancy"
)

// resourceClusters returns every cluster reachable from a resource through
// its domains; used to fan out audit entries and events.
func resourceClusters(db *gorm.DB, resourceID int64) ([]int64, error) {
	var ids []int64
	err := db.Table("cluster_domains cd").
		Joins("JOIN domain_resources dr ON dr.domain_id = cd.domain_id").
		Where("dr.resource_id = ?", resourceID).
		Distinct("cd.cluster_id").
		Pluck("cd.cluster_id", &ids).Error
	return ids, err
}

// ListResources lists resources visible to the caller, optionally filtered
// to one domain via ?domain_id=.
func ListResources(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, _ := auth.ClaimsFrom(c)
		p := pagination(c)

		if v := c.Query("domain_id"); v != "" {
			domainID, err := strconv.ParseInt(v, 10, 64)
			if err != nil || domainID <= 0 {
				c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
				return
			}
			visible, err := tenancy.DomainVisible(db, cl.UserID, domainID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if !visible {
				c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
				return
			}

			var total int64
			if err := db.Model(&models.DomainResource{}).Where("domain_id = ?", domainID).Count(&total).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			var resources []models.Resource
			if err := db.Model(&models.Resource{}).
				Joins("JOIN domain_resources dr ON dr.resource_id = resources.id AND dr.domain_id = ?", domainID).
				Order("resources.id").
				Limit(p.PerPage).Offset(p.offset()).
				Find(&resources).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"data": resources, "meta": listMeta(p, total)})
			return
		}

		total, err := tenancy.CountResources(db, cl.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		var resources []models.Resource
		if err := tenancy.Resources(db, cl.UserID).
			Order("resources.id").
			Limit(p.PerPage).Offset(p.offset()).
			Find(&resources).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": resources, "meta": listMeta(p, total)})
	}
}

// CreateResource creates a resource inside a domain. Like domains, resources
// never exist detached.
func CreateResource(db *gorm.DB, hub *events.Hub) gin.HandlerFunc {
	chk := access.Checker{DB: db}
	return func(c *gin.Context) {
		cl, _ := auth.ClaimsFrom(c)

		var in struct {
			DomainID int64           `json:"domain_id" binding:"required"`
			Name     string          `json:"name" binding:"required"`
			Type     string          `json:"type" binding:"required"`
			Config   json.RawMessage `json:"config"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		visible, err := tenancy.DomainVisible(db, cl.UserID, in.DomainID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !visible {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
			return
		}
		allowed, err := chk.CanDomain(c, cl.UserID, in.DomainID, "resources:write")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "missing": "resources:write"})
			return
		}

		resource := models.Resource{
			Name: strings.TrimSpace(in.Name),
			Type: strings.TrimSpace(in.Type),
		}
		if len(in.Config) > 0 {
			resource.Config = datatypes.JSON(in.Config)
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&resource).Error; err != nil {
				return err
			}
			return tx.Create(&models.DomainResource{DomainID: in.DomainID, ResourceID: resource.ID}).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		clusterIDs, _ := domainClusters(db, in.DomainID)
		for _, cid := range clusterIDs {
			_ = audit.Record(db, audit.FromRequest(c, db, audit.Entry{
				ClusterID:  cid,
				Action:     "resources.create",
				EntityType: "resource",
				EntityID:   resource.ID,
				Meta:       map[string]interface{}{"name": resource.Name, "type": resource.Type},
			}))
			hub.Publish(events.New(cid, "resources.create", "resource", resource.ID))
		}

		c.JSON(http.StatusCreated, gin.H{"data": resource})
	}
}

// GetResource returns one resource when the caller can see it.
func GetResource(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, _ := auth.ClaimsFrom(c)
		id, ok := pathID(c, "id")
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
			return
		}

		visible, err := tenancy.ResourceVisible(db, cl.UserID, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !visible {
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
			return
		}

		var resource models.Resource
		if err := db.First(&resource, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": resource})
	}
}

// UpdateResource patches name/type/config.
func UpdateResource(db *gorm.DB, hub *events.Hub) gin.HandlerFunc {
	chk := access.Checker{DB: db}
	return func(c *gin.Context) {
		cl, _ := auth.ClaimsFrom(c)
		id, ok := pathID(c, "id")
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
			return
		}

		visible, err := tenancy.ResourceVisible(db, cl.UserID, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !visible {
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
			return
		}
		allowed, err := chk.CanResource(c, cl.UserID, id, "resources:write")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "missing": "resources:write"})
			return
		}

		var in struct {
			Name   *string         `json:"name"`
			Type   *string         `json:"type"`
			Config json.RawMessage `json:"config"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		var resource models.Resource
		if err := db.First(&resource, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
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
		if in.Type != nil {
			updates["type"] = strings.TrimSpace(*in.Type)
		}
		if len(in.Config) > 0 {
			updates["config"] = datatypes.JSON(in.Config)
		}
		if len(updates) > 0 {
			if err := db.Model(&resource).Updates(updates).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}

		clusterIDs, _ := resourceClusters(db, id)
		for _, cid := range clusterIDs {
			_ = audit.Record(db, audit.FromRequest(c, db, audit.Entry{
				ClusterID:  cid,
				Action:     "resources.update",
				EntityType: "resource",
				EntityID:   resource.ID,
			}))
			hub.Publish(events.New(cid, "resources.update", "resource", resource.ID))
		}

		c.JSON(http.StatusOK, gin.H{"data": resource})
	}
}

// DeleteResource removes a resource and its domain links.
func DeleteResource(db *gorm.DB, hub *events.Hub) gin.HandlerFunc {
	chk := access.Checker{DB: db}
	return func(c *gin.Context) {
		cl, _ := auth.ClaimsFrom(c)
		id, ok := pathID(c, "id")
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
			return
		}

		visible, err := tenancy.ResourceVisible(db, cl.UserID, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !visible {
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
			return
		}
		allowed, err := chk.CanResource(c, cl.UserID, id, "resources:delete")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "missing": "resources:delete"})
			return
		}

		clusterIDs, err := resourceClusters(db, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("resource_id = ?", id).Delete(&models.DomainResource{}).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.ConnectorToken{}).
				Where("resource_id = ?", id).
				Update("resource_id", nil).Error; err != nil {
				return err
			}
			return tx.Delete(&models.Resource{}, id).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		for _, cid := range clusterIDs {
			_ = audit.Record(db, audit.FromRequest(c, db, audit.Entry{
				ClusterID:  cid,
				Action:     "resources.delete",
				EntityType: "resource",
				EntityID:   id,
			}))
			hub.Publish(events.New(cid, "resources.delete", "resource", id))
		}

		c.JSON(http.StatusOK, gin.H{"message": "resource deleted"})
	}
}

// AttachResource links an existing resource to another domain.
func AttachResource(db *gorm.DB, hub *events.Hub) gin.HandlerFunc {
	chk := access.Checker{DB: db}
	return func(c *gin.Context) {
		cl, _ := auth.ClaimsFrom(c)
		domainID, ok := pathID(c, "id")
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
			return
		}
		resourceID, ok := pathID(c, "resourceID")
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
			return
		}

		visible, err := tenancy.DomainVisible(db, cl.UserID, domainID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !visible {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
			return
		}
		rVisible, err := tenancy.ResourceVisible(db, cl.UserID, resourceID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !rVisible {
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
			return
		}
		allowed, err := chk.CanDomain(c, cl.UserID, domainID, "resources:write")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "missing": "resources:write"})
			return
		}

		if err := db.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.DomainResource{DomainID: domainID, ResourceID: resourceID}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		clusterIDs, _ := domainClusters(db, domainID)
		for _, cid := range clusterIDs {
			_ = audit.Record(db, audit.FromRequest(c, db, audit.Entry{
				ClusterID:  cid,
				Action:     "resources.attach",
				EntityType: "resource",
				EntityID:   resourceID,
				Meta:       map[string]interface{}{"domain_id": domainID},
			}))
			hub.Publish(events.New(cid, "resources.attach", "resource", resourceID))
		}

		c.JSON(http.StatusOK, gin.H{"message": "resource attached"})
	}
}

// DetachResource unlinks a resource from a domain, protecting the last link.
func DetachResource(db *gorm.DB, hub *events.Hub) gin.HandlerFunc {
	chk := access.Checker{DB: db}
	return func(c *gin.Context) {
		cl, _ := auth.ClaimsFrom(c)
		domainID, ok := pathID(c, "id")
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
			return
		}
		resourceID, ok := pathID(c, "resourceID")
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
			return
		}

		visible, err := tenancy.DomainVisible(db, cl.UserID, domainID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !visible {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
			return
		}
		allowed, err := chk.CanDomain(c, cl.UserID, domainID, "resources:write")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "missing": "resources:write"})
			return
		}

		var link models.DomainResource
		if err := db.Where("domain_id = ? AND resource_id = ?", domainID, resourceID).First(&link).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "resource is not attached to this domain"})
			return
		}

		var links int64
		if err := db.Model(&models.DomainResource{}).Where("resource_id = ?", resourceID).Count(&links).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if links <= 1 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "resource must stay attached to at least one domain"})
			return
		}

		if err := db.Where("domain_id = ? AND resource_id = ?", domainID, resourceID).
			Delete(&models.DomainResource{}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		clusterIDs, _ := domainClusters(db, domainID)
		for _, cid := range clusterIDs {
			_ = audit.Record(db, audit.FromRequest(c, db, audit.Entry{
				ClusterID:  cid,
				Action:     "resources.detach",
				EntityType: "resource",
				EntityID:   resourceID,
				Meta:       map[string]interface{}{"domain_id": domainID},
			}))
			hub.Publish(events.New(cid, "resources.detach", "resource", resourceID))
		}

		c.JSON(http.StatusOK, gin.H{"message": "resource detached"})
	}
}
