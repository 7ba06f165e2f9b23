package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"universo_lite/internal/access"
	"universo_lite/internal/audit"
	"universo_lite/internal/auth"
	"universo_lite/internal/events"
	"universo_lite/internal/models"
	"universo_lite/internal/tenancy"
)

// domainClusters returns the IDs of every cluster a domain is attached to.
func domainClusters(db *gorm.DB, domainID int64) ([]int64, error) {
	var ids []int64
	err := db.Model(&models.ClusterDomain{}).
		Where("domain_id = ?", domainID).
		Pluck("cluster_id", &ids).Error
	return ids, err
}

// ListDomains lists domains visible to the caller, optionally filtered to
// one cluster via ?cluster_id=.
func ListDomains(db *gorm.DB) gin.HandlerFunc {
	chk := access.Checker{DB: db}
	return func(c *gin.Context) {
		cl, _ := auth.ClaimsFrom(c)
		p := pagination(c)

		if v := c.Query("cluster_id"); v != "" {
			clusterID, err := strconv.ParseInt(v, 10, 64)
			if err != nil || clusterID <= 0 {
				c.JSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
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

			var total int64
			if err := db.Model(&models.ClusterDomain{}).Where("cluster_id = ?", clusterID).Count(&total).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			var domains []models.Domain
			if err := db.Model(&models.Domain{}).
				Joins("JOIN cluster_domains cd ON cd.domain_id = domains.id AND cd.cluster_id = ?", clusterID).
				Order("domains.id").
				Limit(p.PerPage).Offset(p.offset()).
				Find(&domains).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"data": domains, "meta": listMeta(p, total)})
			return
		}

		total, err := tenancy.CountDomains(db, cl.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		var domains []models.Domain
		if err := tenancy.Domains(db, cl.UserID).
			Order("domains.id").
			Limit(p.PerPage).Offset(p.offset()).
			Find(&domains).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": domains, "meta": listMeta(p, total)})
	}
}

// CreateDomain creates a domain inside a cluster. A domain never exists
// detached, so the initial cluster is part of the request.
func CreateDomain(db *gorm.DB, hub *events.Hub) gin.HandlerFunc {
	chk := access.Checker{DB: db}
	return func(c *gin.Context) {
		cl, _ := auth.ClaimsFrom(c)

		var in struct {
			ClusterID   int64  `json:"cluster_id" binding:"required"`
			Name        string `json:"name" binding:"required"`
			Description string `json:"description"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		role, err := chk.RoleIn(c, cl.UserID, in.ClusterID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if role == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
			return
		}
		if !access.Allowed(role, "domains:write") {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "missing": "domains:write"})
			return
		}

		domain := models.Domain{
			Name:        strings.TrimSpace(in.Name),
			Description: in.Description,
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&domain).Error; err != nil {
				return err
			}
			return tx.Create(&models.ClusterDomain{ClusterID: in.ClusterID, DomainID: domain.ID}).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = audit.Record(db, audit.FromRequest(c, db, audit.Entry{
			ClusterID:  in.ClusterID,
			Action:     "domains.create",
			EntityType: "domain",
			EntityID:   domain.ID,
			Meta:       map[string]interface{}{"name": domain.Name},
		}))
		hub.Publish(events.New(in.ClusterID, "domains.create", "domain", domain.ID))

		c.JSON(http.StatusCreated, gin.H{"data": domain})
	}
}

// GetDomain returns one domain when the caller can see it.
func GetDomain(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, _ := auth.ClaimsFrom(c)
		id, ok := pathID(c, "id")
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
			return
		}

		visible, err := tenancy.DomainVisible(db, cl.UserID, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !visible {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
			return
		}

		var domain models.Domain
		if err := db.First(&domain, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
			return
		}
		clusterIDs, err := domainClusters(db, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": domain, "cluster_ids": clusterIDs})
	}
}

// UpdateDomain patches name/description.
func UpdateDomain(db *gorm.DB, hub *events.Hub) gin.HandlerFunc {
	chk := access.Checker{DB: db}
	return func(c *gin.Context) {
		cl, _ := auth.ClaimsFrom(c)
		id, ok := pathID(c, "id")
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
			return
		}

		visible, err := tenancy.DomainVisible(db, cl.UserID, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !visible {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
			return
		}
		allowed, err := chk.CanDomain(c, cl.UserID, id, "domains:write")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "missing": "domains:write"})
			return
		}

		var in struct {
			Name        *string `json:"name"`
			Description *string `json:"description"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		var domain models.Domain
		if err := db.First(&domain, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
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
			if err := db.Model(&domain).Updates(updates).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}

		clusterIDs, _ := domainClusters(db, id)
		for _, cid := range clusterIDs {
			_ = audit.Record(db, audit.FromRequest(c, db, audit.Entry{
				ClusterID:  cid,
				Action:     "domains.update",
				EntityType: "domain",
				EntityID:   domain.ID,
				Meta:       map[string]interface{}{"updates": updates},
			}))
			hub.Publish(events.New(cid, "domains.update", "domain", domain.ID))
		}

		c.JSON(http.StatusOK, gin.H{"data": domain})
	}
}

// DeleteDomain removes a domain. Rejected while any resource is attached.
func DeleteDomain(db *gorm.DB, hub *events.Hub) gin.HandlerFunc {
	chk := access.Checker{DB: db}
	return func(c *gin.Context) {
		cl, _ := auth.ClaimsFrom(c)
		id, ok := pathID(c, "id")
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
			return
		}

		visible, err := tenancy.DomainVisible(db, cl.UserID, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !visible {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
			return
		}
		allowed, err := chk.CanDomain(c, cl.UserID, id, "domains:delete")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "missing": "domains:delete"})
			return
		}

		var attached int64
		if err := db.Model(&models.DomainResource{}).Where("domain_id = ?", id).Count(&attached).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if attached > 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "domain still has attached resources"})
			return
		}

		clusterIDs, err := domainClusters(db, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("domain_id = ?", id).Delete(&models.ClusterDomain{}).Error; err != nil {
				return err
			}
			if err := tx.Where("domain_id = ?", id).Delete(&models.ConnectorToken{}).Error; err != nil {
				return err
			}
			return tx.Delete(&models.Domain{}, id).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		for _, cid := range clusterIDs {
			_ = audit.Record(db, audit.FromRequest(c, db, audit.Entry{
				ClusterID:  cid,
				Action:     "domains.delete",
				EntityType: "domain",
				EntityID:   id,
			}))
			hub.Publish(events.New(cid, "domains.delete", "domain", id))
		}

		c.JSON(http.StatusOK, gin.H{"message": "domain deleted"})
	}
}

// AttachDomain links an existing domain to another cluster.
func AttachDomain(db *gorm.DB, hub *events.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, _ := auth.ClaimsFrom(c)
		clusterID := c.GetInt64(ctxClusterID)
		domainID, ok := pathID(c, "domainID")
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
			return
		}

		// The caller must already see the domain through some cluster.
		visible, err := tenancy.DomainVisible(db, cl.UserID, domainID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !visible {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
			return
		}

		if err := db.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.ClusterDomain{ClusterID: clusterID, DomainID: domainID}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = audit.Record(db, audit.FromRequest(c, db, audit.Entry{
			ClusterID:  clusterID,
			Action:     "domains.attach",
			EntityType: "domain",
			EntityID:   domainID,
		}))
		hub.Publish(events.New(clusterID, "domains.attach", "domain", domainID))

		c.JSON(http.StatusOK, gin.H{"message": "domain attached"})
	}
}

// DetachDomain unlinks a domain from a cluster. The last link is protected:
// a domain always belongs to at least one cluster.
func DetachDomain(db *gorm.DB, hub *events.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		clusterID := c.GetInt64(ctxClusterID)
		domainID, ok := pathID(c, "domainID")
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
			return
		}

		var link models.ClusterDomain
		if err := db.Where("cluster_id = ? AND domain_id = ?", clusterID, domainID).First(&link).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain is not attached to this cluster"})
			return
		}

		var links int64
		if err := db.Model(&models.ClusterDomain{}).Where("domain_id = ?", domainID).Count(&links).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if links <= 1 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "domain must stay attached to at least one cluster"})
			return
		}

		if err := db.Where("cluster_id = ? AND domain_id = ?", clusterID, domainID).
			Delete(&models.ClusterDomain{}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = audit.Record(db, audit.FromRequest(c, db, audit.Entry{
			ClusterID:  clusterID,
			Action:     "domains.detach",
			EntityType: "domain",
			EntityID:   domainID,
		}))
		hub.Publish(events.New(clusterID, "domains.detach", "domain", domainID))

		c.JSON(http.StatusOK, gin.H{"message": "domain detached"})
	}
}
