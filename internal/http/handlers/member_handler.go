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
)

// ListMembers returns the cluster's memberships with user details.
func ListMembers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		clusterID := c.GetInt64(ctxClusterID)

		var members []models.Membership
		if err := db.Preload("User").Where("cluster_id = ?", clusterID).Order("id").Find(&members).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": members})
	}
}

// countOwners counts members holding the owner role in a cluster.
func countOwners(db *gorm.DB, clusterID int64) (int64, error) {
	var n int64
	err := db.Model(&models.Membership{}).
		Where("cluster_id = ? AND role = ?", clusterID, access.RoleOwner).
		Count(&n).Error
	return n, err
}

// AddMember adds a user (by email) to the cluster with a role. Granting the
// owner role is reserved to owners.
func AddMember(db *gorm.DB, hub *events.Hub) gin.HandlerFunc {
	chk := access.Checker{DB: db}
	return func(c *gin.Context) {
		cl, _ := auth.ClaimsFrom(c)
		clusterID := c.GetInt64(ctxClusterID)

		var in struct {
			Email string `json:"email" binding:"required,email"`
			Role  string `json:"role" binding:"required"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		if !access.ValidRole(in.Role) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown role"})
			return
		}

		if in.Role == access.RoleOwner {
			callerRole, err := chk.RoleIn(c, cl.UserID, clusterID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if callerRole != access.RoleOwner {
				c.JSON(http.StatusForbidden, gin.H{"error": "only owners can grant the owner role"})
				return
			}
		}

		var user models.User
		if err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(in.Email))).First(&user).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}

		var dup int64
		if err := db.Model(&models.Membership{}).
			Where("cluster_id = ? AND user_id = ?", clusterID, user.ID).
			Count(&dup).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if dup > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "user is already a member"})
			return
		}

		m := models.Membership{ClusterID: clusterID, UserID: user.ID, Role: in.Role}
		if err := db.Create(&m).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = audit.Record(db, audit.FromRequest(c, db, audit.Entry{
			ClusterID:  clusterID,
			Action:     "members.add",
			EntityType: "membership",
			EntityID:   m.ID,
			Meta:       map[string]interface{}{"email": user.Email, "role": in.Role},
		}))
		hub.Publish(events.New(clusterID, "members.add", "membership", m.ID))

		c.JSON(http.StatusCreated, gin.H{"data": m})
	}
}

// UpdateMemberRole changes a member's role. The last owner can never be
// demoted, and touching an owner requires owner rights.
func UpdateMemberRole(db *gorm.DB, hub *events.Hub) gin.HandlerFunc {
	chk := access.Checker{DB: db}
	return func(c *gin.Context) {
		cl, _ := auth.ClaimsFrom(c)
		clusterID := c.GetInt64(ctxClusterID)
		userID, ok := pathID(c, "userID")
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
			return
		}

		var in struct {
			Role string `json:"role" binding:"required"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		if !access.ValidRole(in.Role) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown role"})
			return
		}

		var m models.Membership
		if err := db.Where("cluster_id = ? AND user_id = ?", clusterID, userID).First(&m).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
			return
		}
		if m.Role == in.Role {
			c.JSON(http.StatusOK, gin.H{"data": m})
			return
		}

		if m.Role == access.RoleOwner || in.Role == access.RoleOwner {
			callerRole, err := chk.RoleIn(c, cl.UserID, clusterID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if callerRole != access.RoleOwner {
				c.JSON(http.StatusForbidden, gin.H{"error": "only owners can change owner roles"})
				return
			}
		}

		if m.Role == access.RoleOwner && in.Role != access.RoleOwner {
			owners, err := countOwners(db, clusterID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if owners <= 1 {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cluster must keep at least one owner"})
				return
			}
		}

		prev := m.Role
		if err := db.Model(&m).Update("role", in.Role).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = audit.Record(db, audit.FromRequest(c, db, audit.Entry{
			ClusterID:  clusterID,
			Action:     "members.update_role",
			EntityType: "membership",
			EntityID:   m.ID,
			Meta:       map[string]interface{}{"user_id": userID, "from": prev, "to": in.Role},
		}))
		hub.Publish(events.New(clusterID, "members.update_role", "membership", m.ID))

		c.JSON(http.StatusOK, gin.H{"data": m})
	}
}

// RemoveMember removes a user from the cluster, guarding the last owner.
func RemoveMember(db *gorm.DB, hub *events.Hub) gin.HandlerFunc {
	chk := access.Checker{DB: db}
	return func(c *gin.Context) {
		cl, _ := auth.ClaimsFrom(c)
		clusterID := c.GetInt64(ctxClusterID)
		userID, ok := pathID(c, "userID")
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
			return
		}

		var m models.Membership
		if err := db.Where("cluster_id = ? AND user_id = ?", clusterID, userID).First(&m).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
			return
		}

		if m.Role == access.RoleOwner {
			callerRole, err := chk.RoleIn(c, cl.UserID, clusterID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if callerRole != access.RoleOwner {
				c.JSON(http.StatusForbidden, gin.H{"error": "only owners can remove an owner"})
				return
			}
			owners, err := countOwners(db, clusterID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if owners <= 1 {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cluster must keep at least one owner"})
				return
			}
		}

		if err := db.Delete(&m).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = audit.Record(db, audit.FromRequest(c, db, audit.Entry{
			ClusterID:  clusterID,
			Action:     "members.remove",
			EntityType: "membership",
			EntityID:   m.ID,
			Meta:       map[string]interface{}{"user_id": userID, "role": m.Role},
		}))
		hub.Publish(events.New(clusterID, "members.remove", "membership", m.ID))

		c.JSON(http.StatusOK, gin.H{"message": "member removed"})
	}
}
