package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"universo_lite/internal/auth"
	"universo_lite/internal/models"
)

// Register creates a new user account.
func Register(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Email    string `json:"email" binding:"required,email"`
			Name     string `json:"name" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		in.Email = strings.TrimSpace(strings.ToLower(in.Email))
		in.Name = strings.TrimSpace(in.Name)

		if len(in.Password) < 8 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "password must be at least 8 characters"})
			return
		}

		var existing int64
		if err := db.Model(&models.User{}).Where("email = ?", in.Email).Count(&existing).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if existing > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
			return
		}

		user := models.User{
			Email:        in.Email,
			Name:         in.Name,
			PasswordHash: string(hash),
			Status:       models.UserActive,
		}
		if err := db.Create(&user).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"data": user})
	}
}

// Login authenticates the user and returns a JWT, also set as a cookie for
// browser clients.
func Login(db *gorm.DB, jwtSecret string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		var user models.User
		if err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(in.Email))).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		if user.Status != models.UserActive {
			c.JSON(http.StatusForbidden, gin.H{"error": "account suspended"})
			return
		}

		token, exp, err := auth.GenerateToken(user.ID, user.Email, jwtSecret, ttl)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
			return
		}

		c.SetCookie("token", token, int(time.Until(exp).Seconds()), "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"expires_at": exp,
			"user": gin.H{
				"id":    user.ID,
				"email": user.Email,
				"name":  user.Name,
			},
		})
	}
}

// Logout clears the auth cookie.
func Logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetCookie("token", "", -1, "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

// Me returns the current user together with their cluster memberships.
func Me(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, ok := auth.ClaimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var user models.User
		if err := db.First(&user, cl.UserID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}

		var memberships []models.Membership
		if err := db.Preload("Cluster").Where("user_id = ?", cl.UserID).Find(&memberships).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		out := make([]gin.H, 0, len(memberships))
		for _, m := range memberships {
			item := gin.H{"cluster_id": m.ClusterID, "role": m.Role}
			if m.Cluster != nil {
				item["cluster_name"] = m.Cluster.Name
				item["cluster_slug"] = m.Cluster.Slug
			}
			out = append(out, item)
		}

		c.JSON(http.StatusOK, gin.H{"data": user, "memberships": out})
	}
}
