package seed

import (
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"universo_lite/internal/access"
	"universo_lite/internal/models"
)

const (
	demoEmail = "owner@universo.local"
	demoPass  = "changeme-now" // change after first login
)

// FirstSetup creates a demo owner with a starter cluster and domain. Every
// step is idempotent, so it is safe to run on each boot.
func FirstSetup(db *gorm.DB, log *zap.Logger) error {
	passHash, err := bcrypt.GenerateFromPassword([]byte(demoPass), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	owner := models.User{
		Email:        demoEmail,
		Name:         "Demo Owner",
		Status:       models.UserActive,
		PasswordHash: string(passHash),
	}
	if err := db.Where("email = ?", demoEmail).FirstOrCreate(&owner).Error; err != nil {
		return err
	}

	cluster := models.Cluster{
		Name:        "Starter Cluster",
		Slug:        "starter",
		Description: "First cluster, created by the seed",
		OwnerID:     owner.ID,
	}
	if err := db.Where("slug = ?", cluster.Slug).FirstOrCreate(&cluster).Error; err != nil {
		return err
	}

	membership := models.Membership{
		ClusterID: cluster.ID,
		UserID:    owner.ID,
		Role:      access.RoleOwner,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&membership).Error; err != nil {
		return err
	}

	domain := models.Domain{
		Name:        "Main Domain",
		Description: "Default grouping for the starter cluster",
	}
	var link models.ClusterDomain
	err = db.Where("cluster_id = ?", cluster.ID).First(&link).Error
	if err == gorm.ErrRecordNotFound {
		if err := db.Create(&domain).Error; err != nil {
			return err
		}
		if err := db.Create(&models.ClusterDomain{ClusterID: cluster.ID, DomainID: domain.ID}).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	log.Info("seed ok",
		zap.String("owner", demoEmail),
		zap.String("cluster", cluster.Slug),
	)
	return nil
}
