package tenancy

import (
	"gorm.io/gorm"

	"universo_lite/internal/models"
)

// Row isolation is enforced here as explicit query scoping: every lookup of
// a domain or resource travels through the junction tables down to the
// caller's cluster memberships. Nothing relies on session-level database
// state, so each request carries its own scope and tests can assert
// isolation directly.

// ClusterIDs returns the IDs of every cluster the user is a member of.
func ClusterIDs(db *gorm.DB, userID int64) ([]int64, error) {
	var ids []int64
	err := db.Model(&models.Membership{}).
		Where("user_id = ?", userID).
		Pluck("cluster_id", &ids).Error
	return ids, err
}

// Clusters returns a query over the clusters visible to the user.
func Clusters(db *gorm.DB, userID int64) *gorm.DB {
	return db.Model(&models.Cluster{}).
		Joins("JOIN memberships m ON m.cluster_id = clusters.id AND m.user_id = ?", userID)
}

// Domains returns a query over the domains visible to the user. Distinct
// because a domain attached to several of the user's clusters would
// otherwise appear once per attachment.
func Domains(db *gorm.DB, userID int64) *gorm.DB {
	return db.Model(&models.Domain{}).
		Distinct("domains.*").
		Joins("JOIN cluster_domains cd ON cd.domain_id = domains.id").
		Joins("JOIN memberships m ON m.cluster_id = cd.cluster_id AND m.user_id = ?", userID)
}

// Resources returns a query over the resources visible to the user.
func Resources(db *gorm.DB, userID int64) *gorm.DB {
	return db.Model(&models.Resource{}).
		Distinct("resources.*").
		Joins("JOIN domain_resources dr ON dr.resource_id = resources.id").
		Joins("JOIN cluster_domains cd ON cd.domain_id = dr.domain_id").
		Joins("JOIN memberships m ON m.cluster_id = cd.cluster_id AND m.user_id = ?", userID)
}

// CountDomains counts the distinct domains visible to the user. Counting
// happens over the junction table; COUNT(DISTINCT domains.*) is not SQL.
func CountDomains(db *gorm.DB, userID int64) (int64, error) {
	var count int64
	err := db.Table("cluster_domains cd").
		Joins("JOIN memberships m ON m.cluster_id = cd.cluster_id").
		Where("m.user_id = ?", userID).
		Distinct("cd.domain_id").
		Count(&count).Error
	return count, err
}

// CountResources counts the distinct resources visible to the user.
func CountResources(db *gorm.DB, userID int64) (int64, error) {
	var count int64
	err := db.Table("domain_resources dr").
		Joins("JOIN cluster_domains cd ON cd.domain_id = dr.domain_id").
		Joins("JOIN memberships m ON m.cluster_id = cd.cluster_id").
		Where("m.user_id = ?", userID).
		Distinct("dr.resource_id").
		Count(&count).Error
	return count, err
}

// DomainVisible reports whether the user can see the domain at all.
func DomainVisible(db *gorm.DB, userID, domainID int64) (bool, error) {
	var count int64
	err := db.Table("cluster_domains cd").
		Joins("JOIN memberships m ON m.cluster_id = cd.cluster_id").
		Where("m.user_id = ? AND cd.domain_id = ?", userID, domainID).
		Count(&count).Error
	return count > 0, err
}

// ResourceVisible reports whether the user can see the resource at all.
func ResourceVisible(db *gorm.DB, userID, resourceID int64) (bool, error) {
	var count int64
	err := db.Table("domain_resources dr").
		Joins("JOIN cluster_domains cd ON cd.domain_id = dr.domain_id").
		Joins("JOIN memberships m ON m.cluster_id = cd.cluster_id").
		Where("m.user_id = ? AND dr.resource_id = ?", userID, resourceID).
		Count(&count).Error
	return count > 0, err
}
