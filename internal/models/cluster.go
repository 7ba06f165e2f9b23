package models

import "time"

// Cluster is the top-level tenant container. All access control hangs off
// cluster memberships; domains and resources are reachable only through
// the clusters a user belongs to.
type Cluster struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Slug        string    `gorm:"size:200;uniqueIndex;not null" json:"slug"`
	Description string    `gorm:"size:512" json:"description"`
	OwnerID     int64     `gorm:"index;not null" json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Members []Membership `gorm:"foreignKey:ClusterID" json:"-"`
	Domains []Domain     `gorm:"many2many:cluster_domains;" json:"-"`
}
