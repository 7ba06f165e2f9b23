package models

import "time"

// Domain is the mid-level grouping. A domain always belongs to at least one
// cluster via the cluster_domains junction.
type Domain struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Description string    `gorm:"size:512" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Clusters  []Cluster  `gorm:"many2many:cluster_domains;" json:"-"`
	Resources []Resource `gorm:"many2many:domain_resources;" json:"-"`
}

// ClusterDomain is the cluster<->domain junction row. Kept as an explicit
// model so scoped queries and attach/detach can address the table directly.
type ClusterDomain struct {
	ClusterID int64 `gorm:"primaryKey" json:"cluster_id"`
	DomainID  int64 `gorm:"primaryKey" json:"domain_id"`
}

func (ClusterDomain) TableName() string { return "cluster_domains" }
