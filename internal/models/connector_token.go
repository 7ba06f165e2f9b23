package models

import "time"

// ConnectorToken authorizes an external node to register a resource into a
// cluster's domain. Single-use for registration; after use it stays bound to
// the created resource and authenticates its heartbeats.
type ConnectorToken struct {
	ID         int64      `gorm:"primaryKey" json:"id"`
	Token      string     `gorm:"size:128;uniqueIndex;not null" json:"-"`
	ClusterID  int64      `gorm:"index;not null" json:"cluster_id"`
	DomainID   int64      `gorm:"index;not null" json:"domain_id"`
	ResourceID *int64     `gorm:"index" json:"resource_id,omitempty"`
	Used       bool       `gorm:"default:false" json:"used"`
	ExpiresAt  *time.Time `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
