package models

import (
	"time"

	"gorm.io/datatypes"
)

type ResourceStatus string

const (
	ResourceOnline  ResourceStatus = "online"
	ResourceOffline ResourceStatus = "offline"
)

// Resource is the leaf unit of configuration: a named, typed record with a
// free-form JSON payload. Connector-registered resources additionally carry
// a status and heartbeat timestamp.
type Resource struct {
	ID         int64          `gorm:"primaryKey" json:"id"`
	Name       string         `gorm:"size:200;not null" json:"name"`
	Type       string         `gorm:"size:100;not null" json:"type"`
	Config     datatypes.JSON `gorm:"type:json" json:"config"`
	Status     ResourceStatus `gorm:"size:50" json:"status,omitempty"`
	LastSeenAt *time.Time     `gorm:"index" json:"last_seen_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`

	Domains []Domain `gorm:"many2many:domain_resources;" json:"-"`
}

// DomainResource is the domain<->resource junction row.
type DomainResource struct {
	DomainID   int64 `gorm:"primaryKey" json:"domain_id"`
	ResourceID int64 `gorm:"primaryKey" json:"resource_id"`
}

func (DomainResource) TableName() string { return "domain_resources" }
