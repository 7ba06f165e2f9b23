package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditLog struct {
	ID         int64          `gorm:"primaryKey" json:"id"`
	ClusterID  int64          `gorm:"index;not null" json:"cluster_id"`
	UserID     int64          `gorm:"index" json:"user_id"` // zero for system actions (e.g. sweeper)
	Action     string         `gorm:"size:200;not null" json:"action"`
	EntityType string         `gorm:"size:100" json:"entity_type"`
	EntityID   int64          `gorm:"index" json:"entity_id"`
	Metadata   datatypes.JSON `gorm:"type:json" json:"metadata"`
	IP         string         `gorm:"size:64" json:"ip"`
	UserAgent  string         `gorm:"size:255" json:"user_agent"`
	ActorName  string         `gorm:"size:255" json:"actor_name"`
	CreatedAt  time.Time      `json:"created_at"`

	Cluster *Cluster `gorm:"foreignKey:ClusterID" json:"-"`
	User    *User    `gorm:"foreignKey:UserID" json:"-"`
}
