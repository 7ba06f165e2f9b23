package models

import "time"

// Membership joins a user to a cluster with a role. A (cluster, user) pair
// is unique; the role decides what the permission matrix allows.
type Membership struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	ClusterID int64     `gorm:"index;uniqueIndex:idx_cluster_user;not null" json:"cluster_id"`
	UserID    int64     `gorm:"index;uniqueIndex:idx_cluster_user;not null" json:"user_id"`
	Role      string    `gorm:"size:32;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User    *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Cluster *Cluster `gorm:"foreignKey:ClusterID" json:"-"`
}
