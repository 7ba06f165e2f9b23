package models

import "time"

type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
)

type User struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name         string     `gorm:"size:200" json:"name"`
	PasswordHash string     `gorm:"size:255" json:"-"`
	Status       UserStatus `gorm:"size:16;default:active" json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Memberships []Membership `gorm:"foreignKey:UserID" json:"-"`
}
