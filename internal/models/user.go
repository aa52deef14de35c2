package models

import (
	"time"

	"gorm.io/gorm"

	"postpilot/internal/domain"
)

type User struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Name           string         `gorm:"size:120;not null" json:"name"`
	Email          string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash   string         `gorm:"size:255" json:"-"`
	Role           string         `gorm:"size:20;not null;default:'USER';index" json:"role"` // USER | ADMIN
	Plan           string         `gorm:"size:20;not null;default:'trial'" json:"plan"`
	ReferredByCode string         `gorm:"size:20;index" json:"-"` // referral code submitted at signup, if any
	LinkedInURL    string         `gorm:"column:linkedin_url;size:512" json:"linkedin_url"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	Subscription *Subscription `gorm:"foreignKey:UserID" json:"subscription,omitempty"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool { return u.Role == domain.RoleAdmin }
