package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Name         string `gorm:"default:''"`
	Email        string `gorm:"unique;not null"`
	Role         string `gorm:"default:'USER'"` // USER, ADMIN
	Password     string `gorm:"not null"`
	ProfileImage string `gorm:"default:''"`
	LastLogin    *time.Time
	IsDeleted    bool `gorm:"default:false"`
}
