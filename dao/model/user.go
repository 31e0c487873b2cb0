package model

import (
	"gorm.io/gorm"
)

// User is the owner of checks. Account management (signup, login, password
// reset) lives outside this service; rows are provisioned by the auth
// backend and consumed here for plan limits and alert routing.
type User struct {
	gorm.Model
	Name  string `gorm:"type:varchar(64);not null" json:"name"`
	Email string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`

	PlanType PlanType `gorm:"type:varchar(16);not null;default:free" json:"planType"`

	// Alert preferences.
	EmailAlertsEnabled    bool   `gorm:"not null;default:true" json:"emailAlertsEnabled"`
	TelegramAlertsEnabled bool   `gorm:"not null;default:false" json:"telegramAlertsEnabled"`
	TelegramChatID        string `gorm:"type:varchar(64)" json:"telegramChatId,omitempty"`
}

func (User) TableName() string {
	return "users"
}
