package model

import (
	"time"

	"gorm.io/gorm"
)

// AlertChannel is the notification channel an alert was attempted on.
type AlertChannel string

func (c AlertChannel) String() string {
	return string(c)
}

const (
	AlertChannelEmail    AlertChannel = "email"
	AlertChannelTelegram AlertChannel = "telegram"
)

// Alert records one notification attempt for a failing check result.
// Append-only audit trail: a row is written whether the send succeeded or
// not, but never when the dispatcher suppressed the notification (cooldown
// or channel configuration gap).
type Alert struct {
	gorm.Model
	CheckID       uint `gorm:"not null;index" json:"checkId"`
	CheckResultID uint `gorm:"not null;index" json:"checkResultId"`

	Channel AlertChannel `gorm:"type:varchar(16);not null" json:"channel"`
	Success bool         `gorm:"not null" json:"success"`
	Reason  string       `gorm:"type:text" json:"reason,omitempty"`
	SentAt  time.Time    `gorm:"not null;index" json:"sentAt"`
}

func (Alert) TableName() string {
	return "alerts"
}
