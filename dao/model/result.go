package model

import (
	"gorm.io/gorm"
)

// CheckResult is one probe outcome. Rows are append-only and never updated;
// CreatedAt doubles as the probe timestamp.
type CheckResult struct {
	gorm.Model
	CheckID uint `gorm:"not null;index" json:"checkId"`

	Region       string `gorm:"type:varchar(32);not null" json:"region"`
	StatusCode   int    `gorm:"not null" json:"statusCode"` // 0 when no response was received
	LatencyMs    int64  `gorm:"not null" json:"latencyMs"`
	Success      bool   `gorm:"not null;index" json:"success"`
	ErrorMessage string `gorm:"type:text" json:"errorMessage,omitempty"`
}

func (CheckResult) TableName() string {
	return "check_results"
}
