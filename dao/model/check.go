package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CheckInterval is the user-facing probe interval of a check.
type CheckInterval string

func (i CheckInterval) String() string {
	return string(i)
}

const (
	Interval1Min  CheckInterval = "1min"
	Interval5Min  CheckInterval = "5min"
	Interval15Min CheckInterval = "15min"
	Interval30Min CheckInterval = "30min"
	Interval1Hour CheckInterval = "1hour"
	Interval1Day  CheckInterval = "1day"
)

// Minutes returns the interval length used when enforcing a plan's
// minimum-interval floor. Unknown values map to the 30 minute default,
// matching the scheduler's fallback rule.
func (i CheckInterval) Minutes() int {
	switch i {
	case Interval1Min:
		return 1
	case Interval5Min:
		return 5
	case Interval15Min:
		return 15
	case Interval30Min:
		return 30
	case Interval1Hour:
		return 60
	case Interval1Day:
		return 60 * 24
	default:
		return 30
	}
}

// CheckStatus is the lifecycle state of a check.
type CheckStatus string

const (
	CheckStatusActive CheckStatus = "active"
	CheckStatusPaused CheckStatus = "paused"
	// Soft-deleted checks keep their result history until the retention
	// cleaner drops it.
	CheckStatusDeleted CheckStatus = "deleted"
)

// HealthStatus is the denormalized outcome of the most recent probe.
type HealthStatus string

const (
	HealthStatusUp      HealthStatus = "up"
	HealthStatusDown    HealthStatus = "down"
	HealthStatusTimeout HealthStatus = "timeout"
)

// Check is a user-configured monitored endpoint.
type Check struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"userId"`
	User   User `json:"-"`

	URL            string                      `gorm:"type:varchar(2048);not null" json:"url"`
	Name           string                      `gorm:"type:varchar(255)" json:"name"`
	Interval       CheckInterval               `gorm:"type:varchar(16);not null;default:30min" json:"interval"`
	Regions        datatypes.JSONSlice[string] `json:"regions"`
	Timeout        int                         `gorm:"not null;default:30" json:"timeout"` // seconds
	ExpectedStatus int                         `gorm:"not null;default:200" json:"expectedStatusCode"`
	Status         CheckStatus                 `gorm:"type:varchar(16);not null;index;default:active" json:"status"`

	// Rolling health snapshot, maintained atomically with each result write.
	LastCheckAt  *time.Time   `json:"lastCheckAt"`
	LastStatus   HealthStatus `gorm:"type:varchar(16)" json:"lastStatus"`
	FailureCount int          `gorm:"not null;default:0" json:"failureCount"`
}

func (Check) TableName() string {
	return "checks"
}
