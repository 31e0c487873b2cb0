package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ankalabs/pulse/dao/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = gorm.ErrRecordNotFound

// Store is the persistence layer for checks, results and alerts.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for components that manage their own
// queries (retention cleaner).
func (s *Store) DB() *gorm.DB {
	return s.db
}

// ---- checks ----

func (s *Store) CreateCheck(ctx context.Context, check *model.Check) error {
	return s.db.WithContext(ctx).Create(check).Error
}

func (s *Store) GetCheck(ctx context.Context, id uint) (*model.Check, error) {
	check := &model.Check{}
	if err := s.db.WithContext(ctx).First(check, id).Error; err != nil {
		return nil, err
	}
	return check, nil
}

// GetUserCheck fetches a check scoped to its owner, so one user cannot read
// or mutate another user's check by guessing ids.
func (s *Store) GetUserCheck(ctx context.Context, id, userID uint) (*model.Check, error) {
	check := &model.Check{}
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(check).Error
	if err != nil {
		return nil, err
	}
	return check, nil
}

func (s *Store) ListUserChecks(ctx context.Context, userID uint) ([]model.Check, error) {
	var checks []model.Check
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status <> ?", userID, model.CheckStatusDeleted).
		Order("created_at DESC").
		Find(&checks).Error
	return checks, err
}

func (s *Store) CountUserChecks(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Check{}).
		Where("user_id = ? AND status <> ?", userID, model.CheckStatusDeleted).
		Count(&count).Error
	return count, err
}

func (s *Store) UpdateCheck(ctx context.Context, check *model.Check) error {
	return s.db.WithContext(ctx).Save(check).Error
}

func (s *Store) SetCheckStatus(ctx context.Context, id uint, status model.CheckStatus) error {
	return s.db.WithContext(ctx).
		Model(&model.Check{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// FindActiveChecks returns every check that should carry a recurring job.
func (s *Store) FindActiveChecks(ctx context.Context) ([]model.Check, error) {
	var checks []model.Check
	err := s.db.WithContext(ctx).
		Where("status = ?", model.CheckStatusActive).
		Find(&checks).Error
	return checks, err
}

// FindCheckWithOwner loads a check together with its owning user, which
// carries the alert preferences and plan tier.
func (s *Store) FindCheckWithOwner(ctx context.Context, checkID uint) (*model.Check, error) {
	check := &model.Check{}
	err := s.db.WithContext(ctx).
		Preload("User").
		First(check, checkID).Error
	if err != nil {
		return nil, err
	}
	return check, nil
}

// ---- results ----

// RecordResult persists a probe outcome and the parent check's health
// snapshot as one transaction. The failure counter is bumped with a SQL
// expression so concurrent workers cannot lose an increment.
func (s *Store) RecordResult(ctx context.Context, result *model.CheckResult) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(result).Error; err != nil {
			return fmt.Errorf("insert check result: %w", err)
		}

		now := time.Now()
		updates := map[string]any{
			"last_check_at": now,
			"last_status":   healthStatusFor(result),
		}
		if result.Success {
			updates["failure_count"] = 0
		} else {
			updates["failure_count"] = gorm.Expr("failure_count + 1")
		}

		res := tx.Model(&model.Check{}).Where("id = ?", result.CheckID).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update check snapshot: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("update check snapshot: check %d: %w", result.CheckID, ErrNotFound)
		}
		return nil
	})
}

func healthStatusFor(result *model.CheckResult) model.HealthStatus {
	switch {
	case result.Success:
		return model.HealthStatusUp
	case result.StatusCode == 0 && result.ErrorMessage == "Request timeout":
		return model.HealthStatusTimeout
	default:
		return model.HealthStatusDown
	}
}

func (s *Store) GetResult(ctx context.Context, id uint) (*model.CheckResult, error) {
	result := &model.CheckResult{}
	if err := s.db.WithContext(ctx).First(result, id).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListResults(ctx context.Context, checkID uint, limit int) ([]model.CheckResult, error) {
	var results []model.CheckResult
	err := s.db.WithContext(ctx).
		Where("check_id = ?", checkID).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error
	return results, err
}

// PurgeResultsBefore hard-deletes results of one user's checks older than
// the cutoff. Used by the retention cleaner.
func (s *Store) PurgeResultsBefore(ctx context.Context, userID uint, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("check_id IN (?)",
			s.db.Model(&model.Check{}).Select("id").Where("user_id = ?", userID)).
		Where("created_at < ?", cutoff).
		Unscoped().
		Delete(&model.CheckResult{})
	return res.RowsAffected, res.Error
}

// ---- alerts ----

func (s *Store) CreateAlert(ctx context.Context, alert *model.Alert) error {
	if alert.SentAt.IsZero() {
		alert.SentAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(alert).Error
}

// LatestAlert returns the most recent alert for a check, or nil when the
// check has never alerted.
func (s *Store) LatestAlert(ctx context.Context, checkID uint) (*model.Alert, error) {
	alert := &model.Alert{}
	err := s.db.WithContext(ctx).
		Where("check_id = ?", checkID).
		Order("sent_at DESC").
		First(alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return alert, nil
}

func (s *Store) ListAlerts(ctx context.Context, checkID uint, limit int) ([]model.Alert, error) {
	var alerts []model.Alert
	err := s.db.WithContext(ctx).
		Where("check_id = ?", checkID).
		Order("sent_at DESC").
		Limit(limit).
		Find(&alerts).Error
	return alerts, err
}

func (s *Store) ListAllAlerts(ctx context.Context, checkID uint) ([]model.Alert, error) {
	var alerts []model.Alert
	err := s.db.WithContext(ctx).
		Where("check_id = ?", checkID).
		Find(&alerts).Error
	return alerts, err
}

// ---- users ----

func (s *Store) GetUser(ctx context.Context, id uint) (*model.User, error) {
	user := &model.User{}
	if err := s.db.WithContext(ctx).First(user, id).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := s.db.WithContext(ctx).Find(&users).Error
	return users, err
}

func (s *Store) UpdateAlertPreferences(
	ctx context.Context,
	userID uint,
	emailEnabled, telegramEnabled bool,
	telegramChatID string,
) error {
	res := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"email_alerts_enabled":    emailEnabled,
			"telegram_alerts_enabled": telegramEnabled,
			"telegram_chat_id":        telegramChatID,
		})
	return res.Error
}
