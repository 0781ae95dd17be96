package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/streamguard/streamguard/automod/strikes"
)

// GormStore implements Store over sqlite or postgres.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(
		&User{},
		&ModAction{},
		&Permit{},
		&UserStrike{},
		&StrikeEvent{},
		&FilterSettings{},
	); err != nil {
		return nil, fmt.Errorf("migrating moderation tables: %w", err)
	}
	return &GormStore{db: db}, nil
}

var _ Store = (*GormStore)(nil)

// ==================== users ====================

func (s *GormStore) GetOrCreateUser(ctx context.Context, userID, username string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error
	if err == nil {
		if user.Username != username && username != "" {
			if err := s.db.WithContext(ctx).Model(&user).Update("username", username).Error; err != nil {
				return nil, err
			}
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	user = User{
		UserID:     userID,
		Username:   username,
		TrustScore: 50,
		FirstSeen:  time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *GormStore) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *GormStore) RecordUserMessage(ctx context.Context, userID string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&User{}).Where("user_id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"message_count": gorm.Expr("message_count + 1"),
			"last_message":  &now,
		}).Error
}

// AdjustTrust moves a user's trust score by delta, clamped to [0, 100], and
// returns the new value. Runs under a row lock so concurrent adjustments
// never lose an update.
func (s *GormStore) AdjustTrust(ctx context.Context, userID string, delta int) (int, error) {
	var score int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).First(&user).Error; err != nil {
			return err
		}
		score = user.TrustScore + delta
		if score < 0 {
			score = 0
		} else if score > 100 {
			score = 100
		}
		return tx.Model(&user).Update("trust_score", score).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 50, nil
	}
	return score, err
}

func (s *GormStore) SetWhitelisted(ctx context.Context, userID, username string, whitelisted bool) error {
	if _, err := s.GetOrCreateUser(ctx, userID, username); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&User{}).Where("user_id = ?", userID).
		Update("whitelisted", whitelisted).Error
}

func (s *GormStore) IsWhitelisted(ctx context.Context, userID string) (bool, error) {
	var user User
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.Whitelisted, nil
}

// ==================== audit log ====================

func (s *GormStore) LogAction(ctx context.Context, action *ModAction) error {
	return s.db.WithContext(ctx).Create(action).Error
}

func (s *GormStore) RecentActions(ctx context.Context, limit int) ([]ModAction, error) {
	var actions []ModAction
	err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&actions).Error
	return actions, err
}

func (s *GormStore) UserActions(ctx context.Context, userID string, limit int) ([]ModAction, error) {
	var actions []ModAction
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").Limit(limit).Find(&actions).Error
	return actions, err
}

func (s *GormStore) GetActionStats(ctx context.Context, window time.Duration) (ActionStats, error) {
	since := time.Now().Add(-window)
	var rows []struct {
		Action string
		N      int
	}
	err := s.db.WithContext(ctx).Model(&ModAction{}).
		Select("action, count(*) as n").
		Where("created_at > ?", since).
		Group("action").
		Scan(&rows).Error
	if err != nil {
		return ActionStats{}, err
	}
	stats := ActionStats{ByKind: make(map[string]int, len(rows))}
	for _, r := range rows {
		stats.ByKind[r.Action] = r.N
		stats.Total += r.N
	}
	return stats, nil
}

// ==================== permits ====================

func (s *GormStore) GrantPermit(ctx context.Context, userID, grantedBy string, duration time.Duration) error {
	permit := Permit{
		UserID:    userID,
		GrantedBy: grantedBy,
		ExpiresAt: time.Now().Add(duration),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"granted_by", "expires_at"}),
	}).Create(&permit).Error
}

func (s *GormStore) HasValidPermit(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Permit{}).
		Where("user_id = ? AND expires_at > ?", userID, time.Now()).
		Count(&count).Error
	return count > 0, err
}

func (s *GormStore) RevokePermit(ctx context.Context, userID string) (bool, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Permit{})
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) CleanupExpiredPermits(ctx context.Context) (int, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", time.Now()).Delete(&Permit{})
	return int(res.RowsAffected), res.Error
}

// ==================== filter settings ====================

func (s *GormStore) GetFilterSettings(ctx context.Context, channel string) (FilterSettings, error) {
	var settings FilterSettings
	err := s.db.WithContext(ctx).Where("channel = ?", channel).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultFilterSettings(channel), nil
	}
	return settings, err
}

func (s *GormStore) UpdateFilterSettings(ctx context.Context, settings FilterSettings) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel"}},
		UpdateAll: true,
	}).Create(&settings).Error
}

// ==================== strikes ====================

func strikeRecord(row UserStrike) strikes.Record {
	return strikes.Record{
		UserID:     row.UserID,
		Count:      row.Count,
		LastReason: row.LastReason,
		LastStrike: row.LastStrike,
		ExpiresAt:  row.ExpiresAt,
	}
}

func (s *GormStore) Get(ctx context.Context, userID string) (strikes.Record, error) {
	var row UserStrike
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return strikes.Record{UserID: userID}, nil
	}
	if err != nil {
		return strikes.Record{}, err
	}
	rec := strikeRecord(row)
	if rec.Expired(time.Now()) {
		// lazy expiry; losing the race to another worker is harmless
		s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&UserStrike{})
		return strikes.Record{UserID: userID}, nil
	}
	return rec, nil
}

// Increment runs the expire-check and bump inside one transaction with the
// row locked, so two workers striking the same user never lose a count.
func (s *GormStore) Increment(ctx context.Context, userID, reason string, expiresAt time.Time) (strikes.Record, error) {
	var out strikes.Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		var row UserStrike
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).First(&row).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = UserStrike{UserID: userID}
		} else if strikeRecord(row).Expired(now) {
			row.Count = 0
		}
		row.Count++
		row.LastReason = reason
		row.LastStrike = now
		row.ExpiresAt = expiresAt
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		out = strikeRecord(row)
		return nil
	})
	return out, err
}

func (s *GormStore) Clear(ctx context.Context, userID string) (bool, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&UserStrike{})
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) History(ctx context.Context, userID string, limit int) ([]strikes.HistoryEntry, error) {
	var rows []StrikeEvent
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]strikes.HistoryEntry, len(rows))
	for i, r := range rows {
		out[i] = strikes.HistoryEntry{
			UserID:      r.UserID,
			Username:    r.Username,
			Reason:      r.Reason,
			ActionTaken: r.ActionTaken,
			Moderator:   r.Moderator,
			Channel:     r.Channel,
			CreatedAt:   r.CreatedAt,
		}
	}
	return out, nil
}

func (s *GormStore) AppendHistory(ctx context.Context, entry strikes.HistoryEntry) error {
	row := StrikeEvent{
		CreatedAt:   entry.CreatedAt,
		UserID:      entry.UserID,
		Username:    entry.Username,
		Reason:      entry.Reason,
		ActionTaken: entry.ActionTaken,
		Moderator:   entry.Moderator,
		Channel:     entry.Channel,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}
