package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"gemmachat/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(session *model.Session) error {
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("create session failed: %w", err)
	}
	return nil
}

// GetActiveByToken returns the session row matching the exact token whose
// expiry has not passed, or nil when no such row exists.
func (r *SessionRepository) GetActiveByToken(token string, now time.Time) (*model.Session, error) {
	var session model.Session
	if err := r.db.Where("token = ? AND expires_at > ?", token, now).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query session by token failed: %w", err)
	}
	return &session, nil
}

// DeleteByToken removes the session row. Deleting an absent token is a no-op.
func (r *SessionRepository) DeleteByToken(token string) error {
	if err := r.db.Where("token = ?", token).Delete(&model.Session{}).Error; err != nil {
		return fmt.Errorf("delete session failed: %w", err)
	}
	return nil
}
