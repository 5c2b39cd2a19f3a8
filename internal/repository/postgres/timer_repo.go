package postgres

import (
	"context"
	"errors"

	"github.com/dom/linklearn/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type timerRepository struct {
	db *gorm.DB
}

func NewTimerRepository(db *gorm.DB) *timerRepository {
	return &timerRepository{db: db}
}

// Create maps a violation of the running-timer index to ErrTimerLocked.
func (r *timerRepository) Create(ctx context.Context, timer *domain.SessionTimer) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(timer).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrTimerLocked
	}
	return err
}

func (r *timerRepository) GetActive(ctx context.Context, sessionID uuid.UUID) (*domain.SessionTimer, error) {
	var timer domain.SessionTimer
	err := r.db.WithContext(ctx).
		Preload("Teacher").
		Where("session_id = ? AND end_time IS NULL", sessionID).
		First(&timer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &timer, nil
}

func (r *timerRepository) GetBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*domain.SessionTimer, error) {
	var timers []*domain.SessionTimer
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("start_time ASC").
		Find(&timers).Error
	if err != nil {
		return nil, err
	}
	return timers, nil
}

func (r *timerRepository) SumStopped(ctx context.Context, sessionID, teacherID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&domain.SessionTimer{}).
		Select("COALESCE(SUM(duration_seconds), 0)").
		Where("session_id = ? AND teacher_id = ? AND end_time IS NOT NULL", sessionID, teacherID).
		Scan(&total).Error
	return total, err
}

func (r *timerRepository) Update(ctx context.Context, timer *domain.SessionTimer) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(timer).Error
}
