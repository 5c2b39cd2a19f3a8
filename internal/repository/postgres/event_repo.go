package postgres

import (
	"context"

	"github.com/dom/linklearn/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *eventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *domain.SessionEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepository) Since(ctx context.Context, sessionID uuid.UUID, sinceID int64, limit int) ([]*domain.SessionEvent, error) {
	var events []*domain.SessionEvent
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND id > ?", sessionID, sinceID).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventRepository) LatestID(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	var id int64
	err := r.db.WithContext(ctx).
		Model(&domain.SessionEvent{}).
		Select("COALESCE(MAX(id), 0)").
		Where("session_id = ?", sessionID).
		Scan(&id).Error
	return id, err
}
