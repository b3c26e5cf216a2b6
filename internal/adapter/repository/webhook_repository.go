package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jobdeck/billing/internal/domain/model"
)

// WebhookRepository stores raw provider events for dedup and replay
type WebhookRepository interface {
	// SaveEvent persists a new event. Returns false when the provider
	// event id was seen before (at-least-once redelivery).
	SaveEvent(ctx context.Context, eventID, eventType string, data json.RawMessage) (bool, error)
	GetEvent(ctx context.Context, eventID string) (*model.ProviderWebhookEvent, error)
	MarkProcessed(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID string, cause error) error
}

type webhookRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWebhookRepository creates a new webhook repository
func NewWebhookRepository(db *gorm.DB, logger *zap.Logger) WebhookRepository {
	return &webhookRepository{
		db:     db,
		logger: logger,
	}
}

// SaveEvent saves a new webhook event, ignoring duplicates
func (r *webhookRepository) SaveEvent(ctx context.Context, eventID, eventType string, data json.RawMessage) (bool, error) {
	var eventData map[string]interface{}
	if err := json.Unmarshal(data, &eventData); err != nil {
		r.logger.Warn("Failed to parse event data",
			zap.String("event_id", eventID),
			zap.Error(err))
	}

	var providerCreatedAt *time.Time
	if created, ok := eventData["created"].(float64); ok {
		t := time.Unix(int64(created), 0)
		providerCreatedAt = &t
	}

	event := &model.ProviderWebhookEvent{
		ProviderEventID:   eventID,
		EventType:         eventType,
		Status:            model.WebhookStatusPending,
		Data:              model.JSONB(eventData),
		ProviderCreatedAt: providerCreatedAt,
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_event_id"}},
			DoNothing: true,
		}).
		Create(event)

	if res.Error != nil {
		r.logger.Error("Failed to save webhook event",
			zap.String("event_id", eventID),
			zap.Error(res.Error))
		return false, fmt.Errorf("failed to save webhook event: %w", res.Error)
	}

	return res.RowsAffected > 0, nil
}

// GetEvent retrieves a stored webhook event by provider event id
func (r *webhookRepository) GetEvent(ctx context.Context, eventID string) (*model.ProviderWebhookEvent, error) {
	var event model.ProviderWebhookEvent

	err := r.db.WithContext(ctx).
		Where("provider_event_id = ?", eventID).
		First(&event).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}

	return &event, nil
}

// MarkProcessed marks an event as successfully applied
func (r *webhookRepository) MarkProcessed(ctx context.Context, eventID string) error {
	now := time.Now()
	err := r.db.WithContext(ctx).
		Model(&model.ProviderWebhookEvent{}).
		Where("provider_event_id = ?", eventID).
		Updates(map[string]interface{}{
			"status":       model.WebhookStatusCompleted,
			"processed_at": &now,
			"last_error":   nil,
		}).Error

	if err != nil {
		return fmt.Errorf("failed to mark webhook event processed: %w", err)
	}
	return nil
}

// MarkFailed records a processing failure so the event can be replayed
func (r *webhookRepository) MarkFailed(ctx context.Context, eventID string, cause error) error {
	msg := cause.Error()
	err := r.db.WithContext(ctx).
		Model(&model.ProviderWebhookEvent{}).
		Where("provider_event_id = ?", eventID).
		Updates(map[string]interface{}{
			"status":     model.WebhookStatusFailed,
			"last_error": &msg,
		}).Error

	if err != nil {
		return fmt.Errorf("failed to mark webhook event failed: %w", err)
	}
	return nil
}
