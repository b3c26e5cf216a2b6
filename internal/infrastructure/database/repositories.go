package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jobdeck/billing/internal/adapter/repository"
	domainRepo "github.com/jobdeck/billing/internal/domain/repository"
)

// Repositories holds all repository instances
type Repositories struct {
	Subscription domainRepo.SubscriptionRepository
	Usage        domainRepo.UsageRepository
	Webhook      repository.WebhookRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Subscription: repository.NewSubscriptionRepository(db, logger),
		Usage:        repository.NewUsageRepository(db, logger),
		Webhook:      repository.NewWebhookRepository(db, logger),
	}
}
