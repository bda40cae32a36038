package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ssraminder/financial-dashboard/internal/domain"
	"github.com/ssraminder/financial-dashboard/internal/infra/observability"
	"github.com/ssraminder/financial-dashboard/internal/port"
)

var reviewTracer = otel.Tracer("service/review")

const (
	defaultQueueLimit = 50
	maxQueueLimit     = 500
	defaultPageSize   = 20
	maxPageSize       = 100
)

// ReviewService handles the categorisation queue, the chart of accounts
// and operator notifications.
type ReviewService struct {
	store   port.LedgerStore
	refs    port.Cache[any]
	now     func() time.Time
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewReviewService creates a new review service.
func NewReviewService(store port.LedgerStore, refs port.Cache[any], metrics *observability.Metrics, logger *zap.Logger) *ReviewService {
	return &ReviewService{store: store, refs: refs, now: time.Now, metrics: metrics, logger: logger}
}

// ============================================================
// Review queue
// ============================================================

// Queue returns transactions flagged for review, oldest first.
func (s *ReviewService) Queue(ctx context.Context, limit int) ([]domain.Transaction, error) {
	ctx, span := reviewTracer.Start(ctx, "ReviewService.Queue")
	defer span.End()

	switch {
	case limit <= 0:
		limit = defaultQueueLimit
	case limit > maxQueueLimit:
		limit = maxQueueLimit
	}

	txs, err := s.store.ListReviewQueue(ctx, limit)
	if err != nil {
		observeExternal(s.metrics, err)
		return nil, fmt.Errorf("review queue fetch: %w", err)
	}
	return txs, nil
}

// Categorize assigns an active category to a transaction and clears its
// review flag.
func (s *ReviewService) Categorize(ctx context.Context, transactionID, categoryID string) error {
	ctx, span := reviewTracer.Start(ctx, "ReviewService.Categorize")
	defer span.End()
	span.SetAttributes(
		attribute.String("transaction.id", transactionID),
		attribute.String("category.id", categoryID),
	)

	if categoryID == "" {
		return &domain.ErrValidation{Field: "category_id", Message: "is required"}
	}

	categories, err := s.Categories(ctx, false)
	if err != nil {
		return err
	}
	var found *domain.Category
	for i := range categories {
		if categories[i].ID == categoryID {
			found = &categories[i]
			break
		}
	}
	if found == nil {
		return &domain.ErrValidation{Field: "category_id", Message: "unknown category"}
	}
	if !found.IsActive {
		return &domain.ErrValidation{Field: "category_id", Message: "category is inactive"}
	}

	if err := s.store.CategorizeTransaction(ctx, transactionID, categoryID, s.now().UTC()); err != nil {
		observeExternal(s.metrics, err)
		return fmt.Errorf("categorize transaction: %w", err)
	}
	s.logger.Info("transaction categorized",
		zap.String("transaction_id", transactionID),
		zap.String("category_id", categoryID),
	)
	return nil
}

// ============================================================
// Chart of accounts
// ============================================================

// Categories lists the chart of accounts, cached for the reference TTL.
func (s *ReviewService) Categories(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	ctx, span := reviewTracer.Start(ctx, "ReviewService.Categories")
	defer span.End()

	key := fmt.Sprintf("categories:active=%t", activeOnly)
	if cached, ok := s.refs.Get(key); ok {
		if cats, ok := cached.([]domain.Category); ok {
			s.metrics.IncrCacheHit("categories")
			return cats, nil
		}
	}
	s.metrics.IncrCacheMiss("categories")

	cats, err := s.store.ListCategories(ctx, activeOnly)
	if err != nil {
		observeExternal(s.metrics, err)
		return nil, fmt.Errorf("categories fetch: %w", err)
	}
	s.refs.Set(key, cats)
	return cats, nil
}

// ============================================================
// Notifications
// ============================================================

// Notifications returns one page of notifications, newest first.
func (s *ReviewService) Notifications(ctx context.Context, unreadOnly bool, page, pageSize int) ([]domain.Notification, error) {
	ctx, span := reviewTracer.Start(ctx, "ReviewService.Notifications")
	defer span.End()

	if page <= 0 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = defaultPageSize
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}

	notes, err := s.store.ListNotifications(ctx, unreadOnly, page, pageSize)
	if err != nil {
		observeExternal(s.metrics, err)
		return nil, fmt.Errorf("notifications fetch: %w", err)
	}
	return notes, nil
}

func (s *ReviewService) MarkRead(ctx context.Context, notificationID string) error {
	ctx, span := reviewTracer.Start(ctx, "ReviewService.MarkRead")
	defer span.End()

	return s.store.MarkNotificationRead(ctx, notificationID)
}
