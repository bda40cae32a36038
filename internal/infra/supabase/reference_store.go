package supabase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ssraminder/financial-dashboard/internal/domain"
)

// ============================================================
// Chart of accounts
// ============================================================

func (c *Client) ListCategories(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCategories")
	defer span.End()

	path := "categories?order=sort_order.asc,name.asc"
	if activeOnly {
		path += "&is_active=eq.true"
	}

	rows := []domain.Category{}
	if err := c.read(ctx, "supabase/categories", path, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ============================================================
// Notifications
// ============================================================

func (c *Client) ListNotifications(ctx context.Context, unreadOnly bool, page, pageSize int) ([]domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListNotifications")
	defer span.End()

	offset := (page - 1) * pageSize
	path := fmt.Sprintf("notifications?order=created_at.desc&limit=%d&offset=%d", pageSize, offset)
	if unreadOnly {
		path += "&is_read=eq.false"
	}

	rows := []domain.Notification{}
	if err := c.read(ctx, "supabase/notifications", path, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) CreateNotification(ctx context.Context, n domain.Notification) error {
	ctx, span := tracer.Start(ctx, "Supabase.CreateNotification")
	defer span.End()

	_, err := c.write(ctx, "supabase/notifications", http.MethodPost, "notifications", n)
	return err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.MarkNotificationRead")
	defer span.End()
	span.SetAttributes(attrID("notification.id", id))

	body, err := c.write(ctx, "supabase/notifications", http.MethodPatch,
		fmt.Sprintf("notifications?id=eq.%s", q(id)),
		map[string]any{"is_read": true, "read_at": time.Now().UTC()})
	if err != nil {
		return err
	}
	return expectRows(body, "notification", id)
}
