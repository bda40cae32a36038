package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssraminder/financial-dashboard/internal/domain"
)

func TestQueue_OldestFirst(t *testing.T) {
	svc := newReviewService(t, newFakeStore())

	queue, err := svc.Queue(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, queue, 3)
	assert.Equal(t, "tx-chq-3", queue[0].ID)
	assert.Equal(t, "tx-visa-3", queue[2].ID)

	queue, err = svc.Queue(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, queue, 1)
}

func TestCategorize(t *testing.T) {
	svc := newReviewService(t, newFakeStore())
	ctx := context.Background()

	require.NoError(t, svc.Categorize(ctx, "tx-chq-3", "cat-utilities"))

	queue, err := svc.Queue(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, queue, 2)
	for _, tx := range queue {
		assert.NotEqual(t, "tx-chq-3", tx.ID)
	}
}

func TestCategorize_RejectsUnknownAndInactive(t *testing.T) {
	svc := newReviewService(t, newFakeStore())
	ctx := context.Background()

	for _, cat := range []string{"", "cat-missing", "cat-legacy"} {
		err := svc.Categorize(ctx, "tx-chq-3", cat)
		var verr *domain.ErrValidation
		require.ErrorAs(t, err, &verr, "category %q", cat)
		assert.Equal(t, "category_id", verr.Field)
	}

	queue, err := svc.Queue(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, queue, 3)
}

func TestCategories_ActiveOnly(t *testing.T) {
	svc := newReviewService(t, newFakeStore())

	all, err := svc.Categories(context.Background(), false)
	require.NoError(t, err)
	active, err := svc.Categories(context.Background(), true)
	require.NoError(t, err)

	assert.Len(t, all, 6)
	assert.Len(t, active, 5)
	assert.Equal(t, "cat-sales", active[0].ID)
}

func TestNotifications(t *testing.T) {
	store := newFakeStore()
	svc := newReviewService(t, store)
	ctx := context.Background()

	for _, title := range []string{"a", "b"} {
		require.NoError(t, store.CreateNotification(ctx, domain.Notification{Title: title}))
	}

	notes, err := svc.Notifications(ctx, true, 0, 0)
	require.NoError(t, err)
	require.Len(t, notes, 2)

	require.NoError(t, svc.MarkRead(ctx, notes[0].ID))
	unread, err := svc.Notifications(ctx, true, 1, 10)
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	var notFound *domain.ErrNotFound
	require.ErrorAs(t, svc.MarkRead(ctx, "missing"), &notFound)
}
