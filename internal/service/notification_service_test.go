package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/volunteer-hub-api/internal/models"
	"github.com/noah-isme/volunteer-hub-api/pkg/config"
	appErrors "github.com/noah-isme/volunteer-hub-api/pkg/errors"
)

type mockNotificationRepo struct {
	mu       sync.Mutex
	created  []models.Notification
	read     map[string]bool
	unread   int
	failNext bool
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return assert.AnError
	}
	m.created = append(m.created, *n)
	return nil
}

func (m *mockNotificationRepo) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.created {
		if n.RecipientID == filter.RecipientID {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id, recipientID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.created {
		if m.created[i].ID == id && m.created[i].RecipientID == recipientID && !m.created[i].Read {
			m.created[i].Read = true
			return true, nil
		}
	}
	return false, nil
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	return m.unread, nil
}

func (m *mockNotificationRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

func newNotificationFixture(t *testing.T) (*NotificationService, *mockNotificationRepo) {
	t.Helper()
	repo := &mockNotificationRepo{}
	cfg := config.NotificationConfig{Workers: 1, BufferSize: 8, MaxRetries: 2, RetryDelay: 10 * time.Millisecond}
	svc := NewNotificationService(repo, cfg, nil, zap.NewNop())
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc, repo
}

func TestNotificationServiceDispatchPersists(t *testing.T) {
	svc, repo := newNotificationFixture(t)

	svc.Dispatch(&models.Notification{
		RecipientID: "stu-1",
		Type:        models.NotificationRegistrationResult,
		Title:       "Registration reviewed",
		Body:        "approved",
	})

	assert.Eventually(t, func() bool { return repo.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestNotificationServiceDispatchRetries(t *testing.T) {
	svc, repo := newNotificationFixture(t)
	repo.failNext = true

	svc.Dispatch(&models.Notification{
		RecipientID: "stu-1",
		Type:        models.NotificationCheckoutResult,
		Title:       "Participation reviewed",
		Body:        "rated 5",
	})

	assert.Eventually(t, func() bool { return repo.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestNotificationServiceDispatchRejectsInvalid(t *testing.T) {
	svc, repo := newNotificationFixture(t)

	svc.Dispatch(nil)
	svc.Dispatch(&models.Notification{Type: models.NotificationCheckoutResult})
	svc.Dispatch(&models.Notification{RecipientID: "stu-1", Type: models.NotificationType("BOGUS")})

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, repo.count())
}

func TestNotificationServiceMarkRead(t *testing.T) {
	svc, repo := newNotificationFixture(t)
	repo.created = append(repo.created, models.Notification{ID: "n-1", RecipientID: "stu-1"})

	require.NoError(t, svc.MarkRead(context.Background(), "n-1", "stu-1"))

	err := svc.MarkRead(context.Background(), "n-1", "stu-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	err = svc.MarkRead(context.Background(), "n-1", "stu-2")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestNotificationServiceUnreadCount(t *testing.T) {
	svc, repo := newNotificationFixture(t)
	repo.unread = 4

	count, err := svc.CountUnread(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
