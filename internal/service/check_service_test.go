package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/volunteer-hub-api/internal/models"
	"github.com/noah-isme/volunteer-hub-api/internal/repository"
	appErrors "github.com/noah-isme/volunteer-hub-api/pkg/errors"
)

type mockActivityReader struct {
	activities map[string]*models.Activity
}

func (m *mockActivityReader) FindByID(ctx context.Context, id string) (*models.Activity, error) {
	if a, ok := m.activities[id]; ok {
		clone := *a
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

type mockCheckSignupRepo struct {
	mu              sync.Mutex
	signups         map[string]*models.Signup
	finalized       []repository.FinalizeReviewParams
	forceSignInMiss bool
}

func (m *mockCheckSignupRepo) FindByID(ctx context.Context, id string) (*models.Signup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.signups[id]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCheckSignupRepo) FindByActivityAndUser(ctx context.Context, activityID, userID string) (*models.Signup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.signups {
		if s.ActivityID == activityID && s.UserID == userID {
			clone := *s
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCheckSignupRepo) MarkSignedIn(ctx context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signups[id]
	if !ok || s.SignedIn || m.forceSignInMiss {
		return false, nil
	}
	s.SignedIn = true
	s.SignInTime = &at
	return true, nil
}

func (m *mockCheckSignupRepo) MarkSignedOut(ctx context.Context, id string, at time.Time, studentRating *int, studentEvaluation *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signups[id]
	if !ok || !s.SignedIn || s.SignedOut {
		return false, nil
	}
	s.SignedOut = true
	s.SignOutTime = &at
	if studentRating != nil {
		s.StudentRating = studentRating
	}
	if studentEvaluation != nil {
		s.StudentEvaluation = studentEvaluation
	}
	return true, nil
}

func (m *mockCheckSignupRepo) FinalizeReview(ctx context.Context, params repository.FinalizeReviewParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalized = append(m.finalized, params)
	if s, ok := m.signups[params.SignupID]; ok {
		rating := params.TeacherRating
		s.TeacherRating = &rating
		s.TeacherEvaluation = params.TeacherEvaluation
		confirmed := params.ConfirmedAt
		s.TeacherRatingConfirmedAt = &confirmed
	}
	return nil
}

func (m *mockCheckSignupRepo) ListPendingCheckIn(ctx context.Context, activityID string) ([]models.PendingSignStudent, error) {
	return nil, nil
}

func (m *mockCheckSignupRepo) ListPendingCheckOut(ctx context.Context, activityID string) ([]models.PendingSignStudent, error) {
	return nil, nil
}

func (m *mockCheckSignupRepo) SearchReviews(ctx context.Context, filter models.ReviewSearchFilter) ([]models.SignupReviewRow, int, error) {
	return nil, 0, nil
}

type mockTokenIssuer struct {
	tokens map[string]*models.CheckToken
}

func (m *mockTokenIssuer) Issue(ctx context.Context, activityID string, action models.SignAction, ttl time.Duration) (*models.CheckToken, error) {
	if m.tokens == nil {
		m.tokens = make(map[string]*models.CheckToken)
	}
	token := &models.CheckToken{
		Token:      "tok-" + activityID + "-" + string(action),
		ActivityID: activityID,
		Action:     action,
		ExpiresAt:  time.Now().Add(ttl),
	}
	m.tokens[token.Token] = token
	return token, nil
}

func (m *mockTokenIssuer) Consume(ctx context.Context, token string, expected models.SignAction) (*models.CheckToken, error) {
	record, ok := m.tokens[token]
	if !ok || record.Action != expected {
		return nil, appErrors.ErrTokenInvalid
	}
	return record, nil
}

type notifierStub struct {
	mu   sync.Mutex
	sent []*models.Notification
}

func (n *notifierStub) Dispatch(notification *models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
}

func (n *notifierStub) byType(t models.NotificationType) []*models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []*models.Notification
	for _, s := range n.sent {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}

type checkFixture struct {
	svc      *CheckService
	repo     *mockCheckSignupRepo
	tokens   *mockTokenIssuer
	notifier *notifierStub
}

func newCheckFixture(t *testing.T, points int) *checkFixture {
	t.Helper()
	activities := &mockActivityReader{activities: map[string]*models.Activity{
		"act-1": {
			ID:          "act-1",
			Title:       "Beach cleanup",
			OrganizerID: "org-1",
			StartTime:   time.Now().Add(-2 * time.Hour),
			EndTime:     time.Now().Add(2 * time.Hour),
			Points:      points,
			Status:      models.ActivityStatusOngoing,
		},
	}}
	repo := &mockCheckSignupRepo{signups: map[string]*models.Signup{
		"sub-1": {ID: "sub-1", ActivityID: "act-1", UserID: "stu-1", Status: models.SignupStatusApproved},
	}}
	tokens := &mockTokenIssuer{}
	notifier := &notifierStub{}
	svc := NewCheckService(activities, repo, tokens, notifier, nil, validator.New(), zap.NewNop())
	return &checkFixture{svc: svc, repo: repo, tokens: tokens, notifier: notifier}
}

func (f *checkFixture) checkInAndOut(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	in, err := f.svc.CreateCheckInToken(ctx, "org-1", "act-1", 0)
	require.NoError(t, err)
	_, err = f.svc.CheckIn(ctx, "stu-1", in.Token)
	require.NoError(t, err)

	out, err := f.svc.CreateCheckOutToken(ctx, "org-1", "act-1", 0)
	require.NoError(t, err)
	_, err = f.svc.CheckOut(ctx, "stu-1", CheckOutRequest{Token: out.Token})
	require.NoError(t, err)
}

func TestCheckServiceTokenIssuanceOwnership(t *testing.T) {
	f := newCheckFixture(t, 10)

	_, err := f.svc.CreateCheckInToken(context.Background(), "org-2", "act-1", 0)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.CreateCheckInToken(context.Background(), "org-1", "missing", 0)
	assert.True(t, appErrors.Is(err, appErrors.ErrActivityNotFound))
}

func TestCheckServiceTokenRequiresOpenActivity(t *testing.T) {
	f := newCheckFixture(t, 10)
	activities := &mockActivityReader{activities: map[string]*models.Activity{
		"act-1": {ID: "act-1", OrganizerID: "org-1", Status: models.ActivityStatusCompleted},
	}}
	f.svc.activities = activities

	_, err := f.svc.CreateCheckInToken(context.Background(), "org-1", "act-1", 0)
	assert.True(t, appErrors.Is(err, appErrors.ErrActivityNotOpen))
}

func TestCheckServiceCheckInFlow(t *testing.T) {
	f := newCheckFixture(t, 10)
	ctx := context.Background()

	token, err := f.svc.CreateCheckInToken(ctx, "org-1", "act-1", 0)
	require.NoError(t, err)

	signup, err := f.svc.CheckIn(ctx, "stu-1", token.Token)
	require.NoError(t, err)
	assert.True(t, signup.SignedIn)
	assert.NotNil(t, signup.SignInTime)

	_, err = f.svc.CheckIn(ctx, "stu-1", token.Token)
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadySignedIn))
}

func TestCheckServiceCheckInRequiresApproval(t *testing.T) {
	f := newCheckFixture(t, 10)
	f.repo.signups["sub-1"].Status = models.SignupStatusPending
	ctx := context.Background()

	token, err := f.svc.CreateCheckInToken(ctx, "org-1", "act-1", 0)
	require.NoError(t, err)

	_, err = f.svc.CheckIn(ctx, "stu-1", token.Token)
	assert.True(t, appErrors.Is(err, appErrors.ErrSignupNotApproved))
}

func TestCheckServiceCheckInUnknownStudent(t *testing.T) {
	f := newCheckFixture(t, 10)
	ctx := context.Background()

	token, err := f.svc.CreateCheckInToken(ctx, "org-1", "act-1", 0)
	require.NoError(t, err)

	_, err = f.svc.CheckIn(ctx, "stu-99", token.Token)
	assert.True(t, appErrors.Is(err, appErrors.ErrSignupNotFound))
}

func TestCheckServiceCheckInConcurrentLoser(t *testing.T) {
	f := newCheckFixture(t, 10)
	ctx := context.Background()

	token, err := f.svc.CreateCheckInToken(ctx, "org-1", "act-1", 0)
	require.NoError(t, err)

	// Another update wins between the read and the conditional write: zero
	// rows affected surfaces as the idempotent outcome.
	f.repo.forceSignInMiss = true

	_, err = f.svc.CheckIn(ctx, "stu-1", token.Token)
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadySignedIn))
}

func TestCheckServiceCheckOutBeforeCheckIn(t *testing.T) {
	f := newCheckFixture(t, 10)
	ctx := context.Background()

	token, err := f.svc.CreateCheckOutToken(ctx, "org-1", "act-1", 0)
	require.NoError(t, err)

	_, err = f.svc.CheckOut(ctx, "stu-1", CheckOutRequest{Token: token.Token})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotSignedIn))
}

func TestCheckServiceCheckOutFlow(t *testing.T) {
	f := newCheckFixture(t, 10)
	ctx := context.Background()

	in, err := f.svc.CreateCheckInToken(ctx, "org-1", "act-1", 0)
	require.NoError(t, err)
	_, err = f.svc.CheckIn(ctx, "stu-1", in.Token)
	require.NoError(t, err)

	out, err := f.svc.CreateCheckOutToken(ctx, "org-1", "act-1", 0)
	require.NoError(t, err)

	rating := 4
	evaluation := "great event"
	signup, err := f.svc.CheckOut(ctx, "stu-1", CheckOutRequest{Token: out.Token, StudentRating: &rating, StudentEvaluation: &evaluation})
	require.NoError(t, err)
	assert.True(t, signup.SignedOut)
	assert.Equal(t, &rating, signup.StudentRating)

	pending := f.notifier.byType(models.NotificationCheckoutPending)
	require.Len(t, pending, 1)
	assert.Equal(t, "org-1", pending[0].RecipientID)

	_, err = f.svc.CheckOut(ctx, "stu-1", CheckOutRequest{Token: out.Token})
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadySignedOut))
}

func TestCheckServiceCheckOutWrongActionToken(t *testing.T) {
	f := newCheckFixture(t, 10)
	ctx := context.Background()

	in, err := f.svc.CreateCheckInToken(ctx, "org-1", "act-1", 0)
	require.NoError(t, err)

	_, err = f.svc.CheckOut(ctx, "stu-1", CheckOutRequest{Token: in.Token})
	assert.True(t, appErrors.Is(err, appErrors.ErrTokenInvalid))
}

func TestCheckServiceReviewBeforeCheckOut(t *testing.T) {
	f := newCheckFixture(t, 10)

	_, err := f.svc.Review(context.Background(), "org-1", "sub-1", ReviewRequest{TeacherRating: 5})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotSignedOut))
}

func TestCheckServiceFirstReviewSettlesFullAward(t *testing.T) {
	f := newCheckFixture(t, 10)
	f.checkInAndOut(t)

	signup, err := f.svc.Review(context.Background(), "org-1", "sub-1", ReviewRequest{TeacherRating: 5})
	require.NoError(t, err)
	assert.NotNil(t, signup.TeacherRatingConfirmedAt)

	require.Len(t, f.repo.finalized, 1)
	params := f.repo.finalized[0]
	require.NotNil(t, params.Record)
	assert.Equal(t, 10, params.Record.PointsEarned)
	assert.Equal(t, 5, params.Record.TeacherRating)
	require.NotNil(t, params.LedgerEntry)
	assert.Equal(t, 10, params.LedgerEntry.Points)
	assert.Equal(t, models.PointsSourceActivityAward, params.LedgerEntry.Source)

	results := f.notifier.byType(models.NotificationCheckoutResult)
	require.Len(t, results, 1)
	assert.Equal(t, "stu-1", results[0].RecipientID)
}

func TestCheckServiceFirstReviewPartialAward(t *testing.T) {
	f := newCheckFixture(t, 20)
	f.checkInAndOut(t)

	_, err := f.svc.Review(context.Background(), "org-1", "sub-1", ReviewRequest{TeacherRating: 3})
	require.NoError(t, err)

	require.Len(t, f.repo.finalized, 1)
	params := f.repo.finalized[0]
	require.NotNil(t, params.Record)
	assert.Equal(t, 12, params.Record.PointsEarned)
	require.NotNil(t, params.LedgerEntry)
	assert.Equal(t, 12, params.LedgerEntry.Points)
}

func TestCheckServiceReReviewHigherCreditsDelta(t *testing.T) {
	f := newCheckFixture(t, 10)
	f.checkInAndOut(t)
	ctx := context.Background()

	_, err := f.svc.Review(ctx, "org-1", "sub-1", ReviewRequest{TeacherRating: 3})
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, "org-1", "sub-1", ReviewRequest{TeacherRating: 5})
	require.NoError(t, err)

	require.Len(t, f.repo.finalized, 2)
	second := f.repo.finalized[1]
	assert.Nil(t, second.Record, "service record is created exactly once")
	require.NotNil(t, second.LedgerEntry)
	assert.Equal(t, 4, second.LedgerEntry.Points)
	assert.Equal(t, models.PointsSourceActivityAdjust, second.LedgerEntry.Source)
}

func TestCheckServiceReReviewLowerNeverClawsBack(t *testing.T) {
	f := newCheckFixture(t, 10)
	f.checkInAndOut(t)
	ctx := context.Background()

	_, err := f.svc.Review(ctx, "org-1", "sub-1", ReviewRequest{TeacherRating: 5})
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, "org-1", "sub-1", ReviewRequest{TeacherRating: 3})
	require.NoError(t, err)

	require.Len(t, f.repo.finalized, 2)
	second := f.repo.finalized[1]
	assert.Nil(t, second.Record)
	assert.Nil(t, second.LedgerEntry, "lower re-review must not remove granted points")
	assert.Equal(t, 3, second.TeacherRating, "rating itself still updates")
}

func TestCheckServiceReReviewSameRatingNoLedger(t *testing.T) {
	f := newCheckFixture(t, 10)
	f.checkInAndOut(t)
	ctx := context.Background()

	_, err := f.svc.Review(ctx, "org-1", "sub-1", ReviewRequest{TeacherRating: 3})
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, "org-1", "sub-1", ReviewRequest{TeacherRating: 3})
	require.NoError(t, err)

	require.Len(t, f.repo.finalized, 2)
	assert.Nil(t, f.repo.finalized[1].LedgerEntry)
}

func TestCheckServiceReviewOwnership(t *testing.T) {
	f := newCheckFixture(t, 10)
	f.checkInAndOut(t)

	_, err := f.svc.Review(context.Background(), "org-2", "sub-1", ReviewRequest{TeacherRating: 5})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestCheckServiceReviewValidation(t *testing.T) {
	f := newCheckFixture(t, 10)
	f.checkInAndOut(t)

	_, err := f.svc.Review(context.Background(), "org-1", "sub-1", ReviewRequest{TeacherRating: 6})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Review(context.Background(), "org-1", "sub-1", ReviewRequest{TeacherRating: 0})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestCheckServiceRecordDuration(t *testing.T) {
	f := newCheckFixture(t, 10)
	ctx := context.Background()

	in, err := f.svc.CreateCheckInToken(ctx, "org-1", "act-1", 0)
	require.NoError(t, err)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return base }
	_, err = f.svc.CheckIn(ctx, "stu-1", in.Token)
	require.NoError(t, err)

	out, err := f.svc.CreateCheckOutToken(ctx, "org-1", "act-1", 0)
	require.NoError(t, err)
	f.svc.now = func() time.Time { return base.Add(150 * time.Minute) }
	_, err = f.svc.CheckOut(ctx, "stu-1", CheckOutRequest{Token: out.Token})
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, "org-1", "sub-1", ReviewRequest{TeacherRating: 5})
	require.NoError(t, err)

	require.Len(t, f.repo.finalized, 1)
	require.NotNil(t, f.repo.finalized[0].Record)
	assert.Equal(t, 150, f.repo.finalized[0].Record.DurationMinutes)
}
