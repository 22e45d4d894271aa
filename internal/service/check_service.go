package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/volunteer-hub-api/internal/models"
	"github.com/noah-isme/volunteer-hub-api/internal/repository"
	appErrors "github.com/noah-isme/volunteer-hub-api/pkg/errors"
)

type activityReader interface {
	FindByID(ctx context.Context, id string) (*models.Activity, error)
}

type checkSignupRepository interface {
	FindByID(ctx context.Context, id string) (*models.Signup, error)
	FindByActivityAndUser(ctx context.Context, activityID, userID string) (*models.Signup, error)
	MarkSignedIn(ctx context.Context, id string, at time.Time) (bool, error)
	MarkSignedOut(ctx context.Context, id string, at time.Time, studentRating *int, studentEvaluation *string) (bool, error)
	FinalizeReview(ctx context.Context, params repository.FinalizeReviewParams) error
	ListPendingCheckIn(ctx context.Context, activityID string) ([]models.PendingSignStudent, error)
	ListPendingCheckOut(ctx context.Context, activityID string) ([]models.PendingSignStudent, error)
	SearchReviews(ctx context.Context, filter models.ReviewSearchFilter) ([]models.SignupReviewRow, int, error)
}

type tokenIssuer interface {
	Issue(ctx context.Context, activityID string, action models.SignAction, ttl time.Duration) (*models.CheckToken, error)
	Consume(ctx context.Context, token string, expected models.SignAction) (*models.CheckToken, error)
}

type notificationDispatcher interface {
	Dispatch(n *models.Notification)
}

// CheckOutRequest carries the optional self-review submitted at check-out.
type CheckOutRequest struct {
	Token             string  `json:"token" validate:"required"`
	StudentRating     *int    `json:"student_rating" validate:"omitempty,min=1,max=5"`
	StudentEvaluation *string `json:"student_evaluation" validate:"omitempty,max=2000"`
}

// ReviewRequest carries the organizer's rating of a completed signup.
type ReviewRequest struct {
	TeacherRating     int     `json:"teacher_rating" validate:"required,min=1,max=5"`
	TeacherEvaluation *string `json:"teacher_evaluation" validate:"omitempty,max=2000"`
}

// CheckService coordinates the attendance flow: token issuance on the
// organizer side, token-gated check-in and check-out on the student side,
// and the review that settles points and materializes the service record.
type CheckService struct {
	activities activityReader
	signups    checkSignupRepository
	tokens     tokenIssuer
	notifier   notificationDispatcher
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewCheckService constructs CheckService. The metrics service may be nil.
func NewCheckService(activities activityReader, signups checkSignupRepository, tokens tokenIssuer, notifier notificationDispatcher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *CheckService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckService{
		activities: activities,
		signups:    signups,
		tokens:     tokens,
		notifier:   notifier,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateCheckInToken issues a shared check-in token for one of the
// organizer's open activities.
func (s *CheckService) CreateCheckInToken(ctx context.Context, organizerID, activityID string, ttl time.Duration) (*models.CheckToken, error) {
	return s.createToken(ctx, organizerID, activityID, models.SignActionCheckIn, ttl)
}

// CreateCheckOutToken issues a shared check-out token.
func (s *CheckService) CreateCheckOutToken(ctx context.Context, organizerID, activityID string, ttl time.Duration) (*models.CheckToken, error) {
	return s.createToken(ctx, organizerID, activityID, models.SignActionCheckOut, ttl)
}

func (s *CheckService) createToken(ctx context.Context, organizerID, activityID string, action models.SignAction, ttl time.Duration) (*models.CheckToken, error) {
	activity, err := s.loadActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity.OrganizerID != organizerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "activity belongs to another organizer")
	}
	if !activity.Status.AcceptsCheckTokens() {
		return nil, appErrors.ErrActivityNotOpen
	}
	token, err := s.tokens.Issue(ctx, activityID, action, ttl)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.TokenIssued(string(action))
	}
	return token, nil
}

// CheckIn records a student's arrival against the activity named by the
// token. The conditional update makes concurrent repeats converge on one
// winner; everyone else learns they were already checked in.
func (s *CheckService) CheckIn(ctx context.Context, userID, token string) (*models.Signup, error) {
	checkToken, err := s.tokens.Consume(ctx, token, models.SignActionCheckIn)
	if err != nil {
		return nil, err
	}

	signup, err := s.loadApprovedSignup(ctx, checkToken.ActivityID, userID)
	if err != nil {
		return nil, err
	}
	if signup.SignedIn {
		return nil, appErrors.ErrAlreadySignedIn
	}

	at := s.now().UTC()
	updated, err := s.signups.MarkSignedIn(ctx, signup.ID, at)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record check-in")
	}
	if !updated {
		return nil, appErrors.ErrAlreadySignedIn
	}

	signup.SignedIn = true
	signup.SignInTime = &at
	if s.metrics != nil {
		s.metrics.CheckIn()
	}
	s.logger.Info("student checked in",
		zap.String("signup_id", signup.ID),
		zap.String("activity_id", signup.ActivityID),
		zap.String("user_id", userID))
	return signup, nil
}

// CheckOut records a student's departure plus their optional self-review,
// then tells the organizer a review is waiting. The notification is best
// effort and never fails the check-out.
func (s *CheckService) CheckOut(ctx context.Context, userID string, req CheckOutRequest) (*models.Signup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-out payload")
	}

	checkToken, err := s.tokens.Consume(ctx, req.Token, models.SignActionCheckOut)
	if err != nil {
		return nil, err
	}

	signup, err := s.loadApprovedSignup(ctx, checkToken.ActivityID, userID)
	if err != nil {
		return nil, err
	}
	if !signup.SignedIn {
		return nil, appErrors.ErrNotSignedIn
	}
	if signup.SignedOut {
		return nil, appErrors.ErrAlreadySignedOut
	}

	at := s.now().UTC()
	updated, err := s.signups.MarkSignedOut(ctx, signup.ID, at, req.StudentRating, req.StudentEvaluation)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record check-out")
	}
	if !updated {
		return nil, appErrors.ErrAlreadySignedOut
	}

	signup.SignedOut = true
	signup.SignOutTime = &at
	if req.StudentRating != nil {
		signup.StudentRating = req.StudentRating
	}
	if req.StudentEvaluation != nil {
		signup.StudentEvaluation = req.StudentEvaluation
	}

	if activity, err := s.loadActivity(ctx, signup.ActivityID); err == nil {
		s.notifier.Dispatch(&models.Notification{
			RecipientID: activity.OrganizerID,
			Type:        models.NotificationCheckoutPending,
			ActivityID:  &signup.ActivityID,
			Title:       "Review pending",
			Body:        fmt.Sprintf("A volunteer checked out of %q and is waiting for review.", activity.Title),
		})
	}

	if s.metrics != nil {
		s.metrics.CheckOut()
	}
	s.logger.Info("student checked out",
		zap.String("signup_id", signup.ID),
		zap.String("activity_id", signup.ActivityID),
		zap.String("user_id", userID))
	return signup, nil
}

// Review applies the organizer's rating. The first review materializes the
// immutable service record and credits the full award; later reviews only
// credit the positive delta of a strictly higher rating. Claw-backs never
// happen: once granted, points stay granted.
func (s *CheckService) Review(ctx context.Context, organizerID, signupID string, req ReviewRequest) (*models.Signup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	signup, err := s.signups.FindByID(ctx, signupID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrSignupNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load signup")
	}
	if !signup.SignedOut {
		return nil, appErrors.ErrNotSignedOut
	}

	activity, err := s.loadActivity(ctx, signup.ActivityID)
	if err != nil {
		return nil, err
	}
	if activity.OrganizerID != organizerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "activity belongs to another organizer")
	}

	// Capture first-review status before any mutation. Everything the write
	// set needs is decided here; the transaction only executes it.
	firstReview := !signup.Finalized()
	confirmedAt := s.now().UTC()
	newAward := Award(activity.Points, req.TeacherRating)

	params := repository.FinalizeReviewParams{
		SignupID:          signup.ID,
		TeacherRating:     req.TeacherRating,
		TeacherEvaluation: req.TeacherEvaluation,
		ConfirmedAt:       confirmedAt,
	}

	if firstReview {
		params.Record = &models.ServiceRecord{
			SignupID:          signup.ID,
			ActivityID:        signup.ActivityID,
			UserID:            signup.UserID,
			DurationMinutes:   durationMinutes(signup.SignInTime, signup.SignOutTime),
			TeacherRating:     req.TeacherRating,
			TeacherEvaluation: req.TeacherEvaluation,
			StudentEvaluation: signup.StudentEvaluation,
			PointsEarned:      newAward,
		}
		if newAward != 0 {
			params.LedgerEntry = ledgerEntry(signup, newAward, models.PointsSourceActivityAward,
				fmt.Sprintf("Award for %q", activity.Title))
		}
	} else if signup.TeacherRating != nil && req.TeacherRating > *signup.TeacherRating {
		delta := newAward - Award(activity.Points, *signup.TeacherRating)
		if delta > 0 {
			params.LedgerEntry = ledgerEntry(signup, delta, models.PointsSourceActivityAdjust,
				fmt.Sprintf("Rating adjustment for %q", activity.Title))
		}
	}

	if err := s.signups.FinalizeReview(ctx, params); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize review")
	}

	signup.TeacherRating = &req.TeacherRating
	signup.TeacherEvaluation = req.TeacherEvaluation
	signup.TeacherRatingConfirmedAt = &confirmedAt

	if s.metrics != nil {
		credited := 0
		if params.LedgerEntry != nil {
			credited = params.LedgerEntry.Points
		}
		s.metrics.Review(credited)
	}

	s.notifier.Dispatch(&models.Notification{
		RecipientID: signup.UserID,
		Type:        models.NotificationCheckoutResult,
		ActivityID:  &signup.ActivityID,
		Title:       "Participation reviewed",
		Body:        fmt.Sprintf("Your participation in %q was rated %d.", activity.Title, req.TeacherRating),
	})

	s.logger.Info("signup reviewed",
		zap.String("signup_id", signup.ID),
		zap.String("activity_id", signup.ActivityID),
		zap.Int("rating", req.TeacherRating),
		zap.Bool("first_review", firstReview))
	return signup, nil
}

// PendingCheckIn lists approved students who have not arrived yet.
func (s *CheckService) PendingCheckIn(ctx context.Context, organizerID, activityID string) ([]models.PendingSignStudent, error) {
	if err := s.requireOwnership(ctx, organizerID, activityID); err != nil {
		return nil, err
	}
	rows, err := s.signups.ListPendingCheckIn(ctx, activityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending check-ins")
	}
	return rows, nil
}

// PendingCheckOut lists checked-in students who have not left yet.
func (s *CheckService) PendingCheckOut(ctx context.Context, organizerID, activityID string) ([]models.PendingSignStudent, error) {
	if err := s.requireOwnership(ctx, organizerID, activityID); err != nil {
		return nil, err
	}
	rows, err := s.signups.ListPendingCheckOut(ctx, activityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending check-outs")
	}
	return rows, nil
}

// SearchReviews returns the organizer review queue with pagination metadata.
func (s *CheckService) SearchReviews(ctx context.Context, filter models.ReviewSearchFilter) ([]models.SignupReviewRow, *models.Pagination, error) {
	rows, total, err := s.signups.SearchReviews(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search reviews")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *CheckService) loadActivity(ctx context.Context, activityID string) (*models.Activity, error) {
	activity, err := s.activities.FindByID(ctx, activityID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrActivityNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	return activity, nil
}

func (s *CheckService) loadApprovedSignup(ctx context.Context, activityID, userID string) (*models.Signup, error) {
	signup, err := s.signups.FindByActivityAndUser(ctx, activityID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrSignupNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load signup")
	}
	if signup.Status != models.SignupStatusApproved {
		return nil, appErrors.ErrSignupNotApproved
	}
	return signup, nil
}

func (s *CheckService) requireOwnership(ctx context.Context, organizerID, activityID string) error {
	activity, err := s.loadActivity(ctx, activityID)
	if err != nil {
		return err
	}
	if activity.OrganizerID != organizerID {
		return appErrors.Clone(appErrors.ErrForbidden, "activity belongs to another organizer")
	}
	return nil
}

func durationMinutes(in, out *time.Time) int {
	if in == nil || out == nil {
		return 0
	}
	minutes := int(out.Sub(*in).Minutes())
	if minutes < 0 {
		return 0
	}
	return minutes
}

func ledgerEntry(signup *models.Signup, points int, source models.PointsSource, note string) *models.PointsEntry {
	ref := signup.ID
	return &models.PointsEntry{
		UserID: signup.UserID,
		Points: points,
		Source: source,
		RefID:  &ref,
		Note:   &note,
	}
}
