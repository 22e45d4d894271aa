package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/volunteer-hub-api/internal/models"
	appErrors "github.com/noah-isme/volunteer-hub-api/pkg/errors"
)

type signupRepository interface {
	FindByID(ctx context.Context, id string) (*models.Signup, error)
	Exists(ctx context.Context, activityID, userID string) (bool, error)
	Create(ctx context.Context, signup *models.Signup) error
	UpdateStatus(ctx context.Context, id string, status models.SignupStatus, rejectReason *string) (bool, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.SignupFilter) ([]models.SignupDetail, int, error)
}

// CreateSignupRequest is the registration payload.
type CreateSignupRequest struct {
	ActivityID string  `json:"activity_id" validate:"required"`
	Reason     *string `json:"reason" validate:"omitempty,max=2000"`
}

// RejectSignupRequest carries the optional reason shown to the student.
type RejectSignupRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=2000"`
}

// SignupService manages the registration lifecycle leading up to attendance:
// register, approve or reject, and cancel.
type SignupService struct {
	repo       signupRepository
	activities activityReader
	notifier   notificationDispatcher
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewSignupService constructs SignupService.
func NewSignupService(repo signupRepository, activities activityReader, notifier notificationDispatcher, validate *validator.Validate, logger *zap.Logger) *SignupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SignupService{
		repo:       repo,
		activities: activities,
		notifier:   notifier,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// Register creates a pending signup for the caller. Registration closes at
// the deadline when one is set, and at the activity start otherwise.
func (s *SignupService) Register(ctx context.Context, userID string, req CreateSignupRequest) (*models.Signup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid signup payload")
	}

	activity, err := s.loadActivity(ctx, req.ActivityID)
	if err != nil {
		return nil, err
	}
	if activity.Status != models.ActivityStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrActivityNotOpen, "activity is not open for registration")
	}

	now := s.now().UTC()
	if activity.RegistrationDeadline != nil && now.After(*activity.RegistrationDeadline) {
		return nil, appErrors.Clone(appErrors.ErrActivityNotOpen, "registration deadline has passed")
	}
	if now.After(activity.StartTime) {
		return nil, appErrors.Clone(appErrors.ErrActivityNotOpen, "activity has already started")
	}

	exists, err := s.repo.Exists(ctx, req.ActivityID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing signup")
	}
	if exists {
		return nil, appErrors.ErrAlreadySignedUp
	}

	signup := &models.Signup{
		ActivityID: req.ActivityID,
		UserID:     userID,
		Status:     models.SignupStatusPending,
		Reason:     req.Reason,
	}
	if err := s.repo.Create(ctx, signup); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create signup")
	}

	s.notifier.Dispatch(&models.Notification{
		RecipientID: activity.OrganizerID,
		Type:        models.NotificationRegistrationPending,
		ActivityID:  &signup.ActivityID,
		Title:       "New registration",
		Body:        fmt.Sprintf("A volunteer signed up for %q and is waiting for approval.", activity.Title),
	})

	s.logger.Info("signup created",
		zap.String("signup_id", signup.ID),
		zap.String("activity_id", signup.ActivityID),
		zap.String("user_id", userID))
	return signup, nil
}

// Approve transitions a pending signup to approved.
func (s *SignupService) Approve(ctx context.Context, organizerID, signupID string) (*models.Signup, error) {
	return s.decide(ctx, organizerID, signupID, models.SignupStatusApproved, nil)
}

// Reject transitions a pending signup to rejected.
func (s *SignupService) Reject(ctx context.Context, organizerID, signupID string, req RejectSignupRequest) (*models.Signup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rejection payload")
	}
	return s.decide(ctx, organizerID, signupID, models.SignupStatusRejected, req.Reason)
}

func (s *SignupService) decide(ctx context.Context, organizerID, signupID string, status models.SignupStatus, rejectReason *string) (*models.Signup, error) {
	signup, err := s.loadSignup(ctx, signupID)
	if err != nil {
		return nil, err
	}

	activity, err := s.loadActivity(ctx, signup.ActivityID)
	if err != nil {
		return nil, err
	}
	if activity.OrganizerID != organizerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "activity belongs to another organizer")
	}
	if signup.Status != models.SignupStatusPending {
		return nil, appErrors.ErrSignupNotPending
	}

	updated, err := s.repo.UpdateStatus(ctx, signupID, status, rejectReason)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update signup")
	}
	if !updated {
		return nil, appErrors.ErrSignupNotPending
	}

	signup.Status = status
	signup.RejectReason = rejectReason

	body := fmt.Sprintf("Your registration for %q was approved.", activity.Title)
	if status == models.SignupStatusRejected {
		body = fmt.Sprintf("Your registration for %q was rejected.", activity.Title)
	}
	s.notifier.Dispatch(&models.Notification{
		RecipientID: signup.UserID,
		Type:        models.NotificationRegistrationResult,
		ActivityID:  &signup.ActivityID,
		Title:       "Registration reviewed",
		Body:        body,
	})

	s.logger.Info("signup decided",
		zap.String("signup_id", signupID),
		zap.String("status", string(status)))
	return signup, nil
}

// Cancel removes the caller's own signup before the activity starts. A
// checked-in signup can no longer be withdrawn.
func (s *SignupService) Cancel(ctx context.Context, userID, signupID string) error {
	signup, err := s.loadSignup(ctx, signupID)
	if err != nil {
		return err
	}
	if signup.UserID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "signup belongs to another user")
	}
	if signup.SignedIn {
		return appErrors.Clone(appErrors.ErrConflict, "cannot cancel after check-in")
	}

	activity, err := s.loadActivity(ctx, signup.ActivityID)
	if err != nil {
		return err
	}
	if s.now().UTC().After(activity.StartTime) {
		return appErrors.Clone(appErrors.ErrConflict, "cannot cancel after the activity started")
	}

	if err := s.repo.Delete(ctx, signupID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel signup")
	}

	s.logger.Info("signup cancelled",
		zap.String("signup_id", signupID),
		zap.String("user_id", userID))
	return nil
}

// List returns signups with pagination metadata.
func (s *SignupService) List(ctx context.Context, filter models.SignupFilter) ([]models.SignupDetail, *models.Pagination, error) {
	signups, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list signups")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return signups, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListForActivity returns an activity's signups after an ownership check.
func (s *SignupService) ListForActivity(ctx context.Context, organizerID string, filter models.SignupFilter) ([]models.SignupDetail, *models.Pagination, error) {
	activity, err := s.loadActivity(ctx, filter.ActivityID)
	if err != nil {
		return nil, nil, err
	}
	if activity.OrganizerID != organizerID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "activity belongs to another organizer")
	}
	return s.List(ctx, filter)
}

func (s *SignupService) loadSignup(ctx context.Context, id string) (*models.Signup, error) {
	signup, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrSignupNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load signup")
	}
	return signup, nil
}

func (s *SignupService) loadActivity(ctx context.Context, id string) (*models.Activity, error) {
	activity, err := s.activities.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrActivityNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	return activity, nil
}
