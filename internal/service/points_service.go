package service

import (
	"context"
	"database/sql"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/volunteer-hub-api/internal/models"
	appErrors "github.com/noah-isme/volunteer-hub-api/pkg/errors"
)

// Award scales an activity's base points by the rating on a five point
// scale, rounded half away from zero. A rating of 5 grants the full base.
func Award(base, rating int) int {
	return int(math.Round(float64(base) * float64(rating) / 5.0))
}

type pointsLedger interface {
	Append(ctx context.Context, entry *models.PointsEntry) error
	SumByUser(ctx context.Context, userID string) (int, error)
	Ledger(ctx context.Context, filter models.PointsLedgerFilter) ([]models.PointsEntry, int, error)
	Ranking(ctx context.Context, page, size int) ([]models.PointsRankingRow, int, error)
	RankOf(ctx context.Context, userID string) (int, error)
}

type pointsUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type serviceStatsReader interface {
	StatsByUser(ctx context.Context, userID string) (*models.ServiceStats, error)
}

// ManualAdjustRequest is an administrative ledger correction.
type ManualAdjustRequest struct {
	UserID string  `json:"user_id" validate:"required"`
	Points int     `json:"points" validate:"required"`
	Note   *string `json:"note" validate:"omitempty,max=500"`
}

// PointsService exposes reward balances, history and the leaderboard on top
// of the append-only ledger.
type PointsService struct {
	ledger    pointsLedger
	users     pointsUserReader
	records   serviceStatsReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPointsService constructs PointsService.
func NewPointsService(ledger pointsLedger, users pointsUserReader, records serviceStatsReader, validate *validator.Validate, logger *zap.Logger) *PointsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PointsService{ledger: ledger, users: users, records: records, validator: validate, logger: logger}
}

// Balance returns a user's current total.
func (s *PointsService) Balance(ctx context.Context, userID string) (int, error) {
	total, err := s.ledger.SumByUser(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute balance")
	}
	return total, nil
}

// Stats returns a user's full reward standing including their rank.
func (s *PointsService) Stats(ctx context.Context, userID string) (*models.PointsStats, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	total, err := s.ledger.SumByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute balance")
	}

	stats := &models.PointsStats{
		UserID:      user.ID,
		UserName:    user.FullName,
		TotalPoints: total,
	}

	if serviceStats, err := s.records.StatsByUser(ctx, userID); err == nil {
		stats.ServiceRecords = serviceStats.TotalRecords
		stats.TotalServiceHours = serviceStats.TotalServiceHours
	}

	if user.Role == models.RoleStudent {
		if rank, err := s.ledger.RankOf(ctx, userID); err == nil {
			stats.Ranking = &rank
		}
	}
	return stats, nil
}

// Ledger returns a page of a user's entries with pagination metadata.
func (s *PointsService) Ledger(ctx context.Context, filter models.PointsLedgerFilter) ([]models.PointsEntry, *models.Pagination, error) {
	if filter.UserID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "user id is required")
	}
	entries, total, err := s.ledger.Ledger(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ledger")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return entries, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Ranking returns the student leaderboard with pagination metadata.
func (s *PointsService) Ranking(ctx context.Context, page, size int) ([]models.PointsRankingRow, *models.Pagination, error) {
	rows, total, err := s.ledger.Ranking(ctx, page, size)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ranking")
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ManualAdjust appends an administrative correction. Negative amounts are
// allowed here, unlike review settlements, because an admin fixing a mistake
// must be able to take points back.
func (s *PointsService) ManualAdjust(ctx context.Context, req ManualAdjustRequest) (*models.PointsEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid adjustment payload")
	}
	if _, err := s.users.FindByID(ctx, req.UserID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	entry := &models.PointsEntry{
		UserID: req.UserID,
		Points: req.Points,
		Source: models.PointsSourceManualAdjust,
		Note:   req.Note,
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append adjustment")
	}

	s.logger.Info("manual points adjustment",
		zap.String("user_id", req.UserID),
		zap.Int("points", req.Points))
	return entry, nil
}
