package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/volunteer-hub-api/internal/models"
	"github.com/noah-isme/volunteer-hub-api/pkg/config"
	appErrors "github.com/noah-isme/volunteer-hub-api/pkg/errors"
)

type checkTokenStore interface {
	Save(ctx context.Context, token *models.CheckToken, ttl time.Duration) error
	Find(ctx context.Context, token string) (*models.CheckToken, error)
}

// CheckTokenService issues and validates the ephemeral, shared check tokens
// rendered as scannable codes. A token authenticates "a valid window for this
// activity and action", not a specific caller. It stays usable until its TTL
// runs out; consumption never removes it. Per-student idempotency lives on
// the signup row, one layer up.
type CheckTokenService struct {
	store  checkTokenStore
	cfg    config.CheckTokenConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewCheckTokenService constructs the token service.
func NewCheckTokenService(store checkTokenStore, cfg config.CheckTokenConfig, logger *zap.Logger) *CheckTokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.MinTTL <= 0 {
		cfg.MinTTL = time.Minute
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = 30 * time.Minute
	}
	return &CheckTokenService{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// Issue creates a token for one activity and action, valid for the clamped
// TTL, and stores it with a matching cache expiry.
func (s *CheckTokenService) Issue(ctx context.Context, activityID string, action models.SignAction, ttl time.Duration) (*models.CheckToken, error) {
	if activityID == "" || !action.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "activity id and action are required")
	}
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	if ttl < s.cfg.MinTTL {
		ttl = s.cfg.MinTTL
	}
	if ttl > s.cfg.MaxTTL {
		ttl = s.cfg.MaxTTL
	}

	token := &models.CheckToken{
		Token:      strings.ReplaceAll(uuid.NewString(), "-", ""),
		ActivityID: activityID,
		Action:     action,
		ExpiresAt:  s.now().UTC().Add(ttl),
	}

	if err := s.store.Save(ctx, token, ttl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store check token")
	}

	s.logger.Debug("issued check token",
		zap.String("activity_id", activityID),
		zap.String("action", string(action)),
		zap.Time("expires_at", token.ExpiresAt))
	return token, nil
}

// Consume validates a presented token against the expected action. The cache
// entry stays in place so one projected code can serve a whole room until the
// TTL expires.
func (s *CheckTokenService) Consume(ctx context.Context, token string, expected models.SignAction) (*models.CheckToken, error) {
	if token == "" {
		return nil, appErrors.ErrTokenInvalid
	}

	record, err := s.store.Find(ctx, token)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, appErrors.ErrTokenInvalid
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load check token")
	}

	if record.ActivityID == "" || !record.Action.Valid() || record.Action != expected {
		return nil, appErrors.ErrTokenInvalid
	}
	// The key TTL already bounds the window; the payload expiry is checked
	// again to stay safe under cache clock skew.
	if record.Expired(s.now().UTC()) {
		return nil, appErrors.ErrTokenExpired
	}

	return record, nil
}
