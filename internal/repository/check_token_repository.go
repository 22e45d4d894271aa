package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/volunteer-hub-api/internal/models"
	appErrors "github.com/noah-isme/volunteer-hub-api/pkg/errors"
)

const checkTokenKeyPrefix = "volunteer:check:"

// CheckTokenRepository stores ephemeral check tokens in Redis. Tokens are
// never durably persisted; the key TTL is the validity window.
type CheckTokenRepository struct {
	client *redis.Client
}

// NewCheckTokenRepository constructs the repository.
func NewCheckTokenRepository(client *redis.Client) *CheckTokenRepository {
	return &CheckTokenRepository{client: client}
}

// Save stores the token payload under its key with the given TTL.
func (r *CheckTokenRepository) Save(ctx context.Context, token *models.CheckToken, ttl time.Duration) error {
	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal check token: %w", err)
	}
	if err := r.client.Set(ctx, checkTokenKeyPrefix+token.Token, payload, ttl).Err(); err != nil {
		return fmt.Errorf("store check token: %w", err)
	}
	return nil
}

// Find loads a token by its opaque value. Absent keys surface as CACHE_MISS;
// the entry is left in place so the same code keeps working for other
// students until the TTL runs out.
func (r *CheckTokenRepository) Find(ctx context.Context, token string) (*models.CheckToken, error) {
	raw, err := r.client.Get(ctx, checkTokenKeyPrefix+token).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("load check token: %w", err)
	}

	var record models.CheckToken
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("unmarshal check token: %w", err)
	}
	return &record, nil
}
