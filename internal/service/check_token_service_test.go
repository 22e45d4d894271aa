package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/volunteer-hub-api/internal/models"
	"github.com/noah-isme/volunteer-hub-api/internal/repository"
	"github.com/noah-isme/volunteer-hub-api/pkg/config"
	appErrors "github.com/noah-isme/volunteer-hub-api/pkg/errors"
)

func newTokenService(t *testing.T) (*CheckTokenService, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	store := repository.NewCheckTokenRepository(client)
	cfg := config.CheckTokenConfig{DefaultTTL: 5 * time.Minute, MinTTL: time.Minute, MaxTTL: 30 * time.Minute}
	return NewCheckTokenService(store, cfg, zap.NewNop()), server
}

func TestCheckTokenServiceIssueAndConsume(t *testing.T) {
	svc, _ := newTokenService(t)

	token, err := svc.Issue(context.Background(), "act-1", models.SignActionCheckIn, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.Equal(t, "act-1", token.ActivityID)
	assert.Equal(t, models.SignActionCheckIn, token.Action)

	record, err := svc.Consume(context.Background(), token.Token, models.SignActionCheckIn)
	require.NoError(t, err)
	assert.Equal(t, "act-1", record.ActivityID)
}

func TestCheckTokenServiceSharedAcrossCallers(t *testing.T) {
	svc, _ := newTokenService(t)

	token, err := svc.Issue(context.Background(), "act-1", models.SignActionCheckOut, 0)
	require.NoError(t, err)

	// One projected code serves many students: consuming must not remove it.
	for i := 0; i < 3; i++ {
		record, err := svc.Consume(context.Background(), token.Token, models.SignActionCheckOut)
		require.NoError(t, err)
		assert.Equal(t, "act-1", record.ActivityID)
	}
}

func TestCheckTokenServiceActionMismatch(t *testing.T) {
	svc, _ := newTokenService(t)

	token, err := svc.Issue(context.Background(), "act-1", models.SignActionCheckIn, 0)
	require.NoError(t, err)

	_, err = svc.Consume(context.Background(), token.Token, models.SignActionCheckOut)
	assert.True(t, appErrors.Is(err, appErrors.ErrTokenInvalid))
}

func TestCheckTokenServiceUnknownToken(t *testing.T) {
	svc, _ := newTokenService(t)

	_, err := svc.Consume(context.Background(), "does-not-exist", models.SignActionCheckIn)
	assert.True(t, appErrors.Is(err, appErrors.ErrTokenInvalid))

	_, err = svc.Consume(context.Background(), "", models.SignActionCheckIn)
	assert.True(t, appErrors.Is(err, appErrors.ErrTokenInvalid))
}

func TestCheckTokenServiceExpiredKey(t *testing.T) {
	svc, server := newTokenService(t)

	token, err := svc.Issue(context.Background(), "act-1", models.SignActionCheckIn, 2*time.Minute)
	require.NoError(t, err)

	server.FastForward(3 * time.Minute)

	_, err = svc.Consume(context.Background(), token.Token, models.SignActionCheckIn)
	assert.True(t, appErrors.Is(err, appErrors.ErrTokenInvalid))
}

func TestCheckTokenServicePayloadExpiry(t *testing.T) {
	svc, _ := newTokenService(t)

	token, err := svc.Issue(context.Background(), "act-1", models.SignActionCheckIn, 2*time.Minute)
	require.NoError(t, err)

	// The cache key is still present but the payload expiry has passed.
	svc.now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	_, err = svc.Consume(context.Background(), token.Token, models.SignActionCheckIn)
	assert.True(t, appErrors.Is(err, appErrors.ErrTokenExpired))
}

func TestCheckTokenServiceTTLClamping(t *testing.T) {
	svc, _ := newTokenService(t)
	issuedAt := time.Now().UTC()
	svc.now = func() time.Time { return issuedAt }

	token, err := svc.Issue(context.Background(), "act-1", models.SignActionCheckIn, time.Second)
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(time.Minute), token.ExpiresAt)

	token, err = svc.Issue(context.Background(), "act-1", models.SignActionCheckIn, 4*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(30*time.Minute), token.ExpiresAt)
}

func TestCheckTokenServiceIssueValidation(t *testing.T) {
	svc, _ := newTokenService(t)

	_, err := svc.Issue(context.Background(), "", models.SignActionCheckIn, 0)
	assert.Error(t, err)

	_, err = svc.Issue(context.Background(), "act-1", models.SignAction("BOGUS"), 0)
	assert.Error(t, err)
}
