package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/internboard/internal/accounts"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTPStoreConsumesMatchingCodeOnce(test *testing.T) {
	test.Parallel()
	store, _ := newTestOTPStore(test)
	ctx := context.Background()

	require.NoError(test, store.Save(ctx, "ada@example.com", accounts.OTPPurposeVerify, "123456", time.Minute))
	assert.ErrorIs(test, store.Consume(ctx, "ada@example.com", accounts.OTPPurposeVerify, "654321"), accounts.ErrInvalidOTP)
	assert.ErrorIs(test, store.Consume(ctx, "ada@example.com", accounts.OTPPurposeReset, "123456"), accounts.ErrInvalidOTP)
	require.NoError(test, store.Consume(ctx, "ada@example.com", accounts.OTPPurposeVerify, "123456"))
	assert.ErrorIs(test, store.Consume(ctx, "ada@example.com", accounts.OTPPurposeVerify, "123456"), accounts.ErrInvalidOTP)
}

func TestOTPStoreExpiresCodes(test *testing.T) {
	test.Parallel()
	store, server := newTestOTPStore(test)
	ctx := context.Background()

	require.NoError(test, store.Save(ctx, "ada@example.com", accounts.OTPPurposeReset, "123456", 10*time.Minute))
	server.FastForward(11 * time.Minute)
	assert.ErrorIs(test, store.Consume(ctx, "ada@example.com", accounts.OTPPurposeReset, "123456"), accounts.ErrInvalidOTP)
}

func TestOTPStoreReplacesEarlierCode(test *testing.T) {
	test.Parallel()
	store, _ := newTestOTPStore(test)
	ctx := context.Background()

	require.NoError(test, store.Save(ctx, "ada@example.com", accounts.OTPPurposeVerify, "111111", time.Minute))
	require.NoError(test, store.Save(ctx, "ada@example.com", accounts.OTPPurposeVerify, "222222", time.Minute))
	assert.ErrorIs(test, store.Consume(ctx, "ada@example.com", accounts.OTPPurposeVerify, "111111"), accounts.ErrInvalidOTP)
	assert.NoError(test, store.Consume(ctx, "ada@example.com", accounts.OTPPurposeVerify, "222222"))
}

func TestOTPStoreRejectsEmptyCode(test *testing.T) {
	test.Parallel()
	store, _ := newTestOTPStore(test)
	assert.ErrorIs(test, store.Consume(context.Background(), "ada@example.com", accounts.OTPPurposeVerify, ""), accounts.ErrInvalidOTP)
}

func TestNewClientValidatesConfig(test *testing.T) {
	test.Parallel()
	_, err := NewClient(Config{})
	assert.ErrorIs(test, err, ErrInvalidConfig)
	_, err = NewClient(Config{Addr: "localhost:6379", DB: -1})
	assert.ErrorIs(test, err, ErrInvalidConfig)

	client, err := NewClient(Config{Addr: "localhost:6379"})
	require.NoError(test, err)
	assert.NoError(test, client.Close())
}

func newTestOTPStore(test *testing.T) (*OTPStore, *miniredis.Miniredis) {
	test.Helper()
	server := miniredis.RunT(test)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	test.Cleanup(func() { _ = client.Close() })
	store := NewOTPStore(client)
	require.NoError(test, store.Ping(context.Background()))
	return store, server
}
