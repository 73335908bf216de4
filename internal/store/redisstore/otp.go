package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/internboard/internal/accounts"
	"github.com/redis/go-redis/v9"
)

const otpKeyPrefix = "internboard:otp"

// consumeOTPScript deletes the stored code only when it matches.
// KEYS[1] = otp key
// ARGV[1] = submitted code
var consumeOTPScript = redis.NewScript(`
local stored = redis.call("GET", KEYS[1])
if stored and stored == ARGV[1] then
    redis.call("DEL", KEYS[1])
    return 1
end
return 0
`)

// ErrInvalidConfig reports unusable redis settings.
var ErrInvalidConfig = errors.New("invalid redis config")

// Config describes the redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// OTPStore implements accounts.OTPStore with expiring redis keys.
type OTPStore struct {
	client redis.UniversalClient
}

// NewClient opens a redis client for config.
func NewClient(config Config) (*redis.Client, error) {
	if strings.TrimSpace(config.Addr) == "" {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidConfig)
	}
	if config.DB < 0 {
		return nil, fmt.Errorf("%w: db must not be negative", ErrInvalidConfig)
	}
	return redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	}), nil
}

// NewOTPStore returns an OTPStore using client.
func NewOTPStore(client redis.UniversalClient) *OTPStore {
	return &OTPStore{client: client}
}

// Save stores code for ttl, replacing any earlier code with the same purpose.
func (store *OTPStore) Save(ctx context.Context, email string, purpose accounts.OTPPurpose, code string, ttl time.Duration) error {
	if err := store.client.Set(ctx, otpKey(email, purpose), code, ttl).Err(); err != nil {
		return fmt.Errorf("redis otp save: %w", err)
	}
	return nil
}

// Consume deletes a matching code atomically. Redis expiry handles stale codes.
func (store *OTPStore) Consume(ctx context.Context, email string, purpose accounts.OTPPurpose, code string) error {
	if code == "" {
		return accounts.ErrInvalidOTP
	}
	result, err := consumeOTPScript.Run(ctx, store.client, []string{otpKey(email, purpose)}, code).Int64()
	if err != nil {
		return fmt.Errorf("redis otp consume: %w", err)
	}
	if result != 1 {
		return accounts.ErrInvalidOTP
	}
	return nil
}

// Ping checks connectivity.
func (store *OTPStore) Ping(ctx context.Context) error {
	return store.client.Ping(ctx).Err()
}

func otpKey(email string, purpose accounts.OTPPurpose) string {
	return otpKeyPrefix + ":" + purpose.String() + ":" + strings.ToLower(email)
}
