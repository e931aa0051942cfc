package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/redis/go-redis/v9"
)

// otpRetention keeps an expired challenge readable for a while so callers
// see "expired" rather than "not found". Redis drops the hash afterwards
// even if nothing ever deletes it.
const otpRetention = time.Hour

// ErrChallengeNotFound means the challenge was deleted or replaced by a
// different session between the read and the write.
var ErrChallengeNotFound = errors.New("otp challenge not found")

// reserveAttempt counts an attempt only while the hash for the same session
// still exists, so a deleted challenge is never recreated without its TTL.
var reserveAttempt = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'session_id') ~= ARGV[1] then
	return -1
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

var markVerified = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'session_id') ~= ARGV[1] then
	return -1
end
return redis.call('HSETNX', KEYS[1], 'verified_at', ARGV[2])
`)

type OTPRepository interface {
	// Save replaces any challenge held for the same email.
	Save(ctx context.Context, c *domain.OTPChallenge) error
	Get(ctx context.Context, email string) (*domain.OTPChallenge, error)
	// ReserveAttempt atomically counts one verification attempt against the
	// session's challenge and returns the new total. It returns
	// ErrChallengeNotFound when the challenge is gone.
	ReserveAttempt(ctx context.Context, email, sessionID string) (int, error)
	// MarkVerified flips the verified flag. It reports false when the flag
	// was already set and ErrChallengeNotFound when the challenge is gone.
	MarkVerified(ctx context.Context, email, sessionID string, at time.Time) (bool, error)
	Delete(ctx context.Context, email string) error
}

type otpRepository struct {
	client *redis.Client
}

func NewOTPRepository(client *redis.Client) OTPRepository {
	return &otpRepository{client: client}
}

func otpKey(email string) string {
	return "otp:" + email
}

func (r *otpRepository) Save(ctx context.Context, c *domain.OTPChallenge) error {
	key := otpKey(c.Email)
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, map[string]interface{}{
			"email":      c.Email,
			"session_id": c.SessionID,
			"code_hash":  c.CodeHash,
			"expires_at": c.ExpiresAt.UnixMilli(),
			"created_at": c.CreatedAt.UnixMilli(),
			"attempts":   0,
		})
		p.PExpireAt(ctx, key, c.ExpiresAt.Add(otpRetention))
		return nil
	})
	return err
}

func (r *otpRepository) Get(ctx context.Context, email string) (*domain.OTPChallenge, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	fields, err := r.client.HGetAll(ctx, otpKey(email)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeChallenge(fields)
}

func decodeChallenge(fields map[string]string) (*domain.OTPChallenge, error) {
	c := &domain.OTPChallenge{
		Email:     fields["email"],
		SessionID: fields["session_id"],
		CodeHash:  fields["code_hash"],
	}
	var err error
	if c.Attempts, err = strconv.Atoi(fields["attempts"]); err != nil {
		return nil, fmt.Errorf("decode attempts: %w", err)
	}
	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode expires_at: %w", err)
	}
	c.ExpiresAt = time.UnixMilli(expires).UTC()
	if created, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		c.CreatedAt = time.UnixMilli(created).UTC()
	}
	_, c.Verified = fields["verified_at"]
	return c, nil
}

func (r *otpRepository) ReserveAttempt(ctx context.Context, email, sessionID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	n, err := reserveAttempt.Run(ctx, r.client, []string{otpKey(email)}, sessionID).Int()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrChallengeNotFound
	}
	return n, nil
}

func (r *otpRepository) MarkVerified(ctx context.Context, email, sessionID string, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	n, err := markVerified.Run(ctx, r.client, []string{otpKey(email)}, sessionID, at.UnixMilli()).Int()
	if err != nil {
		return false, err
	}
	if n < 0 {
		return false, ErrChallengeNotFound
	}
	return n == 1, nil
}

func (r *otpRepository) Delete(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return r.client.Del(ctx, otpKey(email)).Err()
}
