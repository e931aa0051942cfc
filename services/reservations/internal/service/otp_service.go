package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// OTPService issues and checks the four-digit codes that confirm a pending
// reservation.
type OTPService interface {
	// Issue replaces any challenge for email with a fresh one bound to
	// sessionID and returns the plain code.
	Issue(ctx context.Context, email, sessionID string) (string, time.Time, error)
	// Verify returns nil on a match. Expired and exhausted challenges are
	// deleted before the rejection is returned.
	Verify(ctx context.Context, email, sessionID, code string) error
	Discard(ctx context.Context, email string) error
}

func challengeGone() error {
	return domain.Reject(domain.ReasonOTPNotFound, "Invalid verification request")
}

type otpService struct {
	repo        repository.OTPRepository
	ttl         time.Duration
	maxAttempts int
	cost        int
	now         func() time.Time
}

func NewOTPService(repo repository.OTPRepository, ttl time.Duration, maxAttempts int) OTPService {
	return &otpService{
		repo:        repo,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		cost:        bcrypt.DefaultCost,
		now:         time.Now,
	}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+1000), nil
}

func (s *otpService) Issue(ctx context.Context, email, sessionID string) (string, time.Time, error) {
	code, err := generateCode()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cost)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("hash code: %w", err)
	}

	now := s.now().UTC()
	c := &domain.OTPChallenge{
		Email:     email,
		SessionID: sessionID,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.repo.Save(ctx, c); err != nil {
		return "", time.Time{}, fmt.Errorf("save challenge: %w", err)
	}
	return code, c.ExpiresAt, nil
}

func (s *otpService) Verify(ctx context.Context, email, sessionID, code string) error {
	c, err := s.repo.Get(ctx, email)
	if err != nil {
		return fmt.Errorf("load challenge: %w", err)
	}
	if c == nil || c.SessionID != sessionID {
		return challengeGone()
	}

	if s.now().After(c.ExpiresAt) {
		if err := s.repo.Delete(ctx, email); err != nil {
			return fmt.Errorf("delete expired challenge: %w", err)
		}
		return domain.Reject(domain.ReasonOTPExpired, "Verification code expired. Please request a new one.")
	}
	if c.Verified {
		return domain.Reject(domain.ReasonOTPAlreadyUsed, "This verification code has already been used")
	}

	// The attempt is reserved before the compare so parallel guesses cannot
	// all see the same count.
	attempts, err := s.repo.ReserveAttempt(ctx, email, sessionID)
	if errors.Is(err, repository.ErrChallengeNotFound) {
		return challengeGone()
	}
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	if attempts > s.maxAttempts {
		if err := s.repo.Delete(ctx, email); err != nil {
			return fmt.Errorf("delete exhausted challenge: %w", err)
		}
		return domain.Reject(domain.ReasonOTPExhausted, "Too many failed attempts. Please request a new verification code.")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(c.CodeHash), []byte(code)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("compare code: %w", err)
		}
		return domain.Reject(domain.ReasonOTPMismatch,
			fmt.Sprintf("Invalid verification code. %d attempts remaining.", s.maxAttempts-attempts))
	}

	flipped, err := s.repo.MarkVerified(ctx, email, sessionID, s.now())
	if errors.Is(err, repository.ErrChallengeNotFound) {
		return challengeGone()
	}
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if !flipped {
		return domain.Reject(domain.ReasonOTPAlreadyUsed, "This verification code has already been used")
	}
	return nil
}

func (s *otpService) Discard(ctx context.Context, email string) error {
	return s.repo.Delete(ctx, email)
}
