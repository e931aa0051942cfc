package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/seat-reservations/pkg/auth"
	"github.com/diagnosis/seat-reservations/pkg/config"
	"github.com/diagnosis/seat-reservations/pkg/logger"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/repository"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/utils"
)

type AdminService interface {
	Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)
	Profile(ctx context.Context, id int64) (*domain.Admin, error)
	// Bootstrap creates the first superadmin when the table is empty.
	Bootstrap(ctx context.Context) error
}

type adminService struct {
	admins repository.AdminRepository
	cfg    config.AuthConfig
	now    func() time.Time
}

func NewAdminService(repo repository.AdminRepository, cfg config.AuthConfig) AdminService {
	return &adminService{admins: repo, cfg: cfg, now: time.Now}
}

var errBadCredentials = domain.Reject(domain.ReasonUnauthorized, "Invalid credentials")

func (s *adminService) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, domain.Invalid("username and password are required")
	}

	a, err := s.admins.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("find admin: %w", err)
	}
	if a == nil || !a.IsActive {
		return nil, errBadCredentials
	}
	now := s.now()
	if a.IsLocked(now) {
		return nil, domain.Reject(domain.ReasonAccountLocked,
			"Account is temporarily locked due to too many failed login attempts")
	}

	ok, err := auth.ComparePassword(req.Password, a.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		attempts, err := s.admins.RecordFailure(ctx, a.ID, s.cfg.MaxLoginAttempts, s.cfg.LockoutDuration)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to record login failure", "error", err, "admin_id", a.ID)
		}
		logger.WarnContext(ctx, "Admin login failed", "username", a.Username, "attempts", attempts)
		return nil, errBadCredentials
	}

	if err := s.admins.RecordLogin(ctx, a.ID, now); err != nil {
		logger.ErrorContext(ctx, "Failed to record login", "error", err, "admin_id", a.ID)
	}
	token, err := auth.NewAdminToken(a.ID, a.Username, a.Email, a.Role, s.cfg.JWTSecret, s.cfg.AdminTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign admin token: %w", err)
	}
	a.LastLogin = &now
	logger.InfoContext(ctx, "Admin logged in", "admin_id", a.ID)
	return &domain.LoginResponse{Token: token, ExpiresAt: now.Add(s.cfg.AdminTokenTTL), Admin: a}, nil
}

func (s *adminService) Profile(ctx context.Context, id int64) (*domain.Admin, error) {
	a, err := s.admins.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find admin: %w", err)
	}
	if a == nil || !a.IsActive {
		return nil, domain.Reject(domain.ReasonNotFound, "Admin not found")
	}
	return a, nil
}

func (s *adminService) Bootstrap(ctx context.Context) error {
	if s.cfg.BootstrapUsername == "" || s.cfg.BootstrapPassword == "" {
		return nil
	}
	n, err := s.admins.Count(ctx)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		return nil
	}

	hash, err := auth.HashPassword(s.cfg.BootstrapPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	a, err := s.admins.Create(ctx, &domain.Admin{
		Username:     s.cfg.BootstrapUsername,
		Email:        utils.NormalizeEmail(s.cfg.BootstrapEmail),
		PasswordHash: hash,
		Role:         auth.RoleSuperAdmin,
	})
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	logger.Info("Bootstrapped superadmin", "admin_id", a.ID, "username", a.Username)
	return nil
}
