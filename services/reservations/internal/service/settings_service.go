package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/diagnosis/seat-reservations/pkg/logger"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/repository"
	"gopkg.in/yaml.v3"
)

type SettingsService interface {
	Get(ctx context.Context) (domain.SystemSettings, error)
	Update(ctx context.Context, patch domain.SettingsPatch) (domain.SystemSettings, error)
	// Seed stores the initial settings on first boot. Existing settings are
	// never overwritten.
	Seed(ctx context.Context, file string) error
}

type settingsService struct {
	repo repository.SettingsRepository
	now  func() time.Time
}

func NewSettingsService(repo repository.SettingsRepository) SettingsService {
	return &settingsService{repo: repo, now: time.Now}
}

func (s *settingsService) Get(ctx context.Context) (domain.SystemSettings, error) {
	current, err := s.repo.Get(ctx)
	if err != nil {
		return domain.SystemSettings{}, fmt.Errorf("load settings: %w", err)
	}
	if current == nil {
		return domain.DefaultSettings(s.now()), nil
	}
	return *current, nil
}

func (s *settingsService) Update(ctx context.Context, patch domain.SettingsPatch) (domain.SystemSettings, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return domain.SystemSettings{}, err
	}
	next := current.Apply(patch)
	if err := next.Validate(); err != nil {
		return domain.SystemSettings{}, err
	}
	saved, err := s.repo.Save(ctx, next)
	if err != nil {
		return domain.SystemSettings{}, fmt.Errorf("save settings: %w", err)
	}
	logger.InfoContext(ctx, "System settings updated",
		"default_total_seats", saved.DefaultTotalSeats,
		"max_seats_per_user", saved.MaxSeatsPerUser,
		"min_cancellation_hours", saved.MinCancellationHours)
	return *saved, nil
}

func (s *settingsService) Seed(ctx context.Context, file string) error {
	seed := domain.DefaultSettings(s.now())
	if file != "" {
		loaded, err := LoadSettingsFile(file, seed)
		if err != nil {
			return err
		}
		seed = loaded
	}
	if err := seed.Validate(); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	if err := s.repo.Seed(ctx, seed); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	return nil
}

// LoadSettingsFile overlays the YAML document at path onto base.
func LoadSettingsFile(path string, base domain.SystemSettings) (domain.SystemSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, &base); err != nil {
		return base, fmt.Errorf("parse settings file: %w", err)
	}
	return base, nil
}
