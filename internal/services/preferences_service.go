package services

import (
	"context"
	"fmt"
	"log/slog"

	"ailedger/internal/core"
	applog "ailedger/internal/log"
	"ailedger/internal/ports"
)

// PreferencesService reads and writes the theme preference.
type PreferencesService struct {
	repo   ports.SettingsRepository
	logger *slog.Logger
}

func NewPreferencesService(repo ports.SettingsRepository, logger *slog.Logger) *PreferencesService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreferencesService{repo: repo, logger: logger.With(applog.FieldComponent, applog.ComponentLedger)}
}

// Theme returns the stored theme. Missing or unrecognized values read as light.
func (s *PreferencesService) Theme(ctx context.Context) core.Theme {
	raw, err := s.repo.LoadTheme(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load theme, using default", applog.FieldError, err)
		return core.ThemeLight
	}
	theme, err := core.ParseTheme(raw)
	if err != nil {
		return core.ThemeLight
	}
	return theme
}

func (s *PreferencesService) SetTheme(ctx context.Context, theme core.Theme) error {
	if _, err := core.ParseTheme(string(theme)); err != nil {
		return err
	}
	if err := s.repo.SaveTheme(ctx, theme); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	s.logger.InfoContext(ctx, "Theme updated", applog.FieldTheme, string(theme))
	return nil
}

// Toggle flips between light and dark and returns the new theme.
func (s *PreferencesService) Toggle(ctx context.Context) (core.Theme, error) {
	next := s.Theme(ctx).Toggle()
	if err := s.SetTheme(ctx, next); err != nil {
		return "", err
	}
	return next, nil
}
