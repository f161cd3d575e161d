package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/adityak74/weatherweave/internal/core/domain"
)

const settingsKey = "app_config"

// SettingsRepository is the minimal DB interface for settings persistence.
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SaveSetting(ctx context.Context, key string, value string) error
}

// OnChangeFunc is called after settings are updated.
type OnChangeFunc func(cfg *domain.AppConfig)

// SettingsStore keeps the user settings in the database. The remote API
// key is encrypted at rest and masked on read.
type SettingsStore struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	secret   *SecretKey
	repo     SettingsRepository
	config   *domain.AppConfig
	onChange []OnChangeFunc
}

// NewSettingsStore loads saved settings, or persists the defaults when
// none exist yet.
func NewSettingsStore(ctx context.Context, logger *slog.Logger, repo SettingsRepository, secret *SecretKey) (*SettingsStore, error) {
	store := &SettingsStore{
		logger: logger,
		secret: secret,
		repo:   repo,
	}

	cfg, err := store.load(ctx)
	if err != nil {
		logger.Warn("no saved settings found, using defaults", "error", err)
		cfg = domain.DefaultConfig()
		if err := store.save(ctx, cfg); err != nil {
			return nil, fmt.Errorf("failed to save default settings: %w", err)
		}
	}

	store.config = cfg
	return store, nil
}

// OnChange registers a callback run after every successful update.
func (s *SettingsStore) OnChange(fn OnChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// GetConfig returns a copy of the settings with the API key in clear.
func (s *SettingsStore) GetConfig() *domain.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := *s.config
	return &cp
}

// GetMaskedConfig returns settings safe to send to a client.
func (s *SettingsStore) GetMaskedConfig() *domain.AppConfig {
	cp := s.GetConfig()
	cp.RemoteImage.APIKey = MaskSecret(cp.RemoteImage.APIKey)
	return cp
}

// UpdateConfig validates and persists update, then notifies listeners.
// An empty or masked API key keeps the stored one.
func (s *SettingsStore) UpdateConfig(ctx context.Context, update *domain.AppConfig) error {
	s.mu.Lock()

	next := *update
	if next.RemoteImage.APIKey == "" || isMasked(next.RemoteImage.APIKey) {
		next.RemoteImage.APIKey = s.config.RemoteImage.APIKey
	}
	normalize(&next)

	if err := Validate(&next); err != nil {
		s.mu.Unlock()
		return err
	}

	if err := s.save(ctx, &next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.config = &next
	listeners := append([]OnChangeFunc(nil), s.onChange...)
	s.mu.Unlock()

	s.logger.Info("settings updated",
		"theme", next.Theme,
		"auto_update", next.AutoUpdate,
		"update_interval", next.UpdateInterval.Duration(),
		"remote_image", next.RemoteImage.Mode,
	)

	for _, fn := range listeners {
		cp := next
		fn(&cp)
	}
	return nil
}

// Validate checks user settings. Errors match domain.ErrInvalidSettings.
func Validate(cfg *domain.AppConfig) error {
	if _, err := domain.ParseTheme(string(cfg.Theme)); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidSettings, err)
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidSettings, err)
	}
	if cfg.RemoteImage.Mode == "remote" && cfg.RemoteImage.RemoteURL == "" {
		return fmt.Errorf("%w: remote_url is required when remote_image.mode=remote", domain.ErrInvalidSettings)
	}
	return nil
}

func normalize(cfg *domain.AppConfig) {
	cfg.Theme = domain.Theme(strings.ToLower(strings.TrimSpace(string(cfg.Theme))))
	if cfg.Theme == "" {
		cfg.Theme = domain.DefaultTheme
	}
	cfg.RemoteImage.Mode = strings.ToLower(strings.TrimSpace(cfg.RemoteImage.Mode))
	if cfg.RemoteImage.Mode == "" {
		cfg.RemoteImage.Mode = "off"
	}
	cfg.RemoteImage.RemoteURL = strings.TrimSpace(cfg.RemoteImage.RemoteURL)
}

// storedConfig is the DB representation: the API key only appears
// encrypted.
type storedConfig struct {
	domain.AppConfig
	EncryptedAPIKey string `json:"encrypted_api_key,omitempty"`
}

func (s *SettingsStore) load(ctx context.Context) (*domain.AppConfig, error) {
	raw, err := s.repo.GetSetting(ctx, settingsKey)
	if err != nil {
		return nil, err
	}

	// Fields missing from older rows keep their defaults.
	stored := storedConfig{AppConfig: *domain.DefaultConfig()}
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	cfg := stored.AppConfig
	cfg.RemoteImage.APIKey = ""
	if stored.EncryptedAPIKey != "" {
		key, err := s.secret.Decrypt(stored.EncryptedAPIKey)
		if err != nil {
			s.logger.Warn("failed to decrypt remote image API key", "error", err)
		} else {
			cfg.RemoteImage.APIKey = key
		}
	}
	normalize(&cfg)

	if err := Validate(&cfg); err != nil {
		s.logger.Warn("saved settings are invalid, using defaults", "error", err)
		return domain.DefaultConfig(), nil
	}
	return &cfg, nil
}

func (s *SettingsStore) save(ctx context.Context, cfg *domain.AppConfig) error {
	stored := storedConfig{AppConfig: *cfg}
	stored.RemoteImage.APIKey = ""

	if cfg.RemoteImage.APIKey != "" {
		enc, err := s.secret.Encrypt(cfg.RemoteImage.APIKey)
		if err != nil {
			return fmt.Errorf("encrypt remote image API key: %w", err)
		}
		stored.EncryptedAPIKey = enc
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	return s.repo.SaveSetting(ctx, settingsKey, string(raw))
}
