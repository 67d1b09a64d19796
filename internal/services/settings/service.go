package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// Setting keys.
const (
	KeyFetchIntervalMinutes  = "fetch_interval_minutes"
	KeyFetchWorkerCount      = "fetch_worker_count"
	KeyDigestTime            = "digest_time"
	KeyTelegramNotifications = "telegram_notifications"
	KeyDigestSections        = "digest_sections"
	KeySummarizerProvider    = "summarizer_provider"
	KeySummarizerTier        = "summarizer_tier"
)

// definition describes one registered setting: its default, its
// documentation, and its validator.
type definition struct {
	defaultValue interface{}
	description  string
	options      []string
	validate     func(value interface{}) error
}

// envelope is the stored JSON wrapper around a setting value.
type envelope struct {
	Value interface{} `json:"value"`
}

// Service is the typed settings layer over the raw key/value store.
// Every key is registered with a default and a validator; unknown keys
// are rejected on both read and write.
type Service struct {
	storage  interfaces.SettingStorage
	registry map[string]definition
	logger   arbor.ILogger
}

// NewService creates the settings service with the full registry.
func NewService(storage interfaces.SettingStorage, logger arbor.ILogger) *Service {
	return &Service{
		storage:  storage,
		registry: buildRegistry(),
		logger:   logger,
	}
}

func buildRegistry() map[string]definition {
	return map[string]definition{
		KeyFetchIntervalMinutes: {
			defaultValue: 60,
			description:  "Default fetch interval for sources, in minutes",
			validate:     validatePositiveInt,
		},
		KeyFetchWorkerCount: {
			defaultValue: 3,
			description:  "Number of concurrent fetch workers",
			validate:     validatePositiveInt,
		},
		KeyDigestTime: {
			defaultValue: "08:00",
			description:  "Daily digest generation time (HH:MM, UTC)",
			validate:     validateClockTime,
		},
		KeyTelegramNotifications: {
			defaultValue: true,
			description:  "Send Telegram notifications when a digest is generated",
			validate:     validateBool,
		},
		KeyDigestSections: {
			defaultValue: []string{models.SectionSecurityNews, models.SectionProductNews, models.SectionMarket},
			description:  "Digest sections to include, in order",
			options:      models.ValidDigestSections,
			validate:     validateSections,
		},
		KeySummarizerProvider: {
			defaultValue: "ollama",
			description:  "LLM provider for article summaries",
			options:      []string{"anthropic", "openai", "google", "ollama"},
			validate:     validateOneOf("anthropic", "openai", "google", "ollama"),
		},
		KeySummarizerTier: {
			defaultValue: "fast",
			description:  "Model tier for article summaries",
			options:      []string{"fast", "smart", "smartest"},
			validate:     validateOneOf("fast", "smart", "smartest"),
		},
	}
}

// Get returns the effective value for a key: the stored value if set,
// otherwise the registered default. Unknown keys are errors.
func (s *Service) Get(ctx context.Context, key string) (interface{}, error) {
	def, ok := s.registry[key]
	if !ok {
		return nil, fmt.Errorf("unknown setting '%s'", key)
	}

	raw, err := s.storage.Get(ctx, key)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return def.defaultValue, nil
		}
		return nil, fmt.Errorf("failed to read setting '%s': %w", key, err)
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		// A corrupt stored value falls back to the default
		s.logger.Warn().Str("key", key).Err(err).Msg("Stored setting is not valid JSON, using default")
		return def.defaultValue, nil
	}

	return coerce(def.defaultValue, env.Value), nil
}

// Set validates and persists a value for a key.
func (s *Service) Set(ctx context.Context, key string, value interface{}) error {
	def, ok := s.registry[key]
	if !ok {
		return fmt.Errorf("unknown setting '%s'", key)
	}

	value = coerce(def.defaultValue, value)
	if err := def.validate(value); err != nil {
		return fmt.Errorf("invalid value for '%s': %w", key, err)
	}

	raw, err := json.Marshal(envelope{Value: value})
	if err != nil {
		return fmt.Errorf("failed to encode setting '%s': %w", key, err)
	}
	if err := s.storage.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("failed to save setting '%s': %w", key, err)
	}

	s.logger.Info().Str("key", key).Msg("Setting updated")
	return nil
}

// Reset removes the stored value so the key reverts to its default.
func (s *Service) Reset(ctx context.Context, key string) error {
	if _, ok := s.registry[key]; !ok {
		return fmt.Errorf("unknown setting '%s'", key)
	}
	if err := s.storage.Delete(ctx, key); err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return fmt.Errorf("failed to reset setting '%s': %w", key, err)
	}
	return nil
}

// List returns every registered setting with its effective value,
// sorted by key.
func (s *Service) List(ctx context.Context) ([]*models.SettingInfo, error) {
	stored, err := s.storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	storedKeys := make(map[string]bool, len(stored))
	for _, setting := range stored {
		storedKeys[setting.Key] = true
	}

	infos := make([]*models.SettingInfo, 0, len(s.registry))
	for key, def := range s.registry {
		value, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		infos = append(infos, &models.SettingInfo{
			Key:         key,
			Value:       value,
			Default:     def.defaultValue,
			Description: def.description,
			IsDefault:   !storedKeys[key],
			Options:     def.options,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Typed accessors for the callers that know what they are reading.

func (s *Service) GetInt(ctx context.Context, key string) (int, error) {
	value, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	n, ok := value.(int)
	if !ok {
		return 0, fmt.Errorf("setting '%s' is not an integer", key)
	}
	return n, nil
}

func (s *Service) GetString(ctx context.Context, key string) (string, error) {
	value, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	str, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("setting '%s' is not a string", key)
	}
	return str, nil
}

func (s *Service) GetBool(ctx context.Context, key string) (bool, error) {
	value, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	b, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("setting '%s' is not a boolean", key)
	}
	return b, nil
}

func (s *Service) GetStringSlice(ctx context.Context, key string) ([]string, error) {
	value, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	slice, ok := value.([]string)
	if !ok {
		return nil, fmt.Errorf("setting '%s' is not a string list", key)
	}
	return slice, nil
}

// coerce aligns a decoded JSON value with the default's type: JSON
// numbers arrive as float64 and JSON arrays as []interface{}.
func coerce(defaultValue, value interface{}) interface{} {
	switch defaultValue.(type) {
	case int:
		switch v := value.(type) {
		case float64:
			return int(v)
		case int:
			return v
		}
	case []string:
		switch v := value.(type) {
		case []interface{}:
			out := make([]string, 0, len(v))
			for _, item := range v {
				if str, ok := item.(string); ok {
					out = append(out, str)
				}
			}
			return out
		case []string:
			return v
		}
	}
	return value
}

func validatePositiveInt(value interface{}) error {
	n, ok := value.(int)
	if !ok {
		return fmt.Errorf("expected an integer, got %T", value)
	}
	if n <= 0 {
		return fmt.Errorf("must be greater than zero, got %d", n)
	}
	return nil
}

func validateBool(value interface{}) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected a boolean, got %T", value)
	}
	return nil
}

// validateClockTime enforces strict HH:MM.
func validateClockTime(value interface{}) error {
	str, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected a string, got %T", value)
	}
	if len(str) != 5 || str[2] != ':' {
		return fmt.Errorf("expected HH:MM, got '%s'", str)
	}
	hour, err := strconv.Atoi(str[:2])
	if err != nil {
		return fmt.Errorf("expected HH:MM, got '%s'", str)
	}
	minute, err := strconv.Atoi(str[3:])
	if err != nil {
		return fmt.Errorf("expected HH:MM, got '%s'", str)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("time '%s' out of range", str)
	}
	return nil
}

func validateSections(value interface{}) error {
	sections, ok := value.([]string)
	if !ok {
		return fmt.Errorf("expected a list of sections, got %T", value)
	}
	if len(sections) == 0 {
		return fmt.Errorf("at least one section is required")
	}
	for _, section := range sections {
		if !isValidSection(section) {
			return fmt.Errorf("unknown section '%s' (valid: %s)", section, strings.Join(models.ValidDigestSections, ", "))
		}
	}
	return nil
}

func isValidSection(section string) bool {
	for _, valid := range models.ValidDigestSections {
		if section == valid {
			return true
		}
	}
	return false
}

func validateOneOf(options ...string) func(interface{}) error {
	return func(value interface{}) error {
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected a string, got %T", value)
		}
		for _, option := range options {
			if str == option {
				return nil
			}
		}
		return fmt.Errorf("'%s' is not one of: %s", str, strings.Join(options, ", "))
	}
}
