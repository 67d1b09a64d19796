package models

import "time"

// Setting is a single persisted runtime setting. Value holds the raw
// JSON envelope {"value": ...} exactly as stored.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SettingInfo describes a setting for listing: the effective value,
// the default, whether the default applies, and a human description.
// Options is non-empty for enum-valued settings.
type SettingInfo struct {
	Key         string      `json:"key"`
	Value       interface{} `json:"value"`
	Default     interface{} `json:"default"`
	Description string      `json:"description"`
	IsDefault   bool        `json:"is_default"`
	Options     []string    `json:"options,omitempty"`
}
