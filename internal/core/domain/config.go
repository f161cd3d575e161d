package domain

import "time"

// RemoteImageConfig configures the optional OpenAI-compatible render strategy.
type RemoteImageConfig struct {
	Mode         string `json:"mode" validate:"oneof=off remote"`
	RemoteURL    string `json:"remote_url" validate:"omitempty,url"` // "https://api.openai.com/v1"
	APIKey       string `json:"api_key"`                             // Encrypted in storage
	DefaultModel string `json:"default_model"`                       // "gpt-image-1"
}

// AppConfig holds the user-editable settings.
type AppConfig struct {
	Theme             Theme             `json:"theme"`
	AutoUpdate        bool              `json:"auto_update"`
	UpdateInterval    Seconds           `json:"update_interval" validate:"gte=60"`
	UpdateOnWake      bool              `json:"update_on_wake"`
	CacheInterval     Seconds           `json:"cache_interval" validate:"gte=0"`
	GenerationTimeout Seconds           `json:"generation_timeout" validate:"gte=1,lte=3600"`
	RetentionCap      int               `json:"retention_cap" validate:"gte=1"`
	RemoteImage       RemoteImageConfig `json:"remote_image"`
}

// Seconds serializes a duration as whole seconds.
type Seconds int64

func (s Seconds) Duration() time.Duration { return time.Duration(s) * time.Second }

// DefaultConfig returns safe defaults
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Theme:             DefaultTheme,
		AutoUpdate:        true,
		UpdateInterval:    1800,
		UpdateOnWake:      true,
		CacheInterval:     300,
		GenerationTimeout: 60,
		RetentionCap:      10,
		RemoteImage: RemoteImageConfig{
			Mode:         "off",
			DefaultModel: "gpt-image-1",
		},
	}
}
