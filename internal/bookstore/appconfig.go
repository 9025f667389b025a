package bookstore

import (
	"github.com/starford/quill/internal/layout"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/schema"
)

// LoadAppConfig reads config.json. An absent or corrupt file yields the
// defaults.
func (s *Store) LoadAppConfig() models.AppConfig {
	data, err := s.fs.Read(layout.ConfigFile)
	if err != nil {
		return schema.DefaultAppConfig()
	}
	return schema.DecodeAppConfig(data)
}

// SaveAppConfig writes config.json after defaulting out-of-range values.
func (s *Store) SaveAppConfig(cfg models.AppConfig) error {
	ensured := schema.EnsureAppConfig(schema.Raw{
		"model":                      cfg.Model,
		"language":                   cfg.Language,
		"systemPrompt":               cfg.SystemPrompt,
		"temperature":                cfg.Temperature,
		"maxTokens":                  float64(cfg.MaxTokens),
		"autoVersioning":             cfg.AutoVersioning,
		"autoVersionIntervalMinutes": float64(cfg.AutoVersionIntervalMinutes),
	})
	return s.writeJSON("save config", layout.ConfigFile, ensured)
}
