package config

import "strings"

// StoredSettings is the settings row as read from the database. Blank fields fall back to env values.
type StoredSettings struct {
	APIKey      string
	Model       string
	Prompt      string
	Temperature *float32
}

// Settings is the runtime configuration shared by every pipeline run.
// It is built once at startup and never mutated afterwards.
type Settings struct {
	apiKey        string
	model         string
	temperature   float32
	systemPrompt  string
	shopAutoReply map[int64]bool
}

// NewSettings merges stored settings over the env config. The shop map is copied.
func NewSettings(cfg *Config, stored StoredSettings, shops map[int64]bool) *Settings {
	s := &Settings{
		apiKey:        firstNonBlank(stored.APIKey, cfg.OpenAIAPIKey),
		model:         firstNonBlank(stored.Model, cfg.OpenAIModel),
		temperature:   cfg.OpenAITemperature,
		systemPrompt:  firstNonBlank(stored.Prompt, cfg.SystemPrompt),
		shopAutoReply: make(map[int64]bool, len(shops)),
	}
	if stored.Temperature != nil {
		s.temperature = *stored.Temperature
	}
	for id, enabled := range shops {
		s.shopAutoReply[id] = enabled
	}
	return s
}

func (s *Settings) APIKey() string       { return s.apiKey }
func (s *Settings) Model() string        { return s.model }
func (s *Settings) Temperature() float32 { return s.temperature }
func (s *Settings) SystemPrompt() string { return s.systemPrompt }

// AutoReplyEnabled reports whether a shop may receive automated replies.
// Shops missing from the map are enabled.
func (s *Settings) AutoReplyEnabled(shopID int64) bool {
	enabled, ok := s.shopAutoReply[shopID]
	return !ok || enabled
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
