/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads the engine's process-wide configuration (spec §6's
// configuration surface): a JSON file overlaid with JITACCESS_-prefixed
// environment variables, mirroring the composition root's own config
// loading style — plain encoding/json plus an env pass, no config
// framework.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config is the engine's immutable, process-wide configuration (spec §6).
type Config struct {
	Scope        string `json:"scope"`
	ProjectQuery string `json:"projectQuery"`

	MaxActivationDuration Duration `json:"maxActivationDuration"`
	MinActivationDuration Duration `json:"minActivationDuration"`

	MinReviewers                 int `json:"minReviewers"`
	MaxReviewers                 int `json:"maxReviewers"`
	MaxEntitlementsPerJitRequest int `json:"maxEntitlementsPerJitRequest"`

	JustificationPattern string `json:"justificationPattern"`
	JustificationHint    string `json:"justificationHint"`

	TokenValidity  Duration `json:"tokenValidity"`
	ServiceAccount string   `json:"serviceAccount"`

	EnableEmail       bool   `json:"enableEmail"`
	EmailTemplatePath string `json:"emailTemplatePath"`

	SMTPHost string `json:"smtpHost"`
	SMTPPort int    `json:"smtpPort"`

	SlackWebhookURL  string `json:"slackWebhookUrl"`
	NotifyWebhookURL string `json:"notifyWebhookUrl"`
}

// Duration wraps time.Duration with JSON marshaling as a Go duration
// string ("15m", "1h") rather than a raw integer, for a human-editable
// config file.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Default returns a Config with conservative defaults for every bound,
// suitable as a starting point before Load overlays a file and the
// environment.
func Default() Config {
	return Config{
		MinActivationDuration:        Duration(5 * time.Minute),
		MaxActivationDuration:        Duration(2 * time.Hour),
		MinReviewers:                 1,
		MaxReviewers:                 5,
		MaxEntitlementsPerJitRequest: 10,
		JustificationPattern:         `.+`,
		JustificationHint:            "a non-empty justification is required",
		TokenValidity:                Duration(time.Hour),
		EnableEmail:                  false,
		SMTPPort:                     587,
	}
}

// Load reads path as JSON into Default(), then overlays any JITACCESS_*
// environment variables present.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	if _, err := regexp.Compile(cfg.JustificationPattern); err != nil {
		return Config{}, fmt.Errorf("invalid justificationPattern: %w", err)
	}
	return cfg, nil
}

const envPrefix = "JITACCESS_"

func applyEnvOverrides(cfg *Config) {
	str := func(key string, set func(string)) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			set(v)
		}
	}
	num := func(key string, set func(int)) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				set(n)
			}
		}
	}
	dur := func(key string, set func(Duration)) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			if d, err := time.ParseDuration(v); err == nil {
				set(Duration(d))
			}
		}
	}
	boolean := func(key string, set func(bool)) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			set(strings.EqualFold(v, "true") || v == "1")
		}
	}

	str("SCOPE", func(v string) { cfg.Scope = v })
	str("PROJECT_QUERY", func(v string) { cfg.ProjectQuery = v })
	dur("MAX_ACTIVATION_DURATION", func(v Duration) { cfg.MaxActivationDuration = v })
	dur("MIN_ACTIVATION_DURATION", func(v Duration) { cfg.MinActivationDuration = v })
	num("MIN_REVIEWERS", func(v int) { cfg.MinReviewers = v })
	num("MAX_REVIEWERS", func(v int) { cfg.MaxReviewers = v })
	num("MAX_ENTITLEMENTS_PER_JIT_REQUEST", func(v int) { cfg.MaxEntitlementsPerJitRequest = v })
	str("JUSTIFICATION_PATTERN", func(v string) { cfg.JustificationPattern = v })
	str("JUSTIFICATION_HINT", func(v string) { cfg.JustificationHint = v })
	dur("TOKEN_VALIDITY", func(v Duration) { cfg.TokenValidity = v })
	str("SERVICE_ACCOUNT", func(v string) { cfg.ServiceAccount = v })
	boolean("ENABLE_EMAIL", func(v bool) { cfg.EnableEmail = v })
	str("EMAIL_TEMPLATE_PATH", func(v string) { cfg.EmailTemplatePath = v })
	str("SMTP_HOST", func(v string) { cfg.SMTPHost = v })
	num("SMTP_PORT", func(v int) { cfg.SMTPPort = v })
	str("SLACK_WEBHOOK_URL", func(v string) { cfg.SlackWebhookURL = v })
	str("NOTIFY_WEBHOOK_URL", func(v string) { cfg.NotifyWebhookURL = v })
}

// JustificationRegexp compiles the configured justification pattern.
// Load already validates it parses, so this should never fail in practice.
func (c Config) JustificationRegexp() (*regexp.Regexp, error) {
	return regexp.Compile(c.JustificationPattern)
}
