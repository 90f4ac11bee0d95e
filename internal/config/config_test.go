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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultProducesValidJustificationPattern(t *testing.T) {
	cfg := Default()
	if _, err := cfg.JustificationRegexp(); err != nil {
		t.Fatalf("default justification pattern failed to compile: %v", err)
	}
	if cfg.MinReviewers != 1 || cfg.MaxReviewers != 5 {
		t.Fatalf("unexpected reviewer bounds: %+v", cfg)
	}
}

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TokenValidity != Duration(time.Hour) {
		t.Fatalf("got TokenValidity %v, want 1h", time.Duration(cfg.TokenValidity))
	}
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"scope": "organizations/123",
		"serviceAccount": "jit-broker@example.iam.gserviceaccount.com",
		"maxReviewers": 3,
		"tokenValidity": "30m"
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scope != "organizations/123" {
		t.Fatalf("got Scope %q", cfg.Scope)
	}
	if cfg.MaxReviewers != 3 {
		t.Fatalf("got MaxReviewers %d, want 3", cfg.MaxReviewers)
	}
	if cfg.MinReviewers != 1 {
		t.Fatalf("file should not have clobbered unset fields, got MinReviewers %d", cfg.MinReviewers)
	}
	if time.Duration(cfg.TokenValidity) != 30*time.Minute {
		t.Fatalf("got TokenValidity %v, want 30m", time.Duration(cfg.TokenValidity))
	}
}

func TestEnvOverridesTakePrecedenceOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"maxReviewers": 3}`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("JITACCESS_MAX_REVIEWERS", "7")
	t.Setenv("JITACCESS_ENABLE_EMAIL", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxReviewers != 7 {
		t.Fatalf("got MaxReviewers %d, want env override 7", cfg.MaxReviewers)
	}
	if !cfg.EnableEmail {
		t.Fatalf("expected EnableEmail true from env override")
	}
}

func TestLoadRejectsInvalidJustificationPattern(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"justificationPattern": "("}`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid justification pattern")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
