/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"testing"
)

// memStore keeps keyring entries in memory so tests never touch the OS keychain.
type memStore struct{ m map[string]string }

func (s *memStore) Get(service, key string) (string, error) {
	v, ok := s.m[service+"/"+key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}
func (s *memStore) Set(service, key, value string) error {
	if s.m == nil {
		s.m = map[string]string{}
	}
	s.m[service+"/"+key] = value
	return nil
}
func (s *memStore) Delete(service, key string) error {
	delete(s.m, service+"/"+key)
	return nil
}

func useMemStore(t *testing.T) *memStore {
	t.Helper()
	old := tokenStore
	ms := &memStore{}
	tokenStore = ms
	t.Cleanup(func() { tokenStore = old })
	return ms
}

func TestEnvOverridesBackendURL(t *testing.T) {
	useMemStore(t)
	old := os.Getenv(EnvBackendURL)
	_ = os.Setenv(EnvBackendURL, "https://example.test:8443")
	t.Cleanup(func() { _ = os.Setenv(EnvBackendURL, old) })
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Backend.BaseURL, "https://example.test:8443"; got != want {
		t.Fatalf("Backend.BaseURL = %q, want %q", got, want)
	}
}

func TestEnvOverridesTelemetry(t *testing.T) {
	useMemStore(t)
	old := os.Getenv(EnvTelemetryOptIn)
	_ = os.Setenv(EnvTelemetryOptIn, "true")
	t.Cleanup(func() { _ = os.Setenv(EnvTelemetryOptIn, old) })
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("General.TelemetryOptIn expected true from env override")
	}
}

func TestEnvOverridesSharedDSN(t *testing.T) {
	useMemStore(t)
	old := os.Getenv(EnvSharedDSN)
	_ = os.Setenv(EnvSharedDSN, "postgres://studio@db.test/stories")
	t.Cleanup(func() { _ = os.Setenv(EnvSharedDSN, old) })
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Shared.Enabled || cfg.Shared.DSN != "postgres://studio@db.test/stories" {
		t.Fatalf("shared DSN override not applied: %#v", cfg.Shared)
	}
}

func TestSaveRoundTripsAPIKey(t *testing.T) {
	ms := useMemStore(t)
	t.Setenv("HOME", t.TempDir())
	cfg := Defaults()
	cfg.Export.Quality = "medium"
	if err := Save(cfg, "sk-test-123"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ms.m[keyringService+"/"+keyringAPIKey] != "sk-test-123" {
		t.Fatal("api key not stored in keyring")
	}
	got, key, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if key != "sk-test-123" {
		t.Fatalf("loaded api key = %q", key)
	}
	if got.Export.Quality != "medium" {
		t.Fatalf("saved config not read back: %#v", got.Export)
	}
	if err := ForgetAPIKey(); err != nil {
		t.Fatalf("ForgetAPIKey: %v", err)
	}
	if _, ok := ms.m[keyringService+"/"+keyringAPIKey]; ok {
		t.Fatal("api key still present after forget")
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "debug"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "C:/tmp/gss.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "C:/tmp/gss.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestMergeEditorZeroKeepsDefaults(t *testing.T) {
	dst := Defaults()
	var src AppConfig // all zero
	mergeInto(&dst, &src)
	if dst.Editor.SnapGridPercent != 5 || dst.Editor.TransitionSeconds != 1.0 || dst.Editor.ImageDwellSeconds != 4.0 {
		t.Fatalf("editor defaults clobbered by zero-valued file config: %#v", dst.Editor)
	}
	if dst.Export.Width != 1920 || dst.Export.FPS != 30 || dst.Export.Quality != "high" {
		t.Fatalf("export defaults clobbered: %#v", dst.Export)
	}
}

func TestMergeEditorOverrides(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Editor.SnapGridPercent = 10
	src.Editor.TransitionSeconds = 0.5
	src.Export.Quality = "Medium"
	mergeInto(&dst, &src)
	if dst.Editor.SnapGridPercent != 10 || dst.Editor.TransitionSeconds != 0.5 {
		t.Fatalf("editor fields not merged: %#v", dst.Editor)
	}
	if dst.Export.Quality != "medium" {
		t.Fatalf("expected quality lowered, got %q", dst.Export.Quality)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	useMemStore(t)
	oldLevel := os.Getenv(EnvLogLevel)
	oldFmt := os.Getenv(EnvLogFormat)
	oldSrc := os.Getenv(EnvLogSource)
	oldFile := os.Getenv(EnvLogFile)
	_ = os.Setenv(EnvLogLevel, "error")
	_ = os.Setenv(EnvLogFormat, "json")
	_ = os.Setenv(EnvLogSource, "1")
	_ = os.Setenv(EnvLogFile, "X:/gss.log")
	t.Cleanup(func() {
		_ = os.Setenv(EnvLogLevel, oldLevel)
		_ = os.Setenv(EnvLogFormat, oldFmt)
		_ = os.Setenv(EnvLogSource, oldSrc)
		_ = os.Setenv(EnvLogFile, oldFile)
	})
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "X:/gss.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}
