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
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	// API key is not stored on disk; it lives in the OS keychain.
}

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark"
	LibraryDir     string `yaml:"library_dir"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// EditorConfig tunes interaction and timeline behavior. All percentages are
// expressed on the 0..100 coordinate scale used by overlay positions.
type EditorConfig struct {
	SnapGridPercent      float64 `yaml:"snap_grid_percent"`      // grid cell size
	MagneticPercent      float64 `yaml:"magnetic_percent"`       // pull radius around 0/50/100
	TransitionSeconds    float64 `yaml:"transition_seconds"`     // cross-scene transition window
	ImageDwellSeconds    float64 `yaml:"image_dwell_seconds"`    // per-image hold in image sets
	NarrationTailSeconds float64 `yaml:"narration_tail_seconds"` // padding after narration audio
	MinSceneSeconds      float64 `yaml:"min_scene_seconds"`
	FallbackSceneSeconds float64 `yaml:"fallback_scene_seconds"`
}

// ExportConfig are the defaults offered in the export dialog.
type ExportConfig struct {
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	FPS     int    `yaml:"fps"`
	Quality string `yaml:"quality"` // "high" | "medium" | "low"
	FFmpeg  string `yaml:"ffmpeg"`  // binary path override, defaults to PATH lookup
	FFprobe string `yaml:"ffprobe"`
}

// SharedConfig configures the optional shared story library (Postgres).
type SharedConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Backend       BackendConfig `yaml:"backend"`
	Logging       LoggingConfig `yaml:"logging"`
	Editor        EditorConfig  `yaml:"editor"`
	Export        ExportConfig  `yaml:"export"`
	Shared        SharedConfig  `yaml:"shared"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, Theme: "system", LibraryDir: ""},
		Backend:       BackendConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000, TLSInsecure: false},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
		Editor: EditorConfig{
			SnapGridPercent:      5,
			MagneticPercent:      2,
			TransitionSeconds:    1.0,
			ImageDwellSeconds:    4.0,
			NarrationTailSeconds: 1.5,
			MinSceneSeconds:      2.0,
			FallbackSceneSeconds: 5.0,
		},
		Export: ExportConfig{Width: 1920, Height: 1080, FPS: 30, Quality: "high", FFmpeg: "ffmpeg", FFprobe: "ffprobe"},
		Shared: SharedConfig{Enabled: false, DSN: ""},
	}
}

// Env var names used as overrides.
const (
	EnvBackendURL       = "GSS_BACKEND_URL"
	EnvBackendTimeoutMs = "GSS_BACKEND_TIMEOUT_MS"
	EnvBackendTLSInsec  = "GSS_TLS_INSECURE"
	EnvTelemetryOptIn   = "GSS_TELEMETRY_OPT_IN"
	EnvLibraryDir       = "GSS_LIBRARY_DIR"
	EnvFFmpeg           = "GSS_FFMPEG"
	EnvFFprobe          = "GSS_FFPROBE"
	EnvSharedDSN        = "GSS_SHARED_DSN"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "GSS_LOG_LEVEL"
	EnvLogFormat = "GSS_LOG_FORMAT"
	EnvLogSource = "GSS_LOG_SOURCE"
	EnvLogFile   = "GSS_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "GoStoryStudio"
	keyringAPIKey  = "backend_api_key"
)

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = &osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (k *osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (k *osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (k *osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "GoStoryStudio")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoStoryStudio")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "gostorystudio")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the backend API key from keyring (not kept inside the struct; returned separately).
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	key, _ := tokenStore.Get(keyringService, keyringAPIKey)
	return cfg, key, nil
}

// Save writes the user config YAML and persists the API key into OS keyring (if non-empty).
func Save(cfg AppConfig, apiKey string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if apiKey != "" {
		if err := tokenStore.Set(keyringService, keyringAPIKey, apiKey); err != nil {
			return err
		}
	}
	return nil
}

// ForgetAPIKey removes the stored backend API key from the OS keyring.
func ForgetAPIKey() error {
	err := tokenStore.Delete(keyringService, keyringAPIKey)
	if err != nil && errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if strings.TrimSpace(src.General.LibraryDir) != "" {
		dst.General.LibraryDir = strings.TrimSpace(src.General.LibraryDir)
	}
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	dst.Backend.TLSInsecure = src.Backend.TLSInsecure
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
	// editor tuning: zero means "keep default"
	if src.Editor.SnapGridPercent > 0 {
		dst.Editor.SnapGridPercent = src.Editor.SnapGridPercent
	}
	if src.Editor.MagneticPercent > 0 {
		dst.Editor.MagneticPercent = src.Editor.MagneticPercent
	}
	if src.Editor.TransitionSeconds > 0 {
		dst.Editor.TransitionSeconds = src.Editor.TransitionSeconds
	}
	if src.Editor.ImageDwellSeconds > 0 {
		dst.Editor.ImageDwellSeconds = src.Editor.ImageDwellSeconds
	}
	if src.Editor.NarrationTailSeconds > 0 {
		dst.Editor.NarrationTailSeconds = src.Editor.NarrationTailSeconds
	}
	if src.Editor.MinSceneSeconds > 0 {
		dst.Editor.MinSceneSeconds = src.Editor.MinSceneSeconds
	}
	if src.Editor.FallbackSceneSeconds > 0 {
		dst.Editor.FallbackSceneSeconds = src.Editor.FallbackSceneSeconds
	}
	// export defaults
	if src.Export.Width > 0 {
		dst.Export.Width = src.Export.Width
	}
	if src.Export.Height > 0 {
		dst.Export.Height = src.Export.Height
	}
	if src.Export.FPS > 0 {
		dst.Export.FPS = src.Export.FPS
	}
	if strings.TrimSpace(src.Export.Quality) != "" {
		dst.Export.Quality = strings.ToLower(strings.TrimSpace(src.Export.Quality))
	}
	if strings.TrimSpace(src.Export.FFmpeg) != "" {
		dst.Export.FFmpeg = strings.TrimSpace(src.Export.FFmpeg)
	}
	if strings.TrimSpace(src.Export.FFprobe) != "" {
		dst.Export.FFprobe = strings.TrimSpace(src.Export.FFprobe)
	}
	// shared library
	dst.Shared.Enabled = src.Shared.Enabled
	if strings.TrimSpace(src.Shared.DSN) != "" {
		dst.Shared.DSN = strings.TrimSpace(src.Shared.DSN)
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTLSInsec)); v != "" {
		cfg.Backend.TLSInsecure = isTruthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = isTruthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLibraryDir)); v != "" {
		cfg.General.LibraryDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvFFmpeg)); v != "" {
		cfg.Export.FFmpeg = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvFFprobe)); v != "" {
		cfg.Export.FFprobe = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSharedDSN)); v != "" {
		cfg.Shared.DSN = v
		cfg.Shared.Enabled = true
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = isTruthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func isTruthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	switch key {
	case "backend.base_url":
		if os.Getenv(EnvBackendURL) != "" {
			return EnvBackendURL, true
		}
	case "backend.timeout_ms":
		if os.Getenv(EnvBackendTimeoutMs) != "" {
			return EnvBackendTimeoutMs, true
		}
	case "backend.tls_insecure":
		if os.Getenv(EnvBackendTLSInsec) != "" {
			return EnvBackendTLSInsec, true
		}
	case "general.telemetry_opt_in":
		if os.Getenv(EnvTelemetryOptIn) != "" {
			return EnvTelemetryOptIn, true
		}
	case "general.library_dir":
		if os.Getenv(EnvLibraryDir) != "" {
			return EnvLibraryDir, true
		}
	case "export.ffmpeg":
		if os.Getenv(EnvFFmpeg) != "" {
			return EnvFFmpeg, true
		}
	case "export.ffprobe":
		if os.Getenv(EnvFFprobe) != "" {
			return EnvFFprobe, true
		}
	case "shared.dsn":
		if os.Getenv(EnvSharedDSN) != "" {
			return EnvSharedDSN, true
		}
	case "logging.level":
		if os.Getenv(EnvLogLevel) != "" {
			return EnvLogLevel, true
		}
	case "logging.format":
		if os.Getenv(EnvLogFormat) != "" {
			return EnvLogFormat, true
		}
	case "logging.source":
		if os.Getenv(EnvLogSource) != "" {
			return EnvLogSource, true
		}
	case "logging.file":
		if os.Getenv(EnvLogFile) != "" {
			return EnvLogFile, true
		}
	}
	return "", false
}

// EffectiveTimeout returns the backend timeout as a duration-like milliseconds string for http.Client.
func (b BackendConfig) EffectiveTimeout() string {
	if b.TimeoutMs <= 0 {
		return fmt.Sprintf("%dms", Defaults().Backend.TimeoutMs)
	}
	return fmt.Sprintf("%dms", b.TimeoutMs)
}
