/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
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
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"xlabel/internal/engine"
	"xlabel/internal/shape"
)

// AppConfig is the user-editable configuration persisted as YAML in the user scope.
// Environment variables are read-only overrides applied after the file.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.
type AppConfig struct {
	ConfigVersion int               `yaml:"config_version"`
	Editor        EditorConfig      `yaml:"editor"`
	Logging       LoggingConfig     `yaml:"logging"`
	Storage       StorageConfig     `yaml:"storage"`
	Backend       BackendConfig     `yaml:"backend"`
	Shortcuts     map[string]string `yaml:"shortcuts,omitempty"`
}

// EditorConfig mirrors the engine options that make sense to persist.
type EditorConfig struct {
	CreateMode      string  `yaml:"create_mode"`
	Continuous      bool    `yaml:"continuous"`
	Editable        bool    `yaml:"editable"`
	RequireLabel    bool    `yaml:"require_label"`
	ZoomMin         float64 `yaml:"zoom_min"`
	ZoomMax         float64 `yaml:"zoom_max"`
	LineColor       string  `yaml:"line_color"`
	LineWidth       float64 `yaml:"line_width"`
	VertexSize      float64 `yaml:"vertex_size"`
	FillColor       string  `yaml:"fill_color"`
	FillOpacity     float64 `yaml:"fill_opacity"`
	ActiveColor     string  `yaml:"active_color"`
	ActiveFillColor string  `yaml:"active_fill_color"`
	PanModifier     string  `yaml:"pan_modifier"`
	CopyModifier    string  `yaml:"copy_modifier"`
	MaxUndo         int     `yaml:"max_undo"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type StorageConfig struct {
	// Path of the SQLite database. Empty means <config dir>/xlabel.db.
	Path         string `yaml:"path"`
	MaxSnapshots int    `yaml:"max_snapshots"`
}

type BackendConfig struct {
	// DSN without password; the password lives in the OS keychain.
	DSN       string `yaml:"dsn"`
	User      string `yaml:"user"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Editor: EditorConfig{
			CreateMode:      string(shape.Rectangle),
			Editable:        true,
			ZoomMin:         0.5,
			ZoomMax:         10,
			LineColor:       "#00FF00",
			LineWidth:       1,
			VertexSize:      8,
			FillColor:       "#00ff00",
			FillOpacity:     0.1,
			ActiveColor:     "#a8071a",
			ActiveFillColor: "#f5222d",
			PanModifier:     "ctrl",
			CopyModifier:    "ctrl",
			MaxUndo:         1000,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Storage: StorageConfig{MaxSnapshots: 20},
		Backend: BackendConfig{TimeoutMs: 15000},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath   = "XLABEL_CONFIG"
	EnvCreateMode   = "XLABEL_CREATE_MODE"
	EnvContinuous   = "XLABEL_CONTINUOUS"
	EnvEditable     = "XLABEL_EDITABLE"
	EnvStoragePath  = "XLABEL_DB"
	EnvBackendDSN   = "XLABEL_PG_DSN"
	EnvBackendTmoMs = "XLABEL_PG_TIMEOUT_MS"
	// Logging envs share names with the log package.
	EnvLogLevel  = "XLABEL_LOG_LEVEL"
	EnvLogFormat = "XLABEL_LOG_FORMAT"
	EnvLogSource = "XLABEL_LOG_SOURCE"
	EnvLogFile   = "XLABEL_LOG_FILE"
)

const (
	keyringService  = "xlabel"
	keyringPassword = "backend_password"
)

// SecretStore abstracts the keychain so tests can substitute it.
type SecretStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

var secrets SecretStore = osKeyring{}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "xlabel")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "xlabel")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "xlabel")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "xlabel")
		}
	}
	if base == "" || base == "xlabel" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the config file path, honouring XLABEL_CONFIG.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config file (if present), applies defaults and env overrides.
// The backend password is read from the keyring and returned separately.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, "", fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	pw, _ := secrets.Get(keyringService, keyringPassword)
	return cfg, pw, nil
}

// Save writes the YAML file and stores a non-empty password in the keyring.
func Save(cfg AppConfig, password string) error {
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
	if password != "" {
		if err := secrets.Set(keyringService, keyringPassword, password); err != nil {
			return fmt.Errorf("store password: %w", err)
		}
	}
	return nil
}

// ForgetPassword removes the backend password from the keyring.
func ForgetPassword() error {
	err := secrets.Delete(keyringService, keyringPassword)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func mergeInto(dst, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	e, s := &dst.Editor, src.Editor
	setStr(&e.CreateMode, strings.ToLower(s.CreateMode))
	setStr(&e.LineColor, s.LineColor)
	setStr(&e.FillColor, s.FillColor)
	setStr(&e.ActiveColor, s.ActiveColor)
	setStr(&e.ActiveFillColor, s.ActiveFillColor)
	setStr(&e.PanModifier, s.PanModifier)
	setStr(&e.CopyModifier, s.CopyModifier)
	setNum(&e.ZoomMin, s.ZoomMin)
	setNum(&e.ZoomMax, s.ZoomMax)
	setNum(&e.LineWidth, s.LineWidth)
	setNum(&e.VertexSize, s.VertexSize)
	setNum(&e.FillOpacity, s.FillOpacity)
	if s.MaxUndo > 0 {
		e.MaxUndo = s.MaxUndo
	}
	// booleans come straight from the file so user preferences persist
	e.Continuous = s.Continuous
	e.Editable = s.Editable
	e.RequireLabel = s.RequireLabel

	setStr(&dst.Logging.Level, strings.ToLower(src.Logging.Level))
	setStr(&dst.Logging.Format, strings.ToLower(src.Logging.Format))
	dst.Logging.Source = src.Logging.Source
	setStr(&dst.Logging.File, src.Logging.File)

	setStr(&dst.Storage.Path, src.Storage.Path)
	if src.Storage.MaxSnapshots > 0 {
		dst.Storage.MaxSnapshots = src.Storage.MaxSnapshots
	}
	setStr(&dst.Backend.DSN, src.Backend.DSN)
	setStr(&dst.Backend.User, src.Backend.User)
	if src.Backend.TimeoutMs > 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	if len(src.Shortcuts) > 0 {
		dst.Shortcuts = make(map[string]string, len(src.Shortcuts))
		for k, v := range src.Shortcuts {
			dst.Shortcuts[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}
}

func setStr(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setNum(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvCreateMode)); v != "" {
		cfg.Editor.CreateMode = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvContinuous)); v != "" {
		cfg.Editor.Continuous = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvEditable)); v != "" {
		cfg.Editor.Editable = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoragePath)); v != "" {
		cfg.Storage.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendDSN)); v != "" {
		cfg.Backend.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTmoMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by the environment.
func EnvOverrideFor(key string) (string, bool) {
	name := map[string]string{
		"editor.create_mode": EnvCreateMode,
		"editor.continuous":  EnvContinuous,
		"editor.editable":    EnvEditable,
		"storage.path":       EnvStoragePath,
		"backend.dsn":        EnvBackendDSN,
		"backend.timeout_ms": EnvBackendTmoMs,
		"logging.level":      EnvLogLevel,
		"logging.format":     EnvLogFormat,
		"logging.source":     EnvLogSource,
		"logging.file":       EnvLogFile,
	}[key]
	if name != "" && os.Getenv(name) != "" {
		return name, true
	}
	return "", false
}

// Timeout returns the backend timeout, falling back to the default.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// DatabasePath resolves the SQLite path, defaulting into the config directory.
func (s StorageConfig) DatabasePath() (string, error) {
	if s.Path != "" {
		return s.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "xlabel.db"), nil
}

// EngineOptions converts the editor section into engine options. Invalid
// values are reported; the remaining fields are still applied.
func (c AppConfig) EngineOptions() (engine.Options, error) {
	o := engine.DefaultOptions()
	ed := c.Editor
	var errs []error
	if ed.CreateMode != "" {
		t, err := shape.ParseType(ed.CreateMode)
		if err != nil {
			errs = append(errs, err)
		} else {
			o.CreateMode = t
		}
	}
	o.ContinuousMode = ed.Continuous
	o.Editable = ed.Editable
	o.RequireLabel = ed.RequireLabel
	if ed.ZoomMin > 0 {
		o.ZoomMin = ed.ZoomMin
	}
	if ed.ZoomMax > 0 {
		o.ZoomMax = ed.ZoomMax
	}
	if ed.LineColor != "" {
		o.LineColor = ed.LineColor
	}
	if ed.LineWidth > 0 {
		o.LineWidth = ed.LineWidth
	}
	if ed.VertexSize > 0 {
		o.VertexSize = ed.VertexSize
	}
	if ed.FillOpacity > 0 {
		o.FillOpacity = ed.FillOpacity
	}
	if ed.ActiveColor != "" {
		o.ActiveColor = ed.ActiveColor
	}
	if err := rgbInto(&o.FillColor, ed.FillColor); err != nil {
		errs = append(errs, fmt.Errorf("fill_color: %w", err))
	}
	if err := rgbInto(&o.ActiveFillColor, ed.ActiveFillColor); err != nil {
		errs = append(errs, fmt.Errorf("active_fill_color: %w", err))
	}
	if err := modInto(&o.PanModifier, ed.PanModifier); err != nil {
		errs = append(errs, fmt.Errorf("pan_modifier: %w", err))
	}
	if err := modInto(&o.CopyModifier, ed.CopyModifier); err != nil {
		errs = append(errs, fmt.Errorf("copy_modifier: %w", err))
	}
	if ed.MaxUndo > 0 {
		o.MaxUndo = ed.MaxUndo
	}
	return o, errors.Join(errs...)
}

func rgbInto(dst *[3]uint8, hex string) error {
	if hex == "" {
		return nil
	}
	if _, ok := shape.ParseColor(hex); !ok {
		return fmt.Errorf("invalid color %q", hex)
	}
	r, g, b := shape.RGB(hex)
	*dst = [3]uint8{r, g, b}
	return nil
}

func modInto(dst *engine.Modifiers, name string) error {
	if name == "" {
		return nil
	}
	m, ok := engine.ParseModifier(name)
	if !ok {
		return fmt.Errorf("unknown modifier %q", name)
	}
	*dst = m
	return nil
}
