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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zalando/go-keyring"

	"xlabel/internal/engine"
	"xlabel/internal/shape"
)

func useTempConfig(t *testing.T) string {
	t.Helper()
	keyring.MockInit()
	p := filepath.Join(t.TempDir(), "cfg", "config.yaml")
	t.Setenv(EnvConfigPath, p)
	return p
}

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	useTempConfig(t)
	cfg, pw, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if pw != "" {
		t.Fatalf("expected no password, got %q", pw)
	}
	if cfg.Editor.CreateMode != "rectangle" || !cfg.Editor.Editable || cfg.Storage.MaxSnapshots != 20 {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
}

func TestSaveLoadRoundTripKeepsPasswordOutOfFile(t *testing.T) {
	p := useTempConfig(t)
	cfg := Defaults()
	cfg.Editor.CreateMode = "polygon"
	cfg.Editor.Continuous = true
	cfg.Backend.DSN = "postgres://db.local/xlabel"
	cfg.Shortcuts = map[string]string{"ctrl+l": "linestrip"}
	if err := Save(cfg, "s3cret"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(raw), "s3cret") {
		t.Fatalf("password leaked into config file")
	}
	got, pw, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if pw != "s3cret" {
		t.Fatalf("password = %q", pw)
	}
	if got.Editor.CreateMode != "polygon" || !got.Editor.Continuous || got.Backend.DSN != cfg.Backend.DSN {
		t.Fatalf("round trip lost fields: %#v", got)
	}
	if got.Shortcuts["ctrl+l"] != "linestrip" {
		t.Fatalf("shortcuts not loaded: %v", got.Shortcuts)
	}
	if err := ForgetPassword(); err != nil {
		t.Fatalf("ForgetPassword: %v", err)
	}
	if err := ForgetPassword(); err != nil {
		t.Fatalf("second ForgetPassword should be a no-op: %v", err)
	}
	if _, pw, _ = Load(); pw != "" {
		t.Fatalf("password should be gone")
	}
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	p := useTempConfig(t)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("editor: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = " DEBUG "
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/xlabel.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/xlabel.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestMergeKeepsDefaultsForZeroValues(t *testing.T) {
	dst := Defaults()
	src := AppConfig{Editor: EditorConfig{Editable: true, LineWidth: 3}}
	mergeInto(&dst, &src)
	if dst.Editor.LineWidth != 3 || dst.Editor.VertexSize != 8 || dst.Editor.LineColor != "#00FF00" {
		t.Fatalf("zero fields must not clobber defaults: %#v", dst.Editor)
	}
}

func TestEnvOverrides(t *testing.T) {
	useTempConfig(t)
	t.Setenv(EnvCreateMode, "Circle")
	t.Setenv(EnvEditable, "off")
	t.Setenv(EnvBackendDSN, "postgres://env/db")
	t.Setenv(EnvBackendTmoMs, "2500")
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogSource, "1")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Editor.CreateMode != "circle" || cfg.Editor.Editable {
		t.Fatalf("editor overrides not applied: %#v", cfg.Editor)
	}
	if cfg.Backend.DSN != "postgres://env/db" || cfg.Backend.Timeout() != 2500*time.Millisecond {
		t.Fatalf("backend overrides not applied: %#v", cfg.Backend)
	}
	if cfg.Logging.Level != "error" || !cfg.Logging.Source {
		t.Fatalf("logging overrides not applied: %#v", cfg.Logging)
	}
	if name, ok := EnvOverrideFor("backend.dsn"); !ok || name != EnvBackendDSN {
		t.Fatalf("EnvOverrideFor = %q %v", name, ok)
	}
	if _, ok := EnvOverrideFor("storage.path"); ok {
		t.Fatalf("storage.path is not overridden")
	}
}

func TestEngineOptions(t *testing.T) {
	cfg := Defaults()
	cfg.Editor.CreateMode = "linestrip"
	cfg.Editor.FillColor = "#102030"
	cfg.Editor.PanModifier = "alt"
	cfg.Editor.ZoomMax = 4
	o, err := cfg.EngineOptions()
	if err != nil {
		t.Fatalf("EngineOptions: %v", err)
	}
	if o.CreateMode != shape.Linestrip || o.FillColor != [3]uint8{0x10, 0x20, 0x30} {
		t.Fatalf("unexpected options: %+v", o)
	}
	if o.PanModifier != engine.ModAlt || o.CopyModifier != engine.ModCtrl || o.ZoomMax != 4 {
		t.Fatalf("modifiers/zoom wrong: %+v", o)
	}
	if o.ActiveFillColor != [3]uint8{245, 34, 45} {
		t.Fatalf("active fill default should match engine default: %v", o.ActiveFillColor)
	}
}

func TestEngineOptionsReportsInvalidValues(t *testing.T) {
	cfg := Defaults()
	cfg.Editor.CreateMode = "hexagon"
	cfg.Editor.CopyModifier = "hyper"
	cfg.Editor.FillColor = "green"
	o, err := cfg.EngineOptions()
	if err == nil {
		t.Fatalf("expected errors")
	}
	if o.CreateMode != shape.Rectangle || o.CopyModifier != engine.ModCtrl || o.FillColor != [3]uint8{0, 255, 0} {
		t.Fatalf("invalid values must leave defaults: %+v", o)
	}
}

func TestDatabasePath(t *testing.T) {
	s := StorageConfig{Path: "/data/x.db"}
	if p, _ := s.DatabasePath(); p != "/data/x.db" {
		t.Fatalf("explicit path ignored: %s", p)
	}
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	t.Setenv("HOME", "/home/u")
	p, err := StorageConfig{}.DatabasePath()
	if err != nil || filepath.Base(p) != "xlabel.db" {
		t.Fatalf("default path = %q, %v", p, err)
	}
}
