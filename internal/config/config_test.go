package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points HOME, the config dir and the working directory at empty temp dirs.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	wd := t.TempDir()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(wd); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
	return wd
}

func TestDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != DefaultBackend {
		t.Errorf("Backend: got %q, want %q", cfg.Backend, DefaultBackend)
	}
	if cfg.DataFile != DefaultDataFile {
		t.Errorf("DataFile: got %q, want %q", cfg.DataFile, DefaultDataFile)
	}
	if cfg.APITimeout != DefaultAPITimeout {
		t.Errorf("APITimeout: got %v, want %v", cfg.APITimeout, DefaultAPITimeout)
	}
	if cfg.APIBurst != DefaultAPIBurst {
		t.Errorf("APIBurst: got %d, want %d", cfg.APIBurst, DefaultAPIBurst)
	}
}

func TestLoadConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "tada.toml")
	content := []byte(`backend = "sqlite"
sqlite_path = "todos.db"
api_timeout = "3s"
api_burst = 9
`)
	if err := os.WriteFile(configFile, content, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{}
	if err := loadConfigFile(cfg, configFile); err != nil {
		t.Fatalf("loadConfigFile: %v", err)
	}
	if cfg.Backend != "sqlite" {
		t.Errorf("Backend: got %q, want sqlite", cfg.Backend)
	}
	if cfg.SQLitePath != "todos.db" {
		t.Errorf("SQLitePath: got %q", cfg.SQLitePath)
	}
	if cfg.APITimeout != 3*time.Second {
		t.Errorf("APITimeout: got %v, want 3s", cfg.APITimeout)
	}
	if cfg.APIBurst != 9 {
		t.Errorf("APIBurst: got %d, want 9", cfg.APIBurst)
	}
}

func TestLoadConfigFileRejectsUnknownKeys(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tada.toml")
	if err := os.WriteFile(p, []byte("bakend = \"json\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := loadConfigFile(&Config{}, p)
	if err == nil || !strings.Contains(err.Error(), "bakend") {
		t.Fatalf("loadConfigFile err = %v, want unknown key error", err)
	}
}

func TestPrecedence(t *testing.T) {
	wd := isolate(t)
	if err := os.WriteFile(filepath.Join(wd, "tada.toml"), []byte(`backend = "sqlite"
theme = "neon"
api_url = "http://file:1"
`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TADA_THEME", "mono")
	t.Setenv("TADA_API_URL", "http://env:2/")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := Load(fs, []string{"-api", "http://flag:3/", "ls", "extra"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Backend != "sqlite" {
		t.Errorf("Backend from file: got %q", cfg.Backend)
	}
	if cfg.Theme != "mono" {
		t.Errorf("Theme from env: got %q", cfg.Theme)
	}
	if cfg.APIURL != "http://flag:3" {
		t.Errorf("APIURL from flag: got %q", cfg.APIURL)
	}
	if got := fs.Args(); len(got) != 2 || got[0] != "ls" {
		t.Errorf("remaining args: %v", got)
	}
}

func TestLoadFromEnvParseErrors(t *testing.T) {
	tests := []struct{ name, key, value string }{
		{"timeout", "TADA_API_TIMEOUT", "soon"},
		{"rate", "TADA_API_RATE", "fast"},
		{"burst", "TADA_API_BURST", "many"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if err := loadFromEnv(&Config{}); err == nil {
				t.Errorf("%s=%q: expected error", tt.key, tt.value)
			}
		})
	}
}

func TestFinalizeConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"json", Config{Backend: "JSON "}, false},
		{"http", Config{Backend: "http"}, false},
		{"postgres without dsn", Config{Backend: "postgres"}, true},
		{"postgres with dsn", Config{Backend: "postgres", PostgresDSN: "postgres://x"}, false},
		{"unknown", Config{Backend: "redis"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := finalizeConfig(&cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("finalizeConfig err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && cfg.APIBurst != DefaultAPIBurst {
				t.Errorf("APIBurst not defaulted: %d", cfg.APIBurst)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TADA_TEST_DIR", "/data")

	tests := []struct{ in, want string }{
		{"", ""},
		{"~", home},
		{"~/todos.json", filepath.Join(home, "todos.json")},
		{"$TADA_TEST_DIR/todos.json", "/data/todos.json"},
		{"rel/todos.json", "rel/todos.json"},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBoolFromString(t *testing.T) {
	for _, s := range []string{"1", "true", "YES", " on "} {
		if !boolFromString(s) {
			t.Errorf("boolFromString(%q) = false", s)
		}
	}
	for _, s := range []string{"", "0", "no", "off", "maybe"} {
		if boolFromString(s) {
			t.Errorf("boolFromString(%q) = true", s)
		}
	}
}
