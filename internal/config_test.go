package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/skylabel/pkg/config"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
}

func TestPoolConfig_SameDirRejected(t *testing.T) {
	cfg := PoolConfig{UnlabeledDir: "./images", LabeledDir: "images/"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("identical pool dirs should fail")
	}
	if !strings.Contains(err.Error(), "must differ") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPoolConfig_Required(t *testing.T) {
	cfg := PoolConfig{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty pool config should fail")
	}
}

func TestLeaseConfig(t *testing.T) {
	cases := []struct {
		name    string
		cfg     LeaseConfig
		wantErr bool
	}{
		{"default", LeaseConfig{TTL: 10 * time.Minute, ReapInterval: time.Minute}, false},
		{"reaper disabled", LeaseConfig{TTL: time.Minute}, false},
		{"zero ttl", LeaseConfig{}, true},
		{"sub-second ttl", LeaseConfig{TTL: time.Millisecond}, true},
		{"negative reap", LeaseConfig{TTL: time.Minute, ReapInterval: -time.Second}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestFullConfig_SectionNamedInError(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Lease.TTL = 0
	err := cfg.Validate()
	if err == nil || !strings.HasPrefix(err.Error(), "lease:") {
		t.Fatalf("err = %v, want lease section error", err)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("SKYLABEL_TEST_DB", "/tmp/labels.db")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `app:
  log_level: debug
  http:
    port: 9090
pool:
  unlabeled_dir: /srv/raw
  labeled_dir: /srv/labeled
sqlite:
  path: ${SKYLABEL_TEST_DB}
lease:
  ttl: 5m
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 {
		t.Errorf("port = %d", cfg.App.HTTP.Port)
	}
	if cfg.SQLite.Path != "/tmp/labels.db" {
		t.Errorf("sqlite path = %q", cfg.SQLite.Path)
	}
	if cfg.Lease.TTL != 5*time.Minute {
		t.Errorf("ttl = %v", cfg.Lease.TTL)
	}
	if cfg.Lease.ReapInterval != time.Minute {
		t.Errorf("reap interval default lost: %v", cfg.Lease.ReapInterval)
	}
	if cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("log level = %v", cfg.App.LogLevel)
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg := NewDefaultConfig()
	loaded, err := pkgconfig.LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"), cfg)
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if loaded {
		t.Error("loaded = true for a missing file")
	}
	if cfg.App.HTTP.Port != 8080 {
		t.Errorf("defaults changed: port %d", cfg.App.HTTP.Port)
	}
}
