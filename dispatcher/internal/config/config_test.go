package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `
server:
  ip: 127.0.0.1
  port: 8000
  base_url: http://grader.example.test:8000
gitlab:
  token: glpat-xyz
  base_url: https://gitlab.example.test
  secret_token: sekret
package:
  threads: 4
  zip_dir: %s
labs:
  - name: lab1
    base: lab1
    dir: dt
    witness: Makefile
  - name: lab2
    base: lab2
    dir: dt
    enabled: false
amqp:
  host: rabbit.example.test
  port: 5672
  exchange: grader
  routing_key: jobs
  queue: jobs
redis:
  addr: ""
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dispatcher.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	zipDir := filepath.Join(t.TempDir(), "zips")
	cfg, err := Load(writeConfig(t, fmt.Sprintf(sampleConfig, zipDir)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.Server.Addr(); got != "127.0.0.1:8000" {
		t.Errorf("Server.Addr() = %q, want 127.0.0.1:8000", got)
	}
	if cfg.Gitlab.SecretToken != "sekret" {
		t.Errorf("Gitlab.SecretToken = %q, want sekret", cfg.Gitlab.SecretToken)
	}
	if cfg.Package.Threads != 4 {
		t.Errorf("Package.Threads = %d, want 4", cfg.Package.Threads)
	}
	if len(cfg.Labs) != 2 {
		t.Fatalf("len(Labs) = %d, want 2", len(cfg.Labs))
	}
	if !cfg.Labs[0].IsEnabled() || cfg.Labs[0].Witness != "Makefile" {
		t.Errorf("Labs[0] = %+v, want enabled with Makefile witness", cfg.Labs[0])
	}
	if cfg.Labs[1].IsEnabled() {
		t.Error("Labs[1] should be disabled")
	}
	if got := cfg.AMQP.URL(); got != "amqp://rabbit.example.test:5672/%2f" {
		t.Errorf("AMQP.URL() = %q", got)
	}

	if _, err := os.Stat(zipDir); err != nil {
		t.Errorf("Load should create the zip directory: %v", err)
	}
}

func TestLoadRequiresZipDir(t *testing.T) {
	if _, err := Load(writeConfig(t, "server:\n  port: 8000\n")); err == nil {
		t.Fatal("expected an error when package.zip_dir is unset")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing configuration file")
	}
}
