package executor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/coursegrader/pipeline/shared"
	"github.com/coursegrader/pipeline/tester/internal/config"
)

func TestDockerArgsOrder(t *testing.T) {
	cfg := config.TesterConfig{
		DockerImage: "grader:latest",
		DirOnHost:   "/host/work",
		DirInDocker: "/work",
		Program:     "gcc",
		ExtraArgs:   []string{"--verbose"},
		Env: map[string]map[string]string{
			"lab1": {"FOO": "bar"},
		},
	}
	e := New(cfg, zap.NewNop())
	req := shared.JobRequest{Lab: "lab1", Dir: "dt", ZipURL: "http://x/zips/a.zip"}

	args := e.dockerArgs(req, "tests/lab1.sh")

	want := []string{
		"run", "--rm", "-v", "/host/work:/work",
		"-e", "FOO=bar",
		"grader:latest", "--verbose",
		"http://x/zips/a.zip", "dt", "gcc", filepath.Join("/work", "tests/lab1.sh"),
	}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestRunMissingLabConfigSynthesizesError(t *testing.T) {
	cfg := config.TesterConfig{TestFiles: map[string]string{}}
	e := New(cfg, zap.NewNop())

	out := e.Run(context.Background(), shared.JobRequest{Lab: "unknown", JobName: "[gitlab:x]"})
	if !strings.Contains(out, "grade: 0") || !strings.Contains(out, "unable to find configuration") {
		t.Errorf("unexpected synthesized report: %q", out)
	}
}

func TestRunNonZeroExitSynthesizesErrorFromStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake docker script is a shell script")
	}

	dir := t.TempDir()
	script := "#!/bin/sh\necho -n boom 1>&2\nexit 2\n"
	if err := os.WriteFile(filepath.Join(dir, "docker"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	cfg := config.TesterConfig{
		DockerImage: "grader:latest",
		DirOnHost:   "/host",
		DirInDocker: "/work",
		Program:     "gcc",
		TestFiles:   map[string]string{"lab1": "lab1.sh"},
	}
	e := New(cfg, zap.NewNop())

	out := e.Run(context.Background(), shared.JobRequest{Lab: "lab1", JobName: "[gitlab:x]"})
	if !strings.Contains(out, "grade: 0") {
		t.Errorf("expected grade: 0 in synthesized report, got %q", out)
	}
	if !strings.Contains(out, "max-grade: 1") {
		t.Errorf("expected max-grade: 1 in synthesized report, got %q", out)
	}
	if !strings.Contains(out, "boom") {
		t.Errorf("expected stderr 'boom' in synthesized report, got %q", out)
	}
}

func TestLimitedBufferTruncatesAtLimit(t *testing.T) {
	var lb limitedBuffer
	lb.limit = 4
	lb.Write([]byte("abcdefgh"))
	if got := lb.String(); got != "abcd" {
		t.Errorf("limitedBuffer truncated to %q, want %q", got, "abcd")
	}
}
