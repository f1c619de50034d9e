// Package executor runs the containerized test harness for one job and
// turns its outcome into a YAML grade report.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/coursegrader/pipeline/shared"
	"github.com/coursegrader/pipeline/tester/internal/config"
)

// maxOutputBytes caps the captured stdout so a runaway test harness
// cannot exhaust the tester's memory.
const maxOutputBytes = 4 << 20

// Executor composes and runs the `docker run` invocation described in
// the tester configuration.
type Executor struct {
	cfg    config.TesterConfig
	logger *zap.Logger
}

func New(cfg config.TesterConfig, logger *zap.Logger) *Executor {
	return &Executor{cfg: cfg, logger: logger}
}

// Run executes req and returns a YAML grade report: the container's
// stdout verbatim on exit 0, or a synthesized error report quoting
// stderr otherwise.
func (e *Executor) Run(ctx context.Context, req shared.JobRequest) string {
	testFile, ok := e.cfg.TestFiles[req.Lab]
	if !ok {
		return synthesizeError(fmt.Sprintf("unable to find configuration for lab '%s' for '%s'", req.Lab, req.JobName))
	}

	args := e.dockerArgs(req, testFile)
	cmd := exec.CommandContext(ctx, "docker", args...)

	var stdout, stderr limitedBuffer
	stdout.limit = maxOutputBytes
	stderr.limit = maxOutputBytes
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = nil

	if err := cmd.Run(); err != nil {
		e.logger.Warn("container exited non-zero",
			zap.String("job_name", req.JobName), zap.String("lab", req.Lab), zap.Error(err))
		return synthesizeError(stderr.String())
	}

	return stdout.String()
}

func (e *Executor) dockerArgs(req shared.JobRequest, testFile string) []string {
	args := []string{"run", "--rm", "-v", fmt.Sprintf("%s:%s", e.cfg.DirOnHost, e.cfg.DirInDocker)}
	for k, v := range e.cfg.EnvFor(req.Lab) {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, e.cfg.DockerImage)
	args = append(args, e.cfg.ExtraArgs...)
	args = append(args, req.ZipURL, req.Dir, e.cfg.Program, filepath.Join(e.cfg.DirInDocker, testFile))
	return args
}

// synthesizeError builds the minimal {grade: 0, max-grade: 1,
// explanation} report a failed run produces in place of a real one.
func synthesizeError(explanation string) string {
	doc := struct {
		Grade       int    `yaml:"grade"`
		MaxGrade    int    `yaml:"max-grade"`
		Explanation string `yaml:"explanation"`
	}{Grade: 0, MaxGrade: 1, Explanation: explanation}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "grade: 0\nmax-grade: 1\nexplanation: \"internal error rendering report\"\n"
	}
	return string(out)
}

type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (lb *limitedBuffer) Write(p []byte) (int, error) {
	if lb.truncated {
		return len(p), nil
	}
	remaining := lb.limit - lb.buf.Len()
	if remaining <= 0 {
		lb.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		lb.truncated = true
		p = p[:remaining]
	}
	return lb.buf.Write(p)
}

func (lb *limitedBuffer) String() string { return lb.buf.String() }
