package poster

import (
	"testing"

	"go.uber.org/zap"

	"github.com/coursegrader/pipeline/dispatcher/internal/config"
	"github.com/coursegrader/pipeline/dispatcher/internal/domain"
)

func TestNewWithoutTokenDegradesToNoOp(t *testing.T) {
	c, err := New(config.GitlabConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.api != nil {
		t.Fatal("expected a nil api client when no token is configured")
	}

	hook := domain.PushHook{Repository: domain.Repository{Name: "repo1"}}

	// None of these should panic against a no-op client.
	c.PostRunning(hook, "lab1", "packaging")
	c.PostFailed(hook, "lab1", "failed")
	c.PostComment(hook, "note")
}
