package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/coursegrader/pipeline/dispatcher/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupPushRouter(secretToken string) (*gin.Engine, chan domain.PushHook) {
	hooks := make(chan domain.PushHook, 16)
	h := NewPushHandler(secretToken, hooks, zap.NewNop())

	router := gin.New()
	router.POST("/push", h.Push)
	return router, hooks
}

func postPush(t *testing.T, router *gin.Engine, body string, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/push", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Gitlab-Token", token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPushDeleteEventReturns204AndNeverForwards(t *testing.T) {
	router, hooks := setupPushRouter("")

	body := `{"object_kind":"push","checkout_sha":null,"ref":"refs/heads/main","repository":{"name":"repo1"}}`
	w := postPush(t, router, body, "")

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}

	select {
	case h := <-hooks:
		t.Fatalf("delete event should not be forwarded to packager, got %+v", h)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPushSuccessForwardsToPackager(t *testing.T) {
	router, hooks := setupPushRouter("")

	body := `{"object_kind":"push","checkout_sha":"abc123","ref":"refs/heads/main","repository":{"name":"repo1"}}`
	w := postPush(t, router, body, "")

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}

	select {
	case h := <-hooks:
		if h.PushedSHA() != "abc123" {
			t.Errorf("forwarded hook sha = %q, want abc123", h.PushedSHA())
		}
	case <-time.After(time.Second):
		t.Fatal("push event was never forwarded to packager")
	}
}

func TestPushUnknownEventIsNotForwarded(t *testing.T) {
	router, hooks := setupPushRouter("")

	body := `{"object_kind":"tag_push","checkout_sha":"abc123","ref":"refs/tags/v1","repository":{"name":"repo1"}}`
	w := postPush(t, router, body, "")

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	select {
	case h := <-hooks:
		t.Fatalf("non-push event should not be forwarded, got %+v", h)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPushBadToken(t *testing.T) {
	router, _ := setupPushRouter("sekret")
	body := `{"object_kind":"push","checkout_sha":"abc123","ref":"refs/heads/main","repository":{"name":"repo1"}}`

	if w := postPush(t, router, body, ""); w.Code != http.StatusForbidden {
		t.Errorf("missing token: status = %d, want 403", w.Code)
	}
	if w := postPush(t, router, body, "wrong"); w.Code != http.StatusForbidden {
		t.Errorf("wrong token: status = %d, want 403", w.Code)
	}
	if w := postPush(t, router, body, "sekret"); w.Code != http.StatusNoContent {
		t.Errorf("correct token: status = %d, want 204", w.Code)
	}
}

func TestPushMalformedBody(t *testing.T) {
	router, _ := setupPushRouter("")
	w := postPush(t, router, "not json", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// A full hook channel must not drop events: the handler still answers
// 204 (the send is fire-and-forget) and every hook arrives once the
// consumer drains the channel.
func TestPushFullChannelDropsNothing(t *testing.T) {
	hooks := make(chan domain.PushHook, 1)
	h := NewPushHandler("", hooks, zap.NewNop())
	router := gin.New()
	router.POST("/push", h.Push)

	const total = 3
	for i := 0; i < total; i++ {
		body := `{"object_kind":"push","checkout_sha":"abc123","ref":"refs/heads/main","repository":{"name":"repo1"}}`
		if w := postPush(t, router, body, ""); w.Code != http.StatusNoContent {
			t.Fatalf("push %d: status = %d, want 204", i, w.Code)
		}
	}

	for i := 0; i < total; i++ {
		select {
		case <-hooks:
		case <-time.After(time.Second):
			t.Fatalf("only %d of %d hooks arrived; the rest were dropped", i, total)
		}
	}
}
