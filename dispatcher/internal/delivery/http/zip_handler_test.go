package http

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func TestContainsDotDot(t *testing.T) {
	cases := map[string]bool{
		"a.zip":        false,
		"../secret":    true,
		"..":           true,
		"sub/../a.zip": true,
		"sub/a.zip":    false,
	}
	for in, want := range cases {
		if got := containsDotDot(in); got != want {
			t.Errorf("containsDotDot(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestZipHandlerRejectsDotDot(t *testing.T) {
	dir := t.TempDir()
	secret := filepath.Join(filepath.Dir(dir), "secret")
	if err := os.WriteFile(secret, []byte("top secret"), 0o600); err != nil {
		t.Fatal(err)
	}
	defer os.Remove(secret)

	h := NewZipHandler(dir, zap.NewNop())
	router := gin.New()
	router.GET("/zips/:name", h.Get)

	req := httptest.NewRequest(http.MethodGet, "/zips/..%2Fsecret", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if w.Body.String() == "top secret" {
		t.Error("handler served a file outside the zip directory")
	}
}

func TestZipHandlerServesKnownFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.zip"), []byte("zip-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	h := NewZipHandler(dir, zap.NewNop())
	router := gin.New()
	router.GET("/zips/:name", h.Get)

	req := httptest.NewRequest(http.MethodGet, "/zips/a.zip", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "zip-bytes" {
		t.Errorf("body = %q, want %q", w.Body.String(), "zip-bytes")
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Content-Type = %q, want application/zip", ct)
	}
}

func TestZipHandlerUnknownFile(t *testing.T) {
	dir := t.TempDir()
	h := NewZipHandler(dir, zap.NewNop())
	router := gin.New()
	router.GET("/zips/:name", h.Get)

	req := httptest.NewRequest(http.MethodGet, "/zips/missing.zip", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
