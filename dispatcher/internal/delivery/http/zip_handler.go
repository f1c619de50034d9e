package http

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ZipHandler serves previously packaged lab archives out of the
// configured zip directory.
type ZipHandler struct {
	zipDir string
	logger *zap.Logger
}

func NewZipHandler(zipDir string, logger *zap.Logger) *ZipHandler {
	return &ZipHandler{zipDir: zipDir, logger: logger}
}

// Get handles GET /zips/:name.
func (h *ZipHandler) Get(c *gin.Context) {
	name := c.Param("name")
	if containsDotDot(name) {
		c.Status(http.StatusNotFound)
		return
	}

	path := filepath.Join(h.zipDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		h.logger.Warn("unable to serve zip", zap.String("name", name))
		c.Status(http.StatusNotFound)
		return
	}

	c.Header("Content-Type", "application/zip")
	c.File(path)
}

// containsDotDot reports whether any path component equals "..".
func containsDotDot(p string) bool {
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
