package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/coursegrader/pipeline/dispatcher/internal/domain"
)

// PushHandler accepts webhook deliveries and forwards push events to the
// packager, fire-and-forget.
type PushHandler struct {
	secretToken string
	hooks       chan<- domain.PushHook
	logger      *zap.Logger
}

func NewPushHandler(secretToken string, hooks chan<- domain.PushHook, logger *zap.Logger) *PushHandler {
	return &PushHandler{secretToken: secretToken, hooks: hooks, logger: logger}
}

// Push handles POST /push.
func (h *PushHandler) Push(c *gin.Context) {
	if h.secretToken != "" && c.GetHeader("X-Gitlab-Token") != h.secretToken {
		h.logger.Debug("rejecting push", zap.Error(domain.ErrBadToken))
		c.Status(http.StatusForbidden)
		return
	}

	var hook domain.PushHook
	if err := c.ShouldBindJSON(&hook); err != nil {
		h.logger.Error("error when decoding webhook body", zap.Error(err))
		c.Status(http.StatusBadRequest)
		return
	}

	if err := classify(hook); err != nil {
		h.logger.Debug("not forwarding event", zap.String("commit", hook.Desc()), zap.Error(err))
	} else {
		h.logger.Debug("forwarding push event to packager", zap.String("commit", hook.Desc()))
		go func(hook domain.PushHook) {
			h.hooks <- hook
		}(hook)
	}

	c.Status(http.StatusNoContent)
}

// classify reports why hook should not be forwarded to the packager,
// or nil if it should be.
func classify(hook domain.PushHook) error {
	switch {
	case hook.ObjectKind != "push":
		return domain.ErrUnknownEvent
	case hook.IsDelete():
		return domain.ErrBranchDeleted
	default:
		return nil
	}
}
