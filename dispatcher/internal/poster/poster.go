// Package poster reports commit statuses and leaves commit comments on
// the hosting service, using a Private-Token-authenticated REST client.
package poster

import (
	"go.uber.org/zap"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/coursegrader/pipeline/dispatcher/internal/config"
	"github.com/coursegrader/pipeline/dispatcher/internal/domain"
)

// State mirrors the hosting service's commit status states.
type State string

const (
	StateRunning State = "running"
	StateSuccess State = "success"
	StateFailed  State = "failed"
)

// Client posts commit statuses and comments. A nil *gitlab.Client
// degrades every call to a silent no-op (New logs once that posting is
// disabled), so the dispatcher still runs without hosting-service
// credentials configured.
type Client struct {
	api    *gitlab.Client
	logger *zap.Logger
}

func New(cfg config.GitlabConfig, logger *zap.Logger) (*Client, error) {
	if cfg.Token == "" {
		logger.Warn("gitlab.token not set, status posting disabled")
		return &Client{logger: logger}, nil
	}
	opts := []gitlab.ClientOptionFunc{}
	if cfg.BaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(cfg.BaseURL))
	}
	api, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{api: api, logger: logger}, nil
}

// PostStatus sets the commit status for hook's pushed SHA under name.
func (c *Client) PostStatus(hook domain.PushHook, state State, name, description string) {
	if c.api == nil {
		return
	}
	opts := &gitlab.SetCommitStatusOptions{
		State:       gitlab.BuildStateValue(string(state)),
		Name:        gitlab.Ptr(name),
		Description: gitlab.Ptr(description),
	}
	if ref, ok := hook.BranchName(); ok {
		opts.Ref = gitlab.Ptr(ref)
	}
	_, _, err := c.api.Commits.SetCommitStatus(hook.ProjectID, hook.PushedSHA(), opts)
	if err != nil {
		c.logger.Warn("unable to post commit status",
			zap.String("commit", hook.Desc()), zap.String("lab", name), zap.Error(err))
	}
}

// PostRunning implements packager.StatusPoster.
func (c *Client) PostRunning(hook domain.PushHook, lab, desc string) {
	c.PostStatus(hook, StateRunning, lab, desc)
}

// PostFailed implements packager.StatusPoster.
func (c *Client) PostFailed(hook domain.PushHook, lab, desc string) {
	c.PostStatus(hook, StateFailed, lab, desc)
}

// PostComment leaves note on hook's pushed commit.
func (c *Client) PostComment(hook domain.PushHook, note string) {
	if c.api == nil {
		return
	}
	_, _, err := c.api.Commits.PostCommitComment(hook.ProjectID, hook.PushedSHA(), &gitlab.PostCommitCommentOptions{
		Note: gitlab.Ptr(note),
	})
	if err != nil {
		c.logger.Warn("unable to post commit comment",
			zap.String("commit", hook.Desc()), zap.Error(err))
	}
}
