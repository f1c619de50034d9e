package domain

import "strings"

// PushHook is the webhook body posted by the hosting service on a push.
// It is a superset of the real payload; unknown fields are silently
// ignored by encoding/json.
type PushHook struct {
	ObjectKind  string     `json:"object_kind"`
	CheckoutSHA *string    `json:"checkout_sha"`
	ProjectID   int        `json:"project_id"`
	Ref         string     `json:"ref"`
	Repository  Repository `json:"repository"`
}

// Repository describes the pushed-to project.
type Repository struct {
	Name       string `json:"name"`
	Homepage   string `json:"homepage"`
	GitHTTPURL string `json:"git_http_url"`
}

// IsDelete reports whether the event is a branch deletion (no commit
// checked out).
func (h PushHook) IsDelete() bool {
	return h.CheckoutSHA == nil
}

// PushedSHA returns the checked-out commit SHA. Callers must only call
// this after confirming !IsDelete().
func (h PushHook) PushedSHA() string {
	if h.CheckoutSHA == nil {
		return ""
	}
	return *h.CheckoutSHA
}

// BranchName extracts the branch name from a "refs/heads/<name>" ref, or
// returns ("", false) for any other ref shape (tags, merge refs, ...).
func (h PushHook) BranchName() (string, bool) {
	const prefix = "refs/heads/"
	if strings.HasPrefix(h.Ref, prefix) {
		return h.Ref[len(prefix):], true
	}
	return "", false
}

// ShortRef returns the branch name if derivable, else the raw ref.
// Used only for log messages.
func (h PushHook) ShortRef() string {
	if name, ok := h.BranchName(); ok {
		return name
	}
	return h.Ref
}

// Desc renders a short human description of the hook for logging.
func (h PushHook) Desc() string {
	sha := "<deleted>"
	if !h.IsDelete() {
		s := h.PushedSHA()
		if len(s) > 8 {
			s = s[:8]
		}
		sha = s
	}
	return h.Repository.Name + " (" + h.ShortRef() + " - " + sha + ")"
}
