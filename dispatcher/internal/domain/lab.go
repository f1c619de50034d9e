package domain

import "encoding/json"

// Lab is one independently-graded subtree within a student repository.
type Lab struct {
	Name    string `mapstructure:"name"`
	Base    string `mapstructure:"base"`
	Dir     string `mapstructure:"dir"`
	Witness string `mapstructure:"witness"`
	Enabled *bool  `mapstructure:"enabled"`
}

// IsEnabled defaults to true when unset.
func (l Lab) IsEnabled() bool {
	return l.Enabled == nil || *l.Enabled
}

// Opaque is the pass-through payload threaded from JobRequest to
// JobResponse. The dispatcher recovers the originating hook and the
// artifact's on-disk name from it once a result comes back.
type Opaque struct {
	Hook        PushHook `json:"hook"`
	ZipBasename string   `json:"zip_basename"`
}

// Encode serializes the opaque payload for embedding in a JobRequest.
func (o Opaque) Encode() (string, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeOpaque recovers the opaque payload from a JobResponse.
func DecodeOpaque(s string) (Opaque, error) {
	var o Opaque
	err := json.Unmarshal([]byte(s), &o)
	return o, err
}
