package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoString(t *testing.T) {
	info := Info{Version: "dev", CommitHash: "abc", BuildTime: "unknown"}
	assert.Equal(t, "swmap dev (commit abc, built unknown)", info.String())

	info.Version = "v0.3.0"
	assert.Equal(t, "swmap v0.3.0 (commit abc, built unknown)", info.String())
}

func TestUserAgent(t *testing.T) {
	info := Info{Version: "v0.3.0", CommitHash: "0123456789abcdef"}
	assert.Equal(t, "softwaremap/v0.3.0 (0123456)", info.UserAgent(""))
	assert.Equal(t, "softwaremap/v0.3.0 (0123456) (+ops@example.org)", info.UserAgent("ops@example.org"))
}
