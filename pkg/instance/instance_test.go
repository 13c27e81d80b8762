package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDPrefersExplicitInstance(t *testing.T) {
	t.Setenv(EnvInstanceID, "api-7")
	t.Setenv("HOSTNAME", "pod-abc")
	assert.Equal(t, "api-7", ID("api"))
}

func TestIDFallsBackToHostname(t *testing.T) {
	t.Setenv(EnvInstanceID, "")
	t.Setenv("HOSTNAME", "pod-abc")
	assert.Equal(t, "cron-worker@pod-abc", ID("cron-worker"))

	t.Setenv("HOSTNAME", "")
	assert.Equal(t, "cron-worker@local", ID("cron-worker"))
}
