package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvHelpers(t *testing.T) {
	env := map[string]string{
		"NAME":     " transitsound ",
		"LAG":      "90s",
		"BAD_LAG":  "soon",
		"SIZE":     "64",
		"RATIO":    "0.25",
		"ENABLED":  "true",
		"EMPTY":    "",
		"BAD_BOOL": "perhaps",
	}

	name := "default"
	EnvString(env, "NAME", &name)
	assert.Equal(t, "transitsound", name)

	EnvString(env, "EMPTY", &name)
	assert.Equal(t, "transitsound", name)

	lag := time.Minute
	EnvDuration(env, "LAG", &lag)
	assert.Equal(t, 90*time.Second, lag)

	EnvDuration(env, "BAD_LAG", &lag)
	assert.Equal(t, 90*time.Second, lag)

	size := 50
	EnvInt(env, "SIZE", &size)
	assert.Equal(t, 64, size)

	EnvInt(env, "MISSING", &size)
	assert.Equal(t, 64, size)

	ratio := 1.0
	EnvFloat(env, "RATIO", &ratio)
	assert.Equal(t, 0.25, ratio)

	enabled := false
	EnvBool(env, "ENABLED", &enabled)
	assert.True(t, enabled)

	EnvBool(env, "BAD_BOOL", &enabled)
	assert.True(t, enabled)
}

func TestGetEnvironmentVariables(t *testing.T) {
	t.Setenv("TRANSITSOUND_TEST_VARIABLE", "a=b")

	env := GetEnvironmentVariables()
	assert.Equal(t, "a=b", env["TRANSITSOUND_TEST_VARIABLE"])
}
