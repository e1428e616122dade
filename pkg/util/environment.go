package util

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

func GetEnvironmentVariables() map[string]string {
	environmentVariables := map[string]string{}

	for _, variable := range os.Environ() {
		pair := strings.SplitN(variable, "=", 2)

		environmentVariables[pair[0]] = pair[1]
	}

	return environmentVariables
}

// EnvString overwrites target when the variable is set and non-empty
func EnvString(env map[string]string, key string, target *string) {
	if value := strings.TrimSpace(env[key]); value != "" {
		*target = value
	}
}

// EnvDuration parses a Go duration ("90s", "2m") and keeps the current value
// when the variable is unset or unparsable
func EnvDuration(env map[string]string, key string, target *time.Duration) {
	value := strings.TrimSpace(env[key])
	if value == "" {
		return
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Warn().Str("variable", key).Str("value", value).Msg("Ignoring invalid duration")
		return
	}
	*target = duration
}

func EnvInt(env map[string]string, key string, target *int) {
	value := strings.TrimSpace(env[key])
	if value == "" {
		return
	}

	number, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Str("variable", key).Str("value", value).Msg("Ignoring invalid integer")
		return
	}
	*target = number
}

func EnvFloat(env map[string]string, key string, target *float64) {
	value := strings.TrimSpace(env[key])
	if value == "" {
		return
	}

	number, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Warn().Str("variable", key).Str("value", value).Msg("Ignoring invalid number")
		return
	}
	*target = number
}

func EnvBool(env map[string]string, key string, target *bool) {
	value := strings.TrimSpace(env[key])
	if value == "" {
		return
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Warn().Str("variable", key).Str("value", value).Msg("Ignoring invalid boolean")
		return
	}
	*target = parsed
}
