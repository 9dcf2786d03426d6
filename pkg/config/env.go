package config

import (
	"os"
	"strings"
)

// EnvValue resolves an environment variable case-insensitively: the key as
// given, then lowercase, then uppercase. Empty values count as unset.
func EnvValue(key string) string {
	for _, k := range []string{key, strings.ToLower(key), strings.ToUpper(key)} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
