package featureflags

import (
	"os"
	"strings"
)

// StatsWorker publishes leave activity gauges in the background
const StatsWorker = "stats_worker"

// Enabled returns true if a flag is enabled via environment variable.
// Flags are read from env as FLAG_<NAME>=true/1/yes (case-insensitive)
func Enabled(name string) bool {
	return enabledIn(os.Getenv, name)
}

func enabledIn(getenv func(string) string, name string) bool {
	v := getenv("FLAG_" + strings.ToUpper(name))
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
