package platform

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup parses the environment value of key, falling back to def when the
// variable is unset or does not parse.
func lookup[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

// GetEnv returns the value of key, or defaultVal when unset.
func GetEnv(key, defaultVal string) string {
	return lookup(key, defaultVal, func(s string) (string, error) { return s, nil })
}

func GetEnvInt(key string, defaultVal int) int {
	return lookup(key, defaultVal, strconv.Atoi)
}

func GetEnvFloat(key string, defaultVal float64) float64 {
	return lookup(key, defaultVal, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

// GetEnvBool accepts true/1/yes; any other set value is false.
func GetEnvBool(key string, defaultVal bool) bool {
	return lookup(key, defaultVal, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "true", "1", "yes":
			return true, nil
		default:
			return false, nil
		}
	})
}

// GetEnvDuration parses values such as "90s" or "24h".
func GetEnvDuration(key string, defaultVal time.Duration) time.Duration {
	return lookup(key, defaultVal, time.ParseDuration)
}
