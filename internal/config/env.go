package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override config file values.
const (
	EnvSource   = "FUELDASH_SOURCE"
	EnvDB       = "FUELDASH_DB"
	EnvLogLevel = "FUELDASH_LOG_LEVEL"
)

// LoadDotEnv loads variables from a .env file without overriding the process
// environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// EnvString returns the trimmed value of key, or nil when unset or blank.
func EnvString(key string) *string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	return &v
}
