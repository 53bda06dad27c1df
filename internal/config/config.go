package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnv loads variables from a .env file next to the working directory
// and from the data directory, without overriding values already set in
// the environment. A missing file is not an error.
func LoadEnv() {
	_ = godotenv.Load()

	if dir, err := os.UserConfigDir(); err == nil {
		_ = godotenv.Load(filepath.Join(dir, "bridgetalk", ".env"))
	}
}

// Debug reports whether debug logging is enabled.
func Debug() bool {
	return os.Getenv("BRIDGETALK_DEBUG") != ""
}
