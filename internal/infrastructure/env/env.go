package env

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Load reads .env and then .env.<APP_ENV> into the process environment.
// Missing files are not an error. It returns the resolved APP_ENV.
func Load() (string, error) {
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "dev"
	}

	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return appEnv, fmt.Errorf("load .env: %w", err)
	}

	envFile := fmt.Sprintf(".env.%s", appEnv)
	if err := godotenv.Overload(envFile); err != nil && !os.IsNotExist(err) {
		return appEnv, fmt.Errorf("load %s: %w", envFile, err)
	}

	return appEnv, nil
}
