package config

import (
	"github.com/joho/godotenv"
)

// LoadDotEnv reads a .env file into the environment.
// Variables already set in the environment win; godotenv.Load never
// overrides them. A missing file is returned as an error the caller may ignore.
func LoadDotEnv(paths ...string) error {
	return godotenv.Load(paths...)
}
